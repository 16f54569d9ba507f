package trials

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CleanStats reports what the cleaning pass did.
type CleanStats struct {
	Kept    int
	Dropped int
}

// Clean copies a raw registry CSV to w, dropping rows with the wrong
// column count and rows containing HTML/script debris. The registry's
// CSV endpoint occasionally interleaves error pages into the payload.
func Clean(r io.Reader, w io.Writer) (CleanStats, error) {
	var stats CleanStats

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header, err := reader.Read()
	if err == io.EOF {
		return stats, eris.New("clean: empty input")
	}
	if err != nil {
		return stats, eris.Wrap(err, "clean: read header")
	}
	if err := writer.Write(header); err != nil {
		return stats, eris.Wrap(err, "clean: write header")
	}

	want := len(header)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row: drop it and keep going.
			stats.Dropped++
			continue
		}
		if len(row) != want || hasMarkup(row) {
			stats.Dropped++
			continue
		}
		if err := writer.Write(row); err != nil {
			return stats, eris.Wrap(err, "clean: write row")
		}
		stats.Kept++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return stats, eris.Wrap(err, "clean: flush")
	}

	zap.L().Info("trials: cleaned dataset",
		zap.Int("kept", stats.Kept),
		zap.Int("dropped", stats.Dropped),
	)
	return stats, nil
}

func hasMarkup(row []string) bool {
	for _, c := range row {
		if strings.HasPrefix(strings.TrimSpace(c), "<") {
			return true
		}
	}
	return false
}
