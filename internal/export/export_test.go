package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/oncomatch/trial-screener/internal/model"
)

func sampleResults() []model.MatchResult {
	return []model.MatchResult{
		{
			Trial: &model.Trial{
				NCTID:      "NCT00000001",
				Title:      "HER2 Study",
				Status:     model.StatusRecruiting,
				Conditions: []string{"Breast Cancer"},
				Phases:     []string{"Phase 2"},
			},
			RawScore:    7,
			Confidence:  82.35,
			Explanation: []string{"Condition: breast cancer matched", "Sex: female matched"},
			Eligibility: &model.EligibilityAnalysis{OverallAssessment: "meets most stated inclusion criteria"},
			DistanceKm:  12.4,
		},
		{
			Trial: &model.Trial{
				NCTID:  "NCT00000002",
				Title:  "Control Study",
				Status: model.StatusCompleted,
			},
			Confidence: 0,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows

	assert.Equal(t, resultHeader, records[0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "NCT00000001", records[1][1])
	assert.Equal(t, "82.35", records[1][6])
	assert.Equal(t, "Condition: breast cancer matched; Sex: female matched", records[1][7])
	assert.Equal(t, "12.4", records[1][9])

	// Zero-confidence row still exports, with empty advisory columns.
	assert.Equal(t, "NCT00000002", records[2][1])
	assert.Equal(t, "0.00", records[2][6])
	assert.Equal(t, "", records[2][8])
	assert.Equal(t, "", records[2][9])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleResults()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Matches", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "NCT ID", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "NCT00000001", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "82.35", sheet.Rows[1].Cells[6].String())
}
