package main

import (
	"encoding/csv"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/screening"
)

var (
	batchIn      string
	batchOut     string
	batchDataset string
	batchTopK    int
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Screen a CSV of patient descriptions",
	Long:  "Reads patient descriptions from a CSV (one per row, first column; optional second column is a location) and writes the top match for each to an output CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		table, err := loadTable(ctx, st, batchDataset)
		if err != nil {
			return err
		}
		screener := newScreener(table, st)

		rows, err := readBatchInput(batchIn)
		if err != nil {
			return err
		}

		type batchResult struct {
			text string
			run  *model.MatchRun
		}
		results := make([]batchResult, len(rows))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchWorkers)
		var mu sync.Mutex

		for i, row := range rows {
			g.Go(func() error {
				run := screener.Screen(gctx, screening.Request{
					Text:     row.text,
					Location: row.location,
					TopK:     batchTopK,
				})
				mu.Lock()
				results[i] = batchResult{text: row.text, run: run}
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch screen")
		}

		out, err := os.Create(batchOut)
		if err != nil {
			return eris.Wrapf(err, "create batch output %s", batchOut)
		}
		defer out.Close()

		w := csv.NewWriter(out)
		header := []string{"Description", "Run ID", "Top NCT ID", "Top Title", "Confidence", "Explanation"}
		if err := w.Write(header); err != nil {
			return eris.Wrap(err, "write batch header")
		}
		for _, br := range results {
			record := []string{br.text, br.run.ID, "", "", "", ""}
			if len(br.run.Results) > 0 {
				top := &br.run.Results[0]
				record[2] = top.Trial.NCTID
				record[3] = top.Trial.Title
				record[4] = formatConfidence(top.Confidence)
				record[5] = top.ExplanationText()
			}
			if err := w.Write(record); err != nil {
				return eris.Wrap(err, "write batch row")
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return eris.Wrap(err, "flush batch output")
		}

		zap.L().Info("batch complete",
			zap.Int("patients", len(rows)),
			zap.String("out", batchOut),
		)
		return nil
	},
}

type batchRow struct {
	text     string
	location string
}

// readBatchInput loads descriptions from the input CSV, skipping blank
// first columns. A "description" header row is skipped too.
func readBatchInput(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open batch input %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "parse batch input")
	}

	var rows []batchRow
	for i, rec := range records {
		if len(rec) == 0 || rec[0] == "" {
			continue
		}
		if i == 0 && (rec[0] == "description" || rec[0] == "Description") {
			continue
		}
		row := batchRow{text: rec[0]}
		if len(rec) > 1 {
			row.location = rec[1]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("no patient descriptions in %s", path)
	}
	return rows, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "input CSV of patient descriptions (required)")
	batchCmd.Flags().StringVar(&batchOut, "out", "batch_results.csv", "output CSV path")
	batchCmd.Flags().StringVar(&batchDataset, "csv", "", "match against a CSV dataset instead of the store")
	batchCmd.Flags().IntVar(&batchTopK, "top", 0, "number of results per patient (default from config)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "concurrent screenings")
	_ = batchCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(batchCmd)
}
