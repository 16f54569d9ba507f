package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/extract"
	"github.com/oncomatch/trial-screener/internal/matcher"
	"github.com/oncomatch/trial-screener/internal/screening"
	"github.com/oncomatch/trial-screener/internal/store"
	"github.com/oncomatch/trial-screener/internal/trials"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// loadTable resolves the trial dataset in priority order: explicit CSV
// path, then the store, then the embedded samples.
func loadTable(ctx context.Context, st store.Store, csvPath string) (*trials.Table, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, eris.Wrapf(err, "open dataset %s", csvPath)
		}
		defer f.Close()
		return trials.LoadCSV(ctx, f)
	}

	if st != nil {
		rows, err := st.AllTrials(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "load trials from store")
		}
		if len(rows) > 0 {
			return trials.New(rows), nil
		}
	}

	zap.L().Info("no imported trials, using embedded sample dataset")
	return trials.SampleTable(), nil
}

func formatConfidence(c float64) string {
	return fmt.Sprintf("%.2f", c)
}

// newScreener assembles the pipeline from config.
func newScreener(table *trials.Table, st store.Store) *screening.Screener {
	opts := []screening.Option{}
	if st != nil {
		opts = append(opts, screening.WithStore(st))
	}
	if cfg.Geo.MaxDistanceKm > 0 {
		opts = append(opts, screening.WithMaxDistance(cfg.Geo.MaxDistanceKm))
	}
	return screening.New(
		extract.New(cfg.Anthropic),
		matcher.New(cfg.Matcher),
		table,
		opts...,
	)
}
