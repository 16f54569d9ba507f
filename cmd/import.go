package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/trials"
)

var importCSVPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a registry CSV into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open dataset %s", importCSVPath)
		}
		defer f.Close()

		table, err := trials.LoadCSV(ctx, f)
		if err != nil {
			return eris.Wrap(err, "parse dataset")
		}

		n, err := st.UpsertTrials(ctx, table.Rows())
		if err != nil {
			return eris.Wrap(err, "upsert trials")
		}

		zap.L().Info("import complete",
			zap.String("csv", importCSVPath),
			zap.Int("trials", n),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
