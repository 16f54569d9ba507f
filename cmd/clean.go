package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/trials"
)

var (
	cleanIn  string
	cleanOut string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean a raw registry export for import",
	Long:  "Drops malformed rows and rows carrying HTML markup from a raw registry CSV, writing a clean copy.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := cleanIn
		if in == "" {
			in = cfg.Dataset.RawPath
		}
		out := cleanOut
		if out == "" {
			out = cfg.Dataset.CleanPath
		}

		src, err := os.Open(in)
		if err != nil {
			return eris.Wrapf(err, "open raw dataset %s", in)
		}
		defer src.Close()

		dst, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create clean dataset %s", out)
		}
		defer dst.Close()

		stats, err := trials.Clean(src, dst)
		if err != nil {
			return eris.Wrap(err, "clean dataset")
		}

		zap.L().Info("clean complete",
			zap.String("in", in),
			zap.String("out", out),
			zap.Int("kept", stats.Kept),
			zap.Int("dropped", stats.Dropped),
		)
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVar(&cleanIn, "in", "", "raw CSV path (default from config)")
	cleanCmd.Flags().StringVar(&cleanOut, "out", "", "clean CSV path (default from config)")
	rootCmd.AddCommand(cleanCmd)
}
