package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/fetcher"
)

var (
	fetchURL string
	fetchFTP bool
	fetchOut string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the trial registry export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out := fetchOut
		if out == "" {
			out = cfg.Dataset.RawPath
		}

		var n int64
		var err error
		var src string

		if fetchFTP {
			src = cfg.Dataset.FTPURL
			if src == "" {
				return eris.New("dataset ftp_url is required (SCREENER_DATASET_FTP_URL)")
			}
			ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{})
			n, err = ftpFetcher.DownloadToFile(ctx, src, out)
		} else {
			src = fetchURL
			if src == "" {
				src = cfg.Dataset.URL
			}
			httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
			n, err = httpFetcher.DownloadToFile(ctx, src, out)
		}
		if err != nil {
			return eris.Wrap(err, "fetch dataset")
		}

		// Bulk mirrors ship the CSV zipped.
		if strings.HasSuffix(strings.ToLower(out), ".zip") {
			extracted, err := fetcher.ExtractZIPSingle(out, filepath.Dir(out))
			if err != nil {
				return eris.Wrap(err, "extract dataset archive")
			}
			if err := os.Remove(out); err != nil {
				zap.L().Warn("fetch: remove archive failed", zap.Error(err))
			}
			out = extracted
		}

		zap.L().Info("fetch complete",
			zap.String("source", src),
			zap.String("path", out),
			zap.Int64("bytes", n),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "dataset URL (default from config)")
	fetchCmd.Flags().BoolVar(&fetchFTP, "ftp", false, "download from the FTP mirror instead of HTTP")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "output path (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
