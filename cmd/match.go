package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oncomatch/trial-screener/internal/export"
	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/screening"
	"github.com/oncomatch/trial-screener/pkg/notion"
)

var (
	matchFile     string
	matchDataset  string
	matchLocation string
	matchTopK     int
	matchJSON     bool
	matchCSVOut   string
	matchXLSXOut  string
	matchNotion   bool
)

var matchCmd = &cobra.Command{
	Use:   "match [description]",
	Short: "Match a patient description against the trial dataset",
	Long:  "Extracts entities from a free-text patient description and prints the top matching trials with confidence scores and explanations. Reads from stdin when no description or file is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readDescription(args)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		table, err := loadTable(ctx, st, matchDataset)
		if err != nil {
			return err
		}

		screener := newScreener(table, st)
		run := screener.Screen(ctx, screening.Request{
			Text:     text,
			Location: matchLocation,
			TopK:     matchTopK,
		})

		if err := writeRun(cmd.OutOrStdout(), run); err != nil {
			return err
		}

		if matchCSVOut != "" {
			if err := export.WriteCSVFile(matchCSVOut, run.Results); err != nil {
				return err
			}
			zap.L().Info("exported matches", zap.String("path", matchCSVOut))
		}
		if matchXLSXOut != "" {
			if err := export.WriteXLSXFile(matchXLSXOut, run.Results); err != nil {
				return err
			}
			zap.L().Info("exported matches", zap.String("path", matchXLSXOut))
		}

		if matchNotion {
			if cfg.Notion.Token == "" {
				return eris.New("notion token is required (SCREENER_NOTION_TOKEN)")
			}
			client := notion.NewClient(cfg.Notion.Token)
			pageID, err := notion.PublishRun(ctx, client, cfg.Notion.ReportDB, run)
			if err != nil {
				return err
			}
			zap.L().Info("published run to notion", zap.String("page_id", pageID))
		}

		return nil
	},
}

// readDescription resolves the patient text from the arg, file, or stdin.
func readDescription(args []string) (string, error) {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if matchFile != "" {
		data, err := os.ReadFile(matchFile)
		if err != nil {
			return "", eris.Wrapf(err, "read description file %s", matchFile)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", eris.Wrap(err, "read description from stdin")
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", eris.New("empty patient description")
	}
	return string(data), nil
}

// writeRun prints a run as JSON or a readable report.
func writeRun(w io.Writer, run *model.MatchRun) error {
	if matchJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(run), "encode run")
	}

	fmt.Fprintf(w, "Run %s: %d matches from %d trials\n", run.ID, len(run.Results), run.TrialsScanned)
	if !run.Query.Entities.Empty() {
		fmt.Fprintf(w, "Extracted: conditions=%v demographics=%v treatments=%v labs=%v\n",
			run.Query.Entities.Conditions, run.Query.Entities.Demographics,
			run.Query.Entities.Treatments, run.Query.Entities.LabValues)
	}
	fmt.Fprintln(w)

	for i := range run.Results {
		r := &run.Results[i]
		fmt.Fprintf(w, "%2d. [%6.2f%%] %s  %s\n", i+1, r.Confidence, r.Trial.NCTID, r.Trial.Title)
		if len(r.Explanation) > 0 {
			fmt.Fprintf(w, "      %s\n", r.ExplanationText())
		}
		if r.Eligibility != nil {
			fmt.Fprintf(w, "      Eligibility: %s (%d/%d inclusion, %d exclusion hits)\n",
				r.Eligibility.OverallAssessment,
				r.Eligibility.InclusionMet, r.Eligibility.InclusionTotal,
				r.Eligibility.ExclusionHits)
		}
		if r.DistanceKm > 0 {
			fmt.Fprintf(w, "      Nearest site: %.1f km\n", r.DistanceKm)
		}
	}
	return nil
}

func init() {
	matchCmd.Flags().StringVar(&matchFile, "file", "", "read the description from a file")
	matchCmd.Flags().StringVar(&matchDataset, "csv", "", "match against a CSV dataset instead of the store")
	matchCmd.Flags().StringVar(&matchLocation, "location", "", "patient location for site distance (e.g. \"Boston, MA\")")
	matchCmd.Flags().IntVar(&matchTopK, "top", 0, "number of results (default from config)")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "output JSON")
	matchCmd.Flags().StringVar(&matchCSVOut, "csv-out", "", "also write results to a CSV file")
	matchCmd.Flags().StringVar(&matchXLSXOut, "xlsx-out", "", "also write results to an XLSX file")
	matchCmd.Flags().BoolVar(&matchNotion, "notion", false, "publish the run to the Notion report database")
	rootCmd.AddCommand(matchCmd)
}
