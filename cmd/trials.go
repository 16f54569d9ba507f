package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oncomatch/trial-screener/internal/model"
	"github.com/oncomatch/trial-screener/internal/store"
)

var (
	trialsCondition string
	trialsStatus    string
	trialsLimit     int
	trialsJSON      bool
)

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "Inspect the imported trial dataset",
}

var trialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported trials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := st.ListTrials(ctx, store.TrialFilter{
			Condition: trialsCondition,
			Status:    model.RecruitmentStatus(trialsStatus),
			Limit:     trialsLimit,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if trialsJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		for i := range rows {
			t := &rows[i]
			fmt.Fprintf(w, "%s  %-14s  %s\n", t.NCTID, t.Status, t.Title)
			if len(t.Conditions) > 0 {
				fmt.Fprintf(w, "             %s\n", strings.Join(t.Conditions, "; "))
			}
		}
		fmt.Fprintf(w, "%d trials\n", len(rows))
		return nil
	},
}

var trialsShowCmd = &cobra.Command{
	Use:   "show <nct-id>",
	Short: "Show one trial in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.GetTrial(ctx, strings.ToUpper(strings.TrimSpace(args[0])))
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	},
}

func init() {
	trialsListCmd.Flags().StringVar(&trialsCondition, "condition", "", "filter by condition substring")
	trialsListCmd.Flags().StringVar(&trialsStatus, "status", "", "filter by recruitment status")
	trialsListCmd.Flags().IntVar(&trialsLimit, "limit", 50, "maximum rows")
	trialsListCmd.Flags().BoolVar(&trialsJSON, "json", false, "output JSON")
	trialsCmd.AddCommand(trialsListCmd)
	trialsCmd.AddCommand(trialsShowCmd)
	rootCmd.AddCommand(trialsCmd)
}
