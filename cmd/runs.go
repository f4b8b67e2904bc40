package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabaio/qaeval/internal/report"
	"github.com/sabaio/qaeval/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved scoring runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the summary of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsListCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs (0 = all)")
	runsListCmd.Flags().StringP("mode", "m", "", "Only runs of this mode (qa or binary)")
	runsShowCmd.Flags().StringP("format", "f", "", "Output format: text, json or yaml (default from config)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	mode, _ := cmd.Flags().GetString("mode")

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Runs().List(cmd.Context(), store.QueryOpts{Limit: limit, Mode: mode})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No saved runs.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-6s  %-20s  %-16s  %s\n", "ID", "MODE", "SOURCE", "CREATED", "DEFICIENCY")
	fmt.Fprintln(out, strings.Repeat("─", 96))
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-6s  %-20s  %-16s  %.4f\n",
			r.ID, r.Mode, truncate(r.Source, 20), r.CreatedAt.Local().Format("2006-01-02 15:04"), r.OverallDeficiency)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.Runs().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %q not found", args[0])
	}

	var summary report.Summary
	if err := json.Unmarshal(run.Summary, &summary); err != nil {
		return fmt.Errorf("decode run %s: %w", run.ID, err)
	}
	return report.Encode(cmd.OutOrStdout(), &summary, format)
}
