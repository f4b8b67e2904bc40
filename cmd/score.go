package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sabaio/qaeval/internal/report"
	"github.com/sabaio/qaeval/internal/score"
	"github.com/sabaio/qaeval/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a table and report accuracy by category",
	Long: "Score every record of a table in id order. In qa mode an answer is " +
		"correct when it matches the expected answer after trimming and lowercasing; " +
		"in binary mode when the predicted verdict equals the gold verdict.",
	RunE: runScore,
}

func init() {
	addModeFlags(scoreCmd)
	scoreCmd.Flags().StringP("format", "f", "", "Output format: text, json or yaml (default from config)")
	scoreCmd.Flags().Bool("records", false, "Include per-record outcomes in the report")
	scoreCmd.Flags().Bool("save", false, "Save the summary to the run history")
}

func runScore(cmd *cobra.Command, args []string) error {
	mode, err := modeFlag(cmd)
	if err != nil {
		return err
	}
	format, err := formatFlag(cmd)
	if err != nil {
		return err
	}
	table := tableFlag(cmd, mode)

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	src, err := sources(s, mode, table)
	if err != nil {
		return err
	}
	res, err := score.Run(ctx, mode, src)
	if err != nil {
		return err
	}
	summary, err := report.Assemble(res)
	if err != nil {
		return err
	}
	logger.Info("scored table",
		zap.String("mode", string(mode)),
		zap.String("table", table),
		zap.Int("records", res.TotalRecords),
		zap.Float64("overall_deficiency", res.OverallDeficiency),
	)

	if save, _ := cmd.Flags().GetBool("save"); save {
		run, err := saveRun(cmd, s, table, summary)
		if err != nil {
			return err
		}
		logger.Info("saved run", zap.String("id", run.ID))
	}

	if records, _ := cmd.Flags().GetBool("records"); !records {
		summary.Records = nil
	}
	return report.Encode(cmd.OutOrStdout(), summary, format)
}

func sources(s *store.Store, mode score.Mode, table string) (score.Sources, error) {
	if mode == score.ModeBinary {
		repo, err := s.Verdicts(table)
		if err != nil {
			return score.Sources{}, err
		}
		return score.Sources{Verdict: repo}, nil
	}
	repo, err := s.QA(table)
	if err != nil {
		return score.Sources{}, err
	}
	return score.Sources{QA: repo}, nil
}

// saveRun stores the full summary, per-record outcomes included.
func saveRun(cmd *cobra.Command, s *store.Store, table string, summary *report.Summary) (*store.Run, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	run := &store.Run{
		Mode:              string(summary.Mode),
		Source:            table,
		OverallDeficiency: summary.OverallDeficiency,
		Summary:           data,
	}
	if err := s.Runs().Save(cmd.Context(), run); err != nil {
		return nil, err
	}
	return run, nil
}
