package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabaio/qaeval/internal/report"
	"github.com/sabaio/qaeval/internal/score"
)

func envSet(name string) bool {
	return os.Getenv(name) != ""
}

// modeFlag reads --mode, defaulting to free-text scoring.
func modeFlag(cmd *cobra.Command) (score.Mode, error) {
	m, _ := cmd.Flags().GetString("mode")
	return score.ParseMode(m)
}

// tableFlag returns --table or the configured table for mode.
func tableFlag(cmd *cobra.Command, mode score.Mode) string {
	if t, _ := cmd.Flags().GetString("table"); t != "" {
		return t
	}
	if mode == score.ModeBinary {
		return cfg.Tables.Verdict
	}
	return cfg.Tables.QA
}

// formatFlag returns --format or output.format from config.
func formatFlag(cmd *cobra.Command) (report.Format, error) {
	f, _ := cmd.Flags().GetString("format")
	if f == "" {
		f = cfg.Output.Format
	}
	return report.ParseFormat(f)
}

func addModeFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", string(score.ModeQA), "Record kind: qa (free-text) or binary (verdicts)")
	cmd.Flags().StringP("table", "t", "", "Table name (default from config)")
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id < 1 {
				return nil, &invalidIDError{value: part}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type invalidIDError struct {
	value string
}

func (e *invalidIDError) Error() string {
	return "invalid ID " + strconv.Quote(e.value)
}
