package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sabaio/qaeval/internal/ingest"
	"github.com/sabaio/qaeval/internal/score"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Append records from a CSV file",
	Long: "Append records from a CSV file. In qa mode the columns are read by position " +
		"(category, question, answer, expected) after a header row; in binary mode the " +
		"header must name category, gold_binary and llm_binary.",
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	addModeFlags(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	mode, err := modeFlag(cmd)
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	table := tableFlag(cmd, mode)
	var n int
	if mode == score.ModeBinary {
		repo, err := s.Verdicts(table)
		if err != nil {
			return err
		}
		if n, err = ingest.ImportVerdicts(ctx, f, repo); err != nil {
			return err
		}
	} else {
		repo, err := s.QA(table)
		if err != nil {
			return err
		}
		if n, err = ingest.ImportQA(ctx, f, repo); err != nil {
			return err
		}
	}

	logger.Info("imported csv",
		zap.String("file", args[0]),
		zap.String("table", table),
		zap.Int("rows", n),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows into %s.\n", n, table)
	return nil
}
