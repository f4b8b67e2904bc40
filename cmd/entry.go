package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sabaio/qaeval/internal/ingest"
	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/score"
	"github.com/sabaio/qaeval/internal/store"
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage records in a table",
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a record",
	Long: "Append a record. In qa mode pass --question, --answer and --expected; " +
		"in binary mode pass --question, --gold and --predicted.",
	Args: cobra.NoArgs,
	RunE: runEntryAdd,
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete qa records by id",
	Long:  "Delete qa records by id. Remaining ids are left as they are; run 'entry compact' to renumber.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEntryDelete,
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records in id order",
	Args:  cobra.NoArgs,
	RunE:  runEntryList,
}

var entryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every record and restart ids at 1",
	Args:  cobra.NoArgs,
	RunE:  runEntryClear,
}

var entryCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Renumber ids to 1..n preserving order",
	Args:  cobra.NoArgs,
	RunE:  runEntryCompact,
}

func init() {
	for _, c := range []*cobra.Command{entryAddCmd, entryListCmd, entryClearCmd, entryCompactCmd} {
		addModeFlags(c)
	}
	entryDeleteCmd.Flags().StringP("table", "t", "", "Table name (default from config)")

	entryAddCmd.Flags().StringP("category", "c", "", "Category (empty leaves it uncategorized)")
	entryAddCmd.Flags().StringP("question", "q", "", "Question text")
	entryAddCmd.Flags().StringP("answer", "a", "", "Model answer (qa mode)")
	entryAddCmd.Flags().StringP("expected", "e", "", "Expected answer (qa mode)")
	entryAddCmd.Flags().String("gold", "", "Gold verdict (binary mode)")
	entryAddCmd.Flags().String("predicted", "", "Predicted verdict (binary mode)")

	entryCmd.AddCommand(entryAddCmd)
	entryCmd.AddCommand(entryDeleteCmd)
	entryCmd.AddCommand(entryListCmd)
	entryCmd.AddCommand(entryClearCmd)
	entryCmd.AddCommand(entryCompactCmd)
}

func runEntryAdd(cmd *cobra.Command, args []string) error {
	mode, err := modeFlag(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	table := tableFlag(cmd, mode)
	category, _ := cmd.Flags().GetString("category")
	question, _ := cmd.Flags().GetString("question")
	cat := categoryArg(category)

	var id int
	if mode == score.ModeBinary {
		gold, _ := cmd.Flags().GetString("gold")
		predicted, _ := cmd.Flags().GetString("predicted")
		repo, err := s.Verdicts(table)
		if err != nil {
			return err
		}
		if err := repo.Ensure(ctx); err != nil {
			return err
		}
		id, err = repo.Add(ctx, store.VerdictEntry{
			Category:  cat,
			Question:  question,
			Gold:      ingest.ParseValue(gold),
			Predicted: ingest.ParseValue(predicted),
		})
		if err != nil {
			return err
		}
	} else {
		answer, _ := cmd.Flags().GetString("answer")
		expected, _ := cmd.Flags().GetString("expected")
		repo, err := s.QA(table)
		if err != nil {
			return err
		}
		if err := repo.Ensure(ctx); err != nil {
			return err
		}
		id, err = repo.Add(ctx, store.QAEntry{
			Category: cat,
			Question: question,
			Answer:   answer,
			Expected: expected,
		})
		if err != nil {
			return err
		}
	}

	logger.Info("added entry", zap.String("table", table), zap.Int("id", id))
	fmt.Fprintf(cmd.OutOrStdout(), "Added entry %d to %s.\n", id, table)
	return nil
}

func runEntryDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	repo, err := s.QA(tableFlag(cmd, score.ModeQA))
	if err != nil {
		return err
	}
	n, err := repo.Delete(cmd.Context(), ids...)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d entries from %s.\n", n, len(ids), repo.Table())
	return nil
}

func runEntryList(cmd *cobra.Command, args []string) error {
	mode, err := modeFlag(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	table := tableFlag(cmd, mode)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	if mode == score.ModeBinary {
		repo, err := s.Verdicts(table)
		if err != nil {
			return err
		}
		entries, err := repo.List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tCATEGORY\tGOLD\tPREDICTED\tQUESTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%v\t%v\t%s\n", e.ID, e.Category.Label(), cell(e.Gold), cell(e.Predicted), truncate(e.Question, 60))
		}
		return w.Flush()
	}

	repo, err := s.QA(table)
	if err != nil {
		return err
	}
	entries, err := repo.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "ID\tCATEGORY\tANSWER\tEXPECTED\tQUESTION")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Category.Label(), truncate(e.Answer, 30), truncate(e.Expected, 30), truncate(e.Question, 60))
	}
	return w.Flush()
}

func runEntryClear(cmd *cobra.Command, args []string) error {
	return withTable(cmd, "Cleared", func(r tableRepo) error {
		return r.DeleteAll(cmd.Context())
	})
}

func runEntryCompact(cmd *cobra.Command, args []string) error {
	return withTable(cmd, "Compacted", func(r tableRepo) error {
		return r.Compact(cmd.Context())
	})
}

// tableRepo is the maintenance surface shared by both record tables.
type tableRepo interface {
	Table() string
	DeleteAll(ctx context.Context) error
	Compact(ctx context.Context) error
}

func withTable(cmd *cobra.Command, verb string, fn func(tableRepo) error) error {
	mode, err := modeFlag(cmd)
	if err != nil {
		return err
	}
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	var repo tableRepo
	if mode == score.ModeBinary {
		repo, err = s.Verdicts(tableFlag(cmd, mode))
	} else {
		repo, err = s.QA(tableFlag(cmd, mode))
	}
	if err != nil {
		return err
	}
	if err := fn(repo); err != nil {
		return err
	}
	logger.Info(strings.ToLower(verb)+" table", zap.String("table", repo.Table()))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s.\n", verb, repo.Table())
	return nil
}

func categoryArg(s string) record.Category {
	if strings.TrimSpace(s) == "" {
		return record.NullCategory()
	}
	return record.Named(strings.TrimSpace(s))
}

func cell(v any) any {
	if v == nil {
		return "NULL"
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
