package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sabaio/qaeval/internal/labeler"
	"github.com/sabaio/qaeval/internal/llm"
	"github.com/sabaio/qaeval/internal/score"
	"github.com/sabaio/qaeval/internal/store"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Assign categories to uncategorized qa records",
	Long: "Assign a category to every qa record whose category is NULL or empty. " +
		"The similarity method copies the category of the closest labeled question; " +
		"the llm method asks the configured provider to choose.",
	Args: cobra.NoArgs,
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().StringP("table", "t", "", "QA table name (default from config)")
	labelCmd.Flags().String("method", "", "Labeling method: similarity or llm (default from config)")
	labelCmd.Flags().StringSlice("categories", nil, "Candidate categories (default: categories already in the table)")
	labelCmd.Flags().Float64("min-confidence", -1, "Minimum confidence to assign a category (default from config)")
	labelCmd.Flags().Bool("dry-run", false, "Show assignments without writing them")
}

func runLabel(cmd *cobra.Command, args []string) error {
	method, _ := cmd.Flags().GetString("method")
	if method == "" {
		method = cfg.Labeler.Method
	}
	minConf, _ := cmd.Flags().GetFloat64("min-confidence")
	if minConf < 0 {
		minConf = cfg.Labeler.MinConfidence
	}
	categories, _ := cmd.Flags().GetStringSlice("categories")
	if len(categories) == 0 {
		categories = cfg.Labeler.Categories
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	repo, err := s.QA(tableFlag(cmd, score.ModeQA))
	if err != nil {
		return err
	}

	l, err := newLabeler(cmd, repo, method, minConf)
	if err != nil {
		return err
	}
	res, err := labeler.Apply(ctx, repo, l, labeler.Options{
		Categories: categories,
		DryRun:     dryRun,
		Logger:     logger.Named("labeler"),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tCONFIDENCE\tMETHOD")
	for _, a := range res.Assignments {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n", a.ID, a.Label.Category, a.Label.Confidence, a.Label.Method)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	verb := "Labeled"
	if dryRun {
		verb = "Would label"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %d entries, %d left uncategorized.\n", verb, res.Labeled, res.Skipped)
	return nil
}

func newLabeler(cmd *cobra.Command, repo *store.QARepo, method string, minConf float64) (labeler.Labeler, error) {
	switch method {
	case labeler.MethodSimilarity:
		entries, err := repo.List(cmd.Context())
		if err != nil {
			return nil, err
		}
		return labeler.NewSimilarityLabeler(entries, minConf), nil
	case labeler.MethodLLM:
		llmCfg := cfg.LLMProvider()
		if err := llmCfg.Validate(); err != nil {
			return nil, err
		}
		p, err := llm.NewProvider(cmd.Context(), llmCfg, logger)
		if err != nil {
			return nil, err
		}
		lc := labeler.DefaultLLMConfig()
		lc.MinConfidence = minConf
		return labeler.NewLLMLabeler(p, lc), nil
	default:
		return nil, fmt.Errorf("unknown labeling method %q (want %q or %q)", method, labeler.MethodSimilarity, labeler.MethodLLM)
	}
}
