package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archon-ai/agent-tester/internal/judge"
)

func newScoreCmd() *cobra.Command {
	var (
		model       string
		repetitions int
	)

	cmd := &cobra.Command{
		Use:   "score <report-file>",
		Short: "Grade a JSON test report using an LLM as judge",
		Long: `Send a JSON test report to a judging model that estimates how many agent
responses are genuinely satisfactory. Runs multiple passes for confidence and
writes structured JSON scores next to the report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportFile := args[0]

			if _, err := os.Stat(reportFile); os.IsNotExist(err) {
				return fmt.Errorf("report file not found: %s", reportFile)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireOpenRouterKey(); err != nil {
				return err
			}

			j := judge.New(newModelClient(cfg), judge.Config{
				Model:       model,
				Repetitions: repetitions,
			})

			fmt.Printf("Judging: %s\n", reportFile)
			fmt.Printf("Model: %s\n", model)
			fmt.Printf("Repetitions: %d\n", repetitions)
			fmt.Println()

			review, err := j.ReviewFile(cmd.Context(), reportFile)
			if err != nil {
				return err
			}

			reviewFile, err := judge.WriteReviewFile(review, reportFile)
			if err != nil {
				return err
			}

			fmt.Printf("\nReview written to: %s\n", reviewFile)

			if review.Summary.MeanSatisfactory != nil {
				fmt.Printf("\nSummary:\n")
				fmt.Printf("  Mean Score: %.2f (%.2f%%)\n",
					*review.Summary.MeanSatisfactory,
					*review.Summary.MeanPercent)
				fmt.Printf("  Range: %d-%d satisfactory\n",
					*review.Summary.MinSatisfactory,
					*review.Summary.MaxSatisfactory)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", judge.DefaultModel, "Judging model name")
	cmd.Flags().IntVar(&repetitions, "repetitions", 3, "Number of judging passes")

	return cmd
}
