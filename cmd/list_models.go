package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-models",
		Short: "List models available through OpenRouter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireOpenRouterKey(); err != nil {
				return err
			}

			client := newModelClient(cfg)
			models, err := client.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			if len(models) == 0 {
				fmt.Println("No models found.")
				return nil
			}

			fmt.Printf("Models (%d):\n\n", len(models))
			for _, m := range models {
				if m.OwnedBy != "" {
					fmt.Printf("  - %s (%s)\n", m.ID, m.OwnedBy)
					continue
				}
				fmt.Printf("  - %s\n", m.ID)
			}

			return nil
		},
	}

	return cmd
}
