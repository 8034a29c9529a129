package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListAgentsCmd() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list-agents",
		Short: "List agents registered on the Archon platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireArchonKey(); err != nil {
				return err
			}

			client := newAgentClient(cfg)
			agents, err := client.ListAgents(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if len(agents) == 0 {
				fmt.Println("No agents found.")
				return nil
			}

			fmt.Printf("Agents:\n\n")
			for _, agent := range agents {
				fmt.Printf("  - %s (%s)\n", agent.Name, agent.ID)
				if agent.Description != "" {
					fmt.Printf("    Description: %s\n", agent.Description)
				}
				if len(agent.Capabilities) > 0 {
					fmt.Printf("    Capabilities: %s\n", strings.Join(agent.Capabilities, ", "))
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of agents to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of agents to skip")

	return cmd
}
