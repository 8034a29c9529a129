package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

func newCreateTestCaseCmd() *cobra.Command {
	var (
		name        string
		description string
		testType    string
		prompt      string
		outputFile  string
	)

	cmd := &cobra.Command{
		Use:   "create-test-case",
		Short: "Create a custom test case definition",
		Long: `Build a test case that sends the given prompt to an agent and checks the
response against the default criteria. The case is printed as JSON, or
written to a YAML or JSON file when --output-file is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tt, err := testsuite.ParseTestType(testType)
			if err != nil {
				return err
			}

			tc, err := testsuite.NewTestCase(testsuite.TestCase{
				Name:               name,
				Description:        description,
				Type:               tt,
				Inputs:             testsuite.Values{"prompt": testsuite.StringValue(prompt)},
				EvaluationCriteria: testsuite.DefaultCriteria(),
			})
			if err != nil {
				return err
			}

			if outputFile != "" {
				if err := testsuite.WriteCaseFile(outputFile, tc); err != nil {
					return err
				}
				fmt.Printf("Test case %s written to %s\n", tc.ID, outputFile)
				return nil
			}

			data, err := json.MarshalIndent(tc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Test case name (required)")
	cmd.Flags().StringVar(&description, "description", "", "What the case checks")
	cmd.Flags().StringVar(&testType, "test-type", string(testsuite.TypeCustom), "Test type (functional, performance, reliability, safety, custom)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt sent to the agent (required)")
	cmd.Flags().StringVar(&outputFile, "output-file", "", "Write the case to this .yaml or .json file instead of printing it")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}
