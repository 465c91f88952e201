package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [task-id]",
	Short: "Run the validation pipeline against a QA task",
	Long: `validate runs the scope/stub checks and the configured validation
pipeline against base_sha..HEAD and appends a QA Report to the task. The
task stays in QA either way. Exit 0 on pass, 2 on fail.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var taskID string
		if len(args) == 1 {
			taskID = args[0]
		}
		e, err := newEngine()
		if err != nil {
			return err
		}
		result, validateErr := e.Validate(taskID)
		if result != nil {
			fmt.Print(result.Report)
		}
		if validateErr != nil {
			return validateErr
		}
		fmt.Printf("%s: PASS\n", result.TaskID)
		return nil
	},
}
