package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(submitCmd)
}

var submitCmd = &cobra.Command{
	Use:   "submit [task-id]",
	Short: "Submit a DOING task for QA, after a scope and stub check",
	Long: `submit moves a task from DOING to QA once it has at least one commit and
passes the scope and stub validators against base_sha..HEAD. With no
task-id, the single DOING task is selected; more than one is an error.`,
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
		id, err := e.Submit(taskID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: submitted for QA\n", id)
		return nil
	},
}
