package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(approveCmd)
}

var approveCmd = &cobra.Command{
	Use:   "approve [task-id]",
	Short: "Merge a QA task into main and move it to DONE",
	Long: `approve rebases the task branch onto <remote>/<main> and re-runs
validation (with merge_strategy ff_only it instead requires the branch to
already descend from main and does not re-run validation), fast-forward
merges into main, cleans up the task's worktree
and branch on a best-effort basis, and moves the task to DONE.

Any failure along the way triggers an internal reject back to READY (or
BLOCKED once qa_attempts is exhausted) and exits 3.`,
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
		result, err := e.Approve(taskID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: approved and merged\n", result.TaskID)
		return nil
	},
}
