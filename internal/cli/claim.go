package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(claimCmd)
}

var claimCmd = &cobra.Command{
	Use:   "claim [task-id]",
	Short: "Claim a READY task, materializing its branch and worktree",
	Long: `claim moves a task from READY to DOING. With no task-id, the highest
priority task whose dependencies are all satisfied is selected. The task
worktree path is printed on stdout so shell callers can
cd "$(burl claim)".`,
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
		result, err := e.Claim(taskID)
		if err != nil {
			return err
		}
		fmt.Println(result.WorktreePath)
		if result.Reused {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: reusing existing branch %s\n", result.TaskID, result.Branch)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: claimed on branch %s\n", result.TaskID, result.Branch)
		}
		return nil
	},
}
