package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/task"
)

func init() {
	rootCmd.AddCommand(worktreeCmd)
}

var worktreeCmd = &cobra.Command{
	Use:   "worktree <task-id>",
	Short: "Print a task's worktree path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := task.NormalizeID(args[0])
		if err != nil {
			return err
		}
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		idx, err := task.BuildIndex(ctx.WorkflowStateDir)
		if err != nil {
			return err
		}
		entry, ok := idx.Lookup(id)
		if !ok {
			return fmt.Errorf("task %s not found", id)
		}
		file, err := loadTaskFile(entry.Path)
		if err != nil {
			return err
		}
		if file.FrontMatter.Worktree == "" {
			return fmt.Errorf("%s has no worktree (not yet claimed)", id)
		}
		fmt.Println(file.FrontMatter.Worktree)
		return nil
	},
}
