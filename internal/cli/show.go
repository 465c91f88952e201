package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/task"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Print a task file's contents",
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
		data, err := os.ReadFile(entry.Path)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}
