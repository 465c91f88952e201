package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/fileutil"
	"github.com/burl-dev/burl/internal/task"
)

var (
	addPriority string
	addAffects  []string
)

func init() {
	addCmd.Flags().StringVar(&addPriority, "priority", "", "Priority: high, medium, low, or other (default medium)")
	addCmd.Flags().StringSliceVar(&addAffects, "affects", nil, "Exact paths this task is allowed to touch")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a new task file in READY",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := args[0]
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		idx, err := task.BuildIndex(ctx.WorkflowStateDir)
		if err != nil {
			return err
		}
		id := idx.NextID()

		file := &task.File{FrontMatter: task.FrontMatter{
			ID: id, Title: title, Priority: task.Priority(addPriority), Affects: addAffects,
		}}
		path := filepath.Join(ctx.BucketDir("READY"), task.Filename(id, title))
		if err := fileutil.AtomicWrite(path, file.Serialize()); err != nil {
			return fmt.Errorf("writing task file: %w", err)
		}
		fmt.Println(id)
		return nil
	},
}
