package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/engine"
)

var (
	cleanYes       bool
	cleanCompleted bool
	cleanOrphans   bool
)

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip the interactive confirmation")
	cleanCmd.Flags().BoolVar(&cleanCompleted, "completed", false, "Only remove worktrees referenced by a DONE task")
	cleanCmd.Flags().BoolVar(&cleanOrphans, "orphans", false, "Only remove worktrees and directories referenced by no task")
	rootCmd.AddCommand(cleanCmd)
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove completed and orphaned task worktrees",
	Long: `clean scans .worktrees/ and removes worktrees already merged into a DONE
task, Git worktrees referenced by no task at all, and stray directories
that aren't Git worktrees. A worktree with uncommitted tracked changes is
always left in place. Without --completed or --orphans, both are removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		e := engine.New(ctx)

		plan, err := e.PlanClean()
		if err != nil {
			return err
		}

		includeCompleted, includeOrphans := cleanCompleted, cleanOrphans
		if !cleanCompleted && !cleanOrphans {
			includeCompleted, includeOrphans = true, true
		}

		fmt.Printf("completed: %d, orphan worktrees: %d, stray directories: %d\n",
			len(plan.Completed), len(plan.Orphans), len(plan.Stray))
		if !cleanYes && !confirm("Proceed with removal?") {
			fmt.Println("aborted")
			return nil
		}

		report, err := e.Clean(plan, includeCompleted, includeOrphans)
		if err != nil {
			return err
		}
		for _, p := range report.Removed {
			fmt.Printf("  removed %s\n", p)
		}
		for _, p := range report.Skipped {
			fmt.Printf("  skipped %s (uncommitted tracked changes)\n", p)
		}
		for p, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "  error %s: %s\n", p, e)
		}
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
