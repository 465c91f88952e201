package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/task"
)

var doctorRepair bool

func init() {
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "Reconcile inconsistent branch/worktree state")
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check for branch/worktree inconsistencies left by an interrupted transition",
	Long: `doctor finds tasks whose recorded branch exists without its worktree (or
vice versa) — the state a SIGINT between C9's branch-create and
worktree-add steps can leave behind. With --repair, a branch that exists
without its worktree gets the worktree re-added; a worktree that exists
without its branch is left for manual inspection, since recreating the
branch would need a base_sha no longer known to be correct.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		idx, err := task.BuildIndex(ctx.WorkflowStateDir)
		if err != nil {
			return err
		}

		clean := true
		for _, entry := range idx.All() {
			file, err := loadTaskFile(entry.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: unparseable: %s\n", entry.ID, err)
				clean = false
				continue
			}
			fm := file.FrontMatter
			if fm.Branch == "" && fm.Worktree == "" {
				continue
			}

			branchExists := ctx.Base.BranchExists(fm.Branch)
			_, statErr := os.Stat(fm.Worktree)
			worktreeExists := statErr == nil

			switch {
			case branchExists && worktreeExists:
				continue
			case branchExists && !worktreeExists:
				clean = false
				fmt.Printf("%s: branch %s exists, worktree %s is missing\n", entry.ID, fm.Branch, fm.Worktree)
				if doctorRepair {
					if err := ctx.Base.CreateWorktree(fm.Worktree, fm.Branch); err != nil {
						fmt.Fprintf(os.Stderr, "  repair failed: %s\n", err)
						continue
					}
					fmt.Println("  repaired: worktree re-added")
				}
			case !branchExists && worktreeExists:
				clean = false
				fmt.Printf("%s: worktree %s exists, branch %s is missing (manual repair needed)\n",
					entry.ID, fm.Worktree, fm.Branch)
			default:
				clean = false
				fmt.Printf("%s: neither branch %s nor worktree %s exist, but are recorded\n",
					entry.ID, fm.Branch, fm.Worktree)
			}
		}

		if clean {
			fmt.Println("No inconsistencies found.")
		}
		return nil
	},
}
