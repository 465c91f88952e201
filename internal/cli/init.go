package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/burl-dev/burl/internal/config"
	"github.com/burl-dev/burl/internal/fileutil"
	"github.com/burl-dev/burl/internal/gitops"
	"github.com/burl-dev/burl/internal/task"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize the burl workflow in a repository",
	Long: `init creates the workflow branch and its worktree, the five bucket
directories (READY/DOING/QA/DONE/BLOCKED), and a default config.yaml, then
commits them to the workflow branch. Defaults to the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		repoRoot, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		if _, err := os.Stat(filepath.Join(repoRoot, ".git")); err != nil {
			return fmt.Errorf("%s is not a git repository (no .git directory)", repoRoot)
		}

		cfg := config.Default()
		base := gitops.NewRepo(repoRoot)

		if !base.BranchExists(cfg.WorkflowBranch) {
			head, err := base.HeadCommit("HEAD")
			if err != nil {
				return fmt.Errorf("resolving HEAD: %w", err)
			}
			if err := base.CreateBranch(cfg.WorkflowBranch, head); err != nil {
				return fmt.Errorf("creating workflow branch %s: %w", cfg.WorkflowBranch, err)
			}
			fmt.Printf("  branch   %s\n", cfg.WorkflowBranch)
		}

		workflowWorktree := filepath.Join(repoRoot, cfg.WorkflowWorktree)
		if _, err := os.Stat(workflowWorktree); os.IsNotExist(err) {
			if err := base.CreateWorktree(workflowWorktree, cfg.WorkflowBranch); err != nil {
				return fmt.Errorf("creating workflow worktree: %w", err)
			}
			fmt.Printf("  worktree %s\n", cfg.WorkflowWorktree)
		}

		stateDir := filepath.Join(workflowWorktree, ".workflow")
		for _, bucket := range task.Buckets {
			if err := fileutil.EnsureDir(filepath.Join(stateDir, bucket)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", bucket, err)
			}
		}
		fmt.Println("  dirs     .workflow/{READY,DOING,QA,DONE,BLOCKED}")

		configPath := filepath.Join(stateDir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding default config: %w", err)
			}
			if err := fileutil.AtomicWrite(configPath, data); err != nil {
				return fmt.Errorf("writing config.yaml: %w", err)
			}
			fmt.Println("  config   .workflow/config.yaml")
		}

		gitignorePath := filepath.Join(stateDir, ".gitignore")
		if _, err := os.Stat(gitignorePath); os.IsNotExist(err) {
			if err := os.WriteFile(gitignorePath, []byte("locks/\n"), 0644); err != nil {
				return fmt.Errorf("writing .gitignore: %w", err)
			}
		}

		workflowRepo := gitops.NewRepo(workflowWorktree)
		workflowRepo.EnsureIdentity()
		if err := workflowRepo.StageAll(); err != nil {
			return fmt.Errorf("staging workflow worktree: %w", err)
		}
		if staged, err := workflowRepo.HasStagedChanges(); err == nil && staged {
			if err := workflowRepo.Commit("burl: init workflow"); err != nil {
				return fmt.Errorf("committing workflow worktree: %w", err)
			}
			fmt.Println("  commit   burl: init workflow")
		}

		fmt.Println("\nDone.")
		return nil
	},
}
