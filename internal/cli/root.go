package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/engine"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "burl",
	Short: "File-based workflow orchestrator for agentic coding pipelines",
	Long: `burl moves tasks, stored as Markdown files with YAML front matter, through
a claim -> submit -> validate -> approve pipeline. Each task gets its own
Git branch and worktree; task state lives on a dedicated workflow branch
so the whole pipeline's history is ordinary Git history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("burl %s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newEngine resolves the workflow context from the current directory and
// builds an Engine, the setup every transition subcommand shares.
func newEngine() (*engine.Engine, error) {
	ctx, err := burlctx.Resolve(".")
	if err != nil {
		return nil, err
	}
	return engine.New(ctx), nil
}
