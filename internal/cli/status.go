package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/task"
)

var (
	statusFollow   bool
	statusInterval float64
)

func init() {
	statusCmd.Flags().BoolVarP(&statusFollow, "follow", "f", false, "Live-update status (like watch)")
	statusCmd.Flags().Float64VarP(&statusInterval, "interval", "n", 2.0, "Seconds between updates (with --follow)")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every task grouped by bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		if statusFollow {
			return followStatus(ctx)
		}
		return renderStatus(os.Stdout, ctx)
	},
}

func followStatus(ctx *burlctx.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	interval := time.Duration(statusInterval * float64(time.Second))
	var lastOutput string

	for {
		var buf bytes.Buffer
		if err := renderStatus(&buf, ctx); err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		output := buf.String()

		if output != lastOutput {
			fmt.Print("\033[H\033[2J")
			fmt.Printf("Every %.1fs: burl status\n\n", statusInterval)
			fmt.Print(output)
			lastOutput = output
		}

		select {
		case <-sigCh:
			fmt.Println()
			return nil
		case <-time.After(interval):
		}
	}
}

func renderStatus(w io.Writer, ctx *burlctx.Context) error {
	idx, err := task.BuildIndex(ctx.WorkflowStateDir)
	if err != nil {
		return err
	}

	for _, bucket := range task.Buckets {
		entries := idx.TasksInBucket(bucket)
		symbol, color := bucketDisplay(bucket)
		fmt.Fprintf(w, "%s%s %-7s%s (%d)\n", color, symbol, bucket, ansiReset, len(entries))
		for _, entry := range entries {
			data, err := os.ReadFile(entry.Path)
			if err != nil {
				continue
			}
			file, err := task.ParseFile(data)
			if err != nil {
				fmt.Fprintf(w, "    %s  %s(unparseable: %s)%s\n", entry.ID, ansiRed, err, ansiReset)
				continue
			}
			fm := file.FrontMatter
			extra := ""
			if fm.AssignedTo != "" {
				extra = fmt.Sprintf("  assigned_to=%s", fm.AssignedTo)
			}
			fmt.Fprintf(w, "    %s  [%s] %s%s\n", entry.ID, fm.EffectivePriority(), fm.Title, extra)
		}
	}
	return nil
}
