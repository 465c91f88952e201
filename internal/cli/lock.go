package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burl-dev/burl/internal/burlctx"
	"github.com/burl-dev/burl/internal/lock"
)

func init() {
	lockCmd.AddCommand(lockListCmd)
	lockCmd.AddCommand(lockClearCmd)
	rootCmd.AddCommand(lockCmd)
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and clear workflow locks",
}

var lockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List held locks, flagging stale ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		locks, err := lock.List(ctx.LocksDir, ctx.Config.LockStaleMinutes)
		if err != nil {
			return err
		}
		if len(locks) == 0 {
			fmt.Println("No locks held.")
			return nil
		}
		for _, l := range locks {
			staleMark := ""
			if l.Stale {
				staleMark = "  (stale)"
			}
			fmt.Printf("%-20s  owner=%s  action=%s  pid=%d  since=%s%s\n",
				l.Name, l.Owner, l.Action, l.PID, l.CreatedAt.Format("2006-01-02T15:04:05Z"), staleMark)
		}
		return nil
	},
}

var lockClearCmd = &cobra.Command{
	Use:   "clear <name>",
	Short: "Forcibly clear a lock by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := burlctx.Resolve(".")
		if err != nil {
			return err
		}
		if err := lock.Clear(ctx.LocksDir, args[0], true); err != nil {
			return err
		}
		fmt.Printf("cleared lock %s\n", args[0])
		return nil
	},
}
