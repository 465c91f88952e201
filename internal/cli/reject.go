package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(rejectCmd)
}

var rejectCmd = &cobra.Command{
	Use:   "reject [task-id] -- <reason>",
	Short: "Reject a QA task back to READY (or BLOCKED) with a reason",
	Long: `reject requires a non-empty reason, increments qa_attempts, and records
the rejection in the task's QA Report. The task returns to READY (with a
priority boost, if configured) unless qa_attempts has reached
qa_max_attempts, in which case it moves to BLOCKED.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID, reason := splitTaskIDAndReason(args)
		if reason == "" {
			return fmt.Errorf("reject requires a reason")
		}
		e, err := newEngine()
		if err != nil {
			return err
		}
		destination, err := e.Reject(taskID, reason)
		if err != nil {
			return err
		}
		fmt.Printf("%s: rejected to %s\n", taskID, destination)
		return nil
	},
}

// splitTaskIDAndReason accepts either "<task-id> <reason words...>" or just
// "<reason words...>" (task auto-selected from the single QA task), judging
// by whether the first argument looks like a task ID.
func splitTaskIDAndReason(args []string) (taskID, reason string) {
	if looksLikeTaskID(args[0]) {
		return args[0], strings.TrimSpace(strings.Join(args[1:], " "))
	}
	return "", strings.TrimSpace(strings.Join(args, " "))
}

func looksLikeTaskID(s string) bool {
	return strings.HasPrefix(strings.ToUpper(s), "TASK-")
}
