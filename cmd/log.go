package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/audit"
	"github.com/PolarWolf314/cipherdesk/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	logLimit     int
	logReverse   bool
	logUser      string
	logOperation string
	logResource  string
	logSince     string
	logUntil     string
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logUser, "user", "", "filter by user email")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	logCmd.Flags().StringVar(&logResource, "resource", "", "filter by resource ID")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logOperation = ""
	logResource = ""
	logSince = ""
	logUntil = ""
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the local audit log",
	Long: `Displays the audit log of vault and sharing operations made on this machine.

The log never contains keys or field content.

Examples:
  cipherdesk log                               # View full log
  cipherdesk log -n 10                         # Last 10 entries
  cipherdesk log --reverse                     # Most recent first
  cipherdesk log --operation share,revoke      # Filter by operation
  cipherdesk log --resource wiki/onboarding    # Filter by resource
  cipherdesk log --since 2024-01-01            # Filter by date
  cipherdesk log --json                        # JSON output`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting log command")
		spinner, cleanup := startSpinner("Loading audit log...")
		defer cleanup()

		result, err := workflows.Log(context.Background(), workflows.LogOptions{
			Limit:      logLimit,
			Reverse:    logReverse,
			User:       logUser,
			Operations: logOperation,
			Resource:   logResource,
			Since:      logSince,
			Until:      logUntil,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		Logger.Debugf("Parsed %d entries from audit log", result.TotalEntriesBeforeFilter)
		Logger.Debugf("After filtering: %d entries", len(result.Entries))

		if len(result.Entries) == 0 {
			if result.TotalEntriesBeforeFilter == 0 {
				spinner.FinalMSG = "No audit log entries found."
			} else {
				spinner.FinalMSG = "No audit log entries found matching the filters."
			}
			return nil
		}

		if logJSON {
			data, err := json.MarshalIndent(result.Entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal entries to JSON: %w", err)
			}
			spinner.FinalMSG = string(data)
			return nil
		}

		spinner.FinalMSG = formatLogEntries(result.Entries)
		return nil
	},
}

func formatLogEntries(entries []audit.Entry) string {
	out := ""
	for _, e := range entries {
		datetime := workflows.FormatDateTime(e.Timestamp)
		details := workflows.FormatDetails(e)
		out += fmt.Sprintf("%-19s  %-25s  %-12s  %s\n", datetime, e.User, e.Operation, details)
	}
	return out
}
