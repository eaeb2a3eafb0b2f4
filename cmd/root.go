package cmd

import (
	logger "github.com/PolarWolf314/cipherdesk/internal/logging"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger

	RootCmd = &cobra.Command{
		Use:   "cipherdesk",
		Short: "cipherdesk - end-to-end encrypted projects, wikis, snippets and task groups",
		Long: `cipherdesk keeps your workspace data encrypted with keys only you and the
people you share with can unlock.

Every user has a vault: an RSA key pair whose private half is sealed with a
password. Each resource is encrypted with its own document key, and that key
is wrapped once for every user allowed to read it.

Usage:
  cipherdesk <command> [flags]

Run 'cipherdesk help <command>' for more details on a specific command.
`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("Initializing %s with verbose=%t, debug=%t", cmd.CommandPath(), verbose, debug)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.AddCommand(vaultCmd)
	RootCmd.AddCommand(resourceCmd)
	RootCmd.AddCommand(shareCmd)
	RootCmd.AddCommand(revokeCmd)
	RootCmd.AddCommand(rekeyCmd)
	RootCmd.AddCommand(grantsCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(logCmd)
}

// ResetGlobalState resets all global flag variables to their default values for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	resetVaultCommandState()
	resetResourceCommandState()
	resetAccessCommandState()
	resetMigrateCommandState()
	resetLogCommandState()
}
