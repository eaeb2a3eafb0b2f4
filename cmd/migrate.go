package cmd

import (
	"context"
	"fmt"

	"github.com/PolarWolf314/cipherdesk/internal/store"
	"github.com/PolarWolf314/cipherdesk/internal/ui"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
	"github.com/PolarWolf314/cipherdesk/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	migrateMatch       string
	migrateType        store.ResourceType
	migrateDryRun      bool
	migrateConcurrency int
)

func resetMigrateCommandState() {
	migrateMatch = ""
	migrateType = ""
	migrateDryRun = false
	migrateConcurrency = 0
}

func init() {
	migrateCmd.Flags().StringVar(&migrateMatch, "match", "", "only migrate IDs matching this glob (e.g. 'wiki/**')")
	migrateCmd.Flags().Var(newResourceTypeValue(&migrateType, ""), "type", "only migrate this resource type")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list what would be encrypted without changing anything")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", 0, "resources to encrypt at once (default from config)")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Encrypt your existing plaintext resources",
	Long: `Seals every plaintext resource you own. Resources that are already
encrypted are skipped, so an interrupted run can simply be repeated.

A failure on one resource does not stop the others; failures are listed at
the end and the command exits non-zero.

Examples:
  cipherdesk migrate --dry-run
  cipherdesk migrate --match 'wiki/**'
  cipherdesk migrate --type snippet --concurrency 8`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting migrate command")
		spinner, cleanup := startSpinner("Encrypting resources...")
		defer cleanup()

		result, err := workflows.Migrate(context.Background(), workflows.MigrateOptions{
			Match:       migrateMatch,
			Type:        migrateType,
			DryRun:      migrateDryRun,
			Concurrency: migrateConcurrency,
			Verbose:     verbose,
			Debug:       debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if result.DryRun {
			if len(result.Sealed) == 0 {
				spinner.FinalMSG = ui.Info.Sprint("ℹ") + " Nothing to encrypt " + ui.Muted.Sprintf("%d already encrypted", result.Skipped)
				return nil
			}
			spinner.FinalMSG = ui.Warning.Sprint("[dry-run]") + fmt.Sprintf(" Would encrypt %d resource(s):", len(result.Sealed)) +
				utils.FormatList(result.Sealed) + ui.Info.Sprint("→") + " No changes made. Run without " + ui.Flag.Sprint("--dry-run") + " to encrypt."
			return nil
		}

		msg := ui.Success.Sprint("✓") + fmt.Sprintf(" Encrypted %d resource(s), %d already encrypted", len(result.Sealed), result.Skipped)
		if len(result.Failures) == 0 {
			spinner.FinalMSG = msg
			return nil
		}

		msg += "\n" + ui.Error.Sprint("✗") + fmt.Sprintf(" %d resource(s) failed:\n", len(result.Failures))
		for _, failure := range result.Failures {
			msg += "    - " + ui.Highlight.Sprint(failure.ResourceID) + ": " + failure.Err.Error() + "\n"
		}
		msg += ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("cipherdesk migrate") + " again to retry them"
		spinner.FinalMSG = msg
		return result.Err()
	},
}
