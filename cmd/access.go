package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/PolarWolf314/cipherdesk/internal/ui"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
	"github.com/PolarWolf314/cipherdesk/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	accessUserEmail string
	revokeRekey     bool
)

func resetAccessCommandState() {
	accessUserEmail = ""
	revokeRekey = false
}

func init() {
	shareCmd.Flags().StringVarP(&accessUserEmail, "user", "u", "", "email of the user to share with")
	_ = shareCmd.MarkFlagRequired("user")

	revokeCmd.Flags().StringVarP(&accessUserEmail, "user", "u", "", "email of the user to revoke")
	revokeCmd.Flags().BoolVar(&revokeRekey, "rekey", false, "re-encrypt the resource under a new key after revoking")
	_ = revokeCmd.MarkFlagRequired("user")
}

var shareCmd = &cobra.Command{
	Use:   "share <resource>",
	Short: "Give another user access to an encrypted resource",
	Long: `Wraps the resource's document key with the other user's public key so
they can decrypt it. They must have set up a vault. Your vault must be
unlocked and you must have access yourself.

Sharing with someone who already has access changes nothing.

Examples:
  cipherdesk share wiki/onboarding --user bob@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting share command")
		spinner, cleanup := startSpinner("Sharing...")
		defer cleanup()

		result, err := workflows.Share(context.Background(), workflows.ShareOptions{
			ResourceID: args[0],
			Email:      accessUserEmail,
			Verbose:    verbose,
			Debug:      debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if result.AlreadyHadAccess {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " " + ui.Highlight.Sprint(result.RecipientEmail) +
				" already has access to " + ui.Highlight.Sprint(result.ResourceID)
			return nil
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Shared " + ui.Highlight.Sprint(result.ResourceID) +
			" with " + ui.Highlight.Sprint(result.RecipientEmail)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <resource>",
	Short: "Remove a user's access to a resource you own",
	Long: `Deletes the user's wrapped copy of the resource's document key.

Without --rekey the document key itself does not change. A revoked user who
kept a copy of the key or of the encrypted data can still read the content
as it was at the time of revocation. With --rekey every field is
re-encrypted under a new key and the remaining users' access is re-wrapped.
Set revoke.rekey = true in the config to make this the default.

Examples:
  cipherdesk revoke wiki/onboarding --user bob@example.com
  cipherdesk revoke wiki/onboarding --user bob@example.com --rekey`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting revoke command")
		spinner, cleanup := startSpinner("Revoking access...")
		defer cleanup()

		result, err := workflows.Revoke(context.Background(), workflows.RevokeOptions{
			ResourceID: args[0],
			Email:      accessUserEmail,
			Rekey:      revokeRekey,
			Verbose:    verbose,
			Debug:      debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		msg := ui.Success.Sprint("✓") + " Revoked " + ui.Highlight.Sprint(result.Email) + "'s access to " + ui.Highlight.Sprint(result.ResourceID) + "\n"
		if result.Rekeyed() {
			msg += ui.Success.Sprint("✓") + " Re-encrypted under a new key for " + pluralUsers(len(result.Rekey.Grantees))
			if len(result.Rekey.Dropped) > 0 {
				msg += "\n" + ui.Warning.Sprint("⚠") + " Dropped access for users without a vault:" + utils.FormatList(result.Rekey.Dropped)
			}
		} else {
			msg += ui.Warning.Sprint("⚠") + " The document key was not changed. Anything they already decrypted or copied stays readable to them.\n" +
				ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("cipherdesk rekey "+result.ResourceID) + " to re-encrypt under a new key"
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey <resource>",
	Short: "Re-encrypt a resource you own under a new document key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting rekey command")
		spinner, cleanup := startSpinner("Re-keying...")
		defer cleanup()

		result, err := workflows.Rekey(context.Background(), workflows.RekeyOptions{
			ResourceID: args[0],
			Verbose:    verbose,
			Debug:      debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		msg := ui.Success.Sprint("✓") + " Re-encrypted " + ui.Highlight.Sprint(result.ResourceID) + " " +
			ui.Muted.Sprintf("%d field(s)", result.Fields) + " for " + pluralUsers(len(result.Grantees))
		if len(result.Dropped) > 0 {
			msg += "\n" + ui.Warning.Sprint("⚠") + " Dropped access for users without a vault:" + utils.FormatList(result.Dropped)
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var grantsCmd = &cobra.Command{
	Use:   "grants <resource>",
	Short: "List who can open a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting grants command")
		spinner, cleanup := startSpinner("Loading grants...")
		defer cleanup()

		grants, err := workflows.Grants(context.Background(), workflows.GrantsOptions{
			ResourceID: args[0],
			Verbose:    verbose,
			Debug:      debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if len(grants) == 0 {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " Nobody holds a key for " + ui.Highlight.Sprint(args[0])
			return nil
		}

		var b strings.Builder
		for _, grant := range grants {
			who := grant.Email
			if who == "" {
				who = grant.UserID + " " + ui.Muted.Sprint("no vault")
			}
			if grant.Owner {
				who += " " + ui.Muted.Sprint("owner")
			}
			b.WriteString("  " + who + "  " + ui.Muted.Sprint(grant.CreatedAt.Format("2006-01-02")) + "\n")
		}
		spinner.FinalMSG = b.String()
		return nil
	},
}

func pluralUsers(n int) string {
	if n == 1 {
		return "1 user"
	}
	return fmt.Sprintf("%d users", n)
}
