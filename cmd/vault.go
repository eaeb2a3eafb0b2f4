package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PolarWolf314/cipherdesk/internal/configs"
	"github.com/PolarWolf314/cipherdesk/internal/ui"
	"github.com/PolarWolf314/cipherdesk/internal/utils"
	"github.com/PolarWolf314/cipherdesk/internal/workflows"

	"github.com/spf13/cobra"
)

var (
	setupEmail       string
	repairEmailValue string
)

func resetVaultCommandState() {
	setupEmail = ""
	repairEmailValue = ""
}

func init() {
	vaultSetupCmd.Flags().StringVarP(&setupEmail, "email", "e", "", "email other users share with you by")
	vaultRepairEmailCmd.Flags().StringVarP(&repairEmailValue, "email", "e", "", "the new email")
	_ = vaultRepairEmailCmd.MarkFlagRequired("email")

	vaultCmd.AddCommand(vaultSetupCmd)
	vaultCmd.AddCommand(vaultUnlockCmd)
	vaultCmd.AddCommand(vaultLockCmd)
	vaultCmd.AddCommand(vaultStatusCmd)
	vaultCmd.AddCommand(vaultRepairEmailCmd)
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage your key vault",
	Long: `Creates, unlocks and locks the vault that holds your private key.

While the vault is unlocked your private key is kept in the per-login
runtime directory so later commands can use it without asking for the
password again. Locking removes it.`,
}

var vaultSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create your vault",
	Long: `Generates your key pair and seals the private key with a password.

The password is read without echo, or from ` + utils.PasswordEnv + ` when set.
It cannot be recovered: losing it means losing access to everything
encrypted for you.

Examples:
  cipherdesk vault setup --email alice@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault setup command")

		password, err := utils.ReadVaultPassword(true)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Creating vault...")
		defer cleanup()

		result, err := workflows.Setup(context.Background(), workflows.SetupOptions{
			Email:    setupEmail,
			Password: password,
			Verbose:  verbose,
			Debug:    debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Vault created for " + ui.Highlight.Sprint(result.Email) + " and unlocked\n" +
			ui.Info.Sprint("→") + " Keep your password safe. It cannot be recovered." + sessionHint()
		return nil
	},
}

// sessionHint warns that the unlocked key will not outlive this command.
func sessionHint() string {
	if configs.CipherdeskSettings.HasRuntimeDir() {
		return ""
	}
	return "\n" + ui.Warning.Sprint("⚠") + " No " + ui.Code.Sprint("$XDG_RUNTIME_DIR") +
		" is set, so the vault locks again when this command exits"
}

var vaultUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Unlock your vault for this login session",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault unlock command")

		password, err := utils.ReadVaultPassword(false)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read password: %v", err)
		}

		spinner, cleanup := startSpinner("Unlocking vault...")
		defer cleanup()

		if err := workflows.Unlock(context.Background(), workflows.UnlockOptions{
			Password: password,
			Verbose:  verbose,
			Debug:    debug,
		}); err != nil {
			return finishWithError(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Vault unlocked" + sessionHint()
		return nil
	},
}

var vaultLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock your vault and forget the unlocked key",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault lock command")
		spinner, cleanup := startSpinner("Locking vault...")
		defer cleanup()

		result, err := workflows.Lock(context.Background(), workflows.LockOptions{Verbose: verbose, Debug: debug})
		if err != nil {
			return finishWithError(spinner, err)
		}

		if !result.WasUnlocked {
			spinner.FinalMSG = ui.Info.Sprint("ℹ") + " Vault was already locked"
			return nil
		}
		spinner.FinalMSG = ui.Success.Sprint("✓") + " Vault locked"
		return nil
	},
}

var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show your vault and encryption status",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault status command")
		spinner, cleanup := startSpinner("Reading vault status...")
		defer cleanup()

		result, err := workflows.Status(context.Background(), workflows.StatusOptions{Verbose: verbose, Debug: debug})
		if err != nil {
			return finishWithError(spinner, err)
		}

		email := result.Email
		if email == "" {
			email = ui.Muted.Sprint("not configured")
		}
		vault := ui.Warning.Sprint("not set up")
		if result.VaultExists {
			vault = ui.Success.Sprint("set up") + " " + ui.Muted.Sprint(strconv.Itoa(result.Iterations)+" PBKDF2 iterations")
		}
		state := ui.Sealed.Sprint("locked")
		if result.Unlocked {
			state = ui.Success.Sprint("unlocked")
		}

		lines := []string{
			ui.KeyValue("User", 9, result.UserID),
			ui.KeyValue("Email", 9, email),
			ui.KeyValue("Vault", 9, vault),
			ui.KeyValue("Session", 9, state),
			ui.KeyValue("Database", 9, ui.Path.Sprint(result.DatabasePath)),
			ui.KeyValue("Resources", 9, fmt.Sprintf("%d owned, %d encrypted", result.OwnedResources, result.OwnedEncrypted)),
		}

		msg := ""
		for _, line := range lines {
			msg += line + "\n"
		}
		if result.OwnedEncrypted < result.OwnedResources {
			msg += ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("cipherdesk migrate") + " to encrypt the rest\n"
		}
		spinner.FinalMSG = msg
		return nil
	},
}

var vaultRepairEmailCmd = &cobra.Command{
	Use:   "repair-email",
	Short: "Change the email stored with your vault",
	Long: `Changes the email other users find your vault by. Your keys and every
grant you hold are unchanged. The vault must be unlocked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting vault repair-email command")
		spinner, cleanup := startSpinner("Updating email...")
		defer cleanup()

		result, err := workflows.RepairEmail(context.Background(), workflows.RepairEmailOptions{
			NewEmail: repairEmailValue,
			Verbose:  verbose,
			Debug:    debug,
		})
		if err != nil {
			return finishWithError(spinner, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Email changed from " + ui.Highlight.Sprint(result.OldEmail) +
			" to " + ui.Highlight.Sprint(result.NewEmail)
		return nil
	},
}
