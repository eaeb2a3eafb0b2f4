package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/store"
	"github.com/PolarWolf314/cipherdesk/internal/ui"

	"github.com/briandowns/spinner"
	"github.com/spf13/pflag"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// formatError renders a workflow error for the user. unexpected is true for
// errors that should also make the command exit non-zero.
func formatError(err error) (message string, unexpected bool) {
	fail := ui.Error.Sprint("✗") + " "
	hint := "\n" + ui.Info.Sprint("→") + " "

	switch {
	case errors.Is(err, kerrors.ErrUserNotConfigured):
		return fail + "No user email is configured" +
			hint + "Run " + ui.Code.Sprint("cipherdesk vault setup --email you@example.com") + " first", false

	case errors.Is(err, kerrors.ErrVaultNotFound):
		return fail + "You have not set up a vault yet" +
			hint + "Run " + ui.Code.Sprint("cipherdesk vault setup") + " first", false

	case errors.Is(err, kerrors.ErrVaultExists):
		return fail + "A vault already exists for this user" +
			hint + "Run " + ui.Code.Sprint("cipherdesk vault unlock") + " to open it", false

	case errors.Is(err, kerrors.ErrVaultLocked):
		return fail + "Your vault is locked" +
			hint + "Run " + ui.Code.Sprint("cipherdesk vault unlock") + " first", false

	case errors.Is(err, kerrors.ErrVaultUnlock):
		return fail + "Could not unlock the vault" +
			hint + "Check your password. The vault stays locked.", false

	case errors.Is(err, kerrors.ErrRecipientNotFound):
		return fail + "No vault found for that user: " + err.Error() +
			hint + "They need to run " + ui.Code.Sprint("cipherdesk vault setup") + " before you can share with them", false

	case errors.Is(err, kerrors.ErrGrantMissing):
		return fail + "No access: " + err.Error(), false

	case errors.Is(err, kerrors.ErrNotOwner):
		return fail + "Only the owner can do that: " + err.Error(), false

	case errors.Is(err, kerrors.ErrSelfRevoke):
		return fail + "The owner's access cannot be revoked", false

	case errors.Is(err, kerrors.ErrResourceNotFound),
		errors.Is(err, kerrors.ErrResourceExists),
		errors.Is(err, kerrors.ErrIdentityExists),
		errors.Is(err, kerrors.ErrInvalidEmail),
		errors.Is(err, kerrors.ErrEmptyPassword),
		errors.Is(err, kerrors.ErrWeakIterations),
		errors.Is(err, kerrors.ErrInvalidDateFormat):
		return fail + err.Error(), false

	case errors.Is(err, kerrors.ErrResourceNotEncrypted):
		return fail + err.Error() +
			hint + "Run " + ui.Code.Sprint("cipherdesk migrate") + " to seal it first", false

	default:
		return fail + err.Error(), true
	}
}

// finishWithError puts err in the spinner's final message and returns it
// only when it is unexpected.
func finishWithError(s *spinner.Spinner, err error) error {
	message, unexpected := formatError(err)
	s.FinalMSG = message
	if unexpected {
		return err
	}
	return nil
}

// resourceTypeValue is a pflag.Value that only accepts known resource types.
type resourceTypeValue struct {
	target *store.ResourceType
}

var _ pflag.Value = resourceTypeValue{}

func newResourceTypeValue(target *store.ResourceType, value store.ResourceType) resourceTypeValue {
	*target = value
	return resourceTypeValue{target: target}
}

func (v resourceTypeValue) String() string {
	if v.target == nil {
		return ""
	}
	return string(*v.target)
}

func (v resourceTypeValue) Set(s string) error {
	t := store.ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return fmt.Errorf("unknown resource type %q, expected one of %s", s, resourceTypeNames())
	}
	*v.target = t
	return nil
}

func (v resourceTypeValue) Type() string {
	return "type"
}

func resourceTypeNames() string {
	names := make([]string, len(store.ResourceTypes))
	for i, t := range store.ResourceTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
