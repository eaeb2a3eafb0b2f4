package utils

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PasswordEnv names the environment variable read instead of prompting,
// for scripts and CI.
const PasswordEnv = "CIPHERDESK_PASSWORD"

// ReadPassphrase prompts the user for a passphrase without echoing input.
// Returns an error if stdin is not a terminal.
func ReadPassphrase(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())

	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot read passphrase: stdin is not a terminal (hint: set %s)", PasswordEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}

	return passphrase, nil
}

// ReadVaultPassword returns the vault password from PasswordEnv or, when
// unset, from a hidden prompt. With confirm the prompt asks twice.
func ReadVaultPassword(confirm bool) (string, error) {
	if password, ok := os.LookupEnv(PasswordEnv); ok {
		return password, nil
	}

	password, err := ReadPassphrase("Vault password: ")
	if err != nil {
		return "", err
	}
	if !confirm {
		return string(password), nil
	}

	again, err := ReadPassphrase("Confirm vault password: ")
	if err != nil {
		return "", err
	}
	if string(again) != string(password) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(password), nil
}

// IsTerminal returns true if stdin is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
