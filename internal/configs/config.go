package configs

import (
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"
	"github.com/PolarWolf314/cipherdesk/internal/secrets"
	"github.com/PolarWolf314/cipherdesk/internal/utils"

	"github.com/google/uuid"
)

// Config is the user's cipherdesk configuration.
type Config struct {
	User    User    `toml:"user"`
	Storage Storage `toml:"storage"`
	Vault   Vault   `toml:"vault"`
	Revoke  Revoke  `toml:"revoke"`
	Migrate Migrate `toml:"migrate"`
}

type User struct {
	ID    string `toml:"id"`
	Email string `toml:"email"`
}

type Storage struct {
	// Database is the SQLite file. Empty means Settings.DefaultDatabasePath.
	Database string `toml:"database,omitempty"`
}

type Vault struct {
	// Iterations is the PBKDF2 count for new vaults. Existing vaults keep
	// the count they were created with.
	Iterations int `toml:"iterations"`
}

type Revoke struct {
	// Rekey makes every revoke re-encrypt the resource under a new key.
	Rekey bool `toml:"rekey"`
}

type Migrate struct {
	Concurrency int `toml:"concurrency"`
}

// DefaultConfig returns a config with defaults and no user.
func DefaultConfig() *Config {
	return &Config{
		Vault:   Vault{Iterations: secrets.DefaultIterations},
		Migrate: Migrate{Concurrency: 4},
	}
}

// LoadConfig loads the config file. A missing file yields DefaultConfig.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(CipherdeskSettings.ConfigPath); os.IsNotExist(err) {
		return config, nil
	}

	if err := LoadTOML(CipherdeskSettings.ConfigPath, config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes the config file.
func SaveConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := SaveTOML(CipherdeskSettings.ConfigPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// GenerateUserID generates a new user ID.
func GenerateUserID() string {
	return uuid.New().String()
}

// EnsureConfig loads the config and assigns a user ID on first use.
func EnsureConfig() (*Config, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	if config.User.ID == "" {
		config.User.ID = GenerateUserID()
		if err := SaveConfig(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate checks the config for values cipherdesk cannot work with.
func (c *Config) Validate() error {
	if c.User.Email != "" && !utils.IsValidEmail(c.User.Email) {
		return fmt.Errorf("%w: %s", kerrors.ErrInvalidEmail, c.User.Email)
	}
	if c.Vault.Iterations != 0 && c.Vault.Iterations < secrets.DefaultIterations {
		return fmt.Errorf("%w: vault.iterations = %d, minimum is %d", kerrors.ErrWeakIterations, c.Vault.Iterations, secrets.DefaultIterations)
	}
	if c.Migrate.Concurrency < 0 {
		return fmt.Errorf("migrate.concurrency must not be negative, got %d", c.Migrate.Concurrency)
	}
	return nil
}

// DatabasePath returns the SQLite database to open.
func (c *Config) DatabasePath() string {
	if c.Storage.Database != "" {
		return c.Storage.Database
	}
	return CipherdeskSettings.DefaultDatabasePath()
}

// RequireUser returns ErrUserNotConfigured until an email has been set.
func (c *Config) RequireUser() error {
	if c.User.ID == "" || c.User.Email == "" {
		return kerrors.ErrUserNotConfigured
	}
	return nil
}
