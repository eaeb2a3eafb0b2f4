package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	kerrors "github.com/PolarWolf314/cipherdesk/internal/errors"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLite stores identities, grants and resources in a local SQLite database.
// It implements IdentityStore, GrantLedger, GrantReplacer and ResourceStore.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// its schema. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// One connection serialises writers, which SQLite requires anyway, and
	// keeps ":memory:" databases from splitting across pooled connections.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Identity{}, &Grant{}, &Resource{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Identities returns the store as an IdentityStore.
func (s *SQLite) Identities() IdentityStore { return sqliteIdentities{s.db} }

// Grants returns the store as a GrantLedger.
func (s *SQLite) Grants() GrantLedger { return sqliteGrants{s.db} }

// Resources returns the store as a ResourceStore.
func (s *SQLite) Resources() ResourceStore { return sqliteResources{s.db} }

type sqliteIdentities struct{ db *gorm.DB }

func (s sqliteIdentities) Get(ctx context.Context, userID string) (*Identity, error) {
	var identity Identity
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	return &identity, nil
}

func (s sqliteIdentities) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	var identity Identity
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity by email: %w", err)
	}
	return &identity, nil
}

func (s sqliteIdentities) Create(ctx context.Context, identity Identity) (*Identity, error) {
	identity.Email = NormalizeEmail(identity.Email)

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&identity)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create identity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: user %s or email %s", kerrors.ErrIdentityExists, identity.UserID, identity.Email)
	}
	return &identity, nil
}

func (s sqliteIdentities) Update(ctx context.Context, userID string, update IdentityUpdate) (*Identity, error) {
	var updated *Identity

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var identity Identity
		if err := tx.Where("user_id = ?", userID).First(&identity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %s", kerrors.ErrVaultNotFound, userID)
			}
			return fmt.Errorf("failed to load identity: %w", err)
		}

		if update.Email != nil {
			email := NormalizeEmail(*update.Email)
			var clashes int64
			if err := tx.Model(&Identity{}).Where("email = ? AND user_id <> ?", email, userID).Count(&clashes).Error; err != nil {
				return fmt.Errorf("failed to check email: %w", err)
			}
			if clashes > 0 {
				return fmt.Errorf("%w: email %s", kerrors.ErrIdentityExists, email)
			}
			identity.Email = email
		}

		if err := tx.Model(&Identity{}).Where("user_id = ?", userID).Updates(map[string]any{
			"email":      identity.Email,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return fmt.Errorf("failed to update identity: %w", err)
		}

		if err := tx.Where("user_id = ?", userID).First(&identity).Error; err != nil {
			return fmt.Errorf("failed to reload identity: %w", err)
		}
		updated = &identity
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type sqliteGrants struct{ db *gorm.DB }

func (s sqliteGrants) Get(ctx context.Context, resourceID, userID string) (*Grant, error) {
	var grant Grant
	err := s.db.WithContext(ctx).Where("resource_id = ? AND user_id = ?", resourceID, userID).First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grant: %w", err)
	}
	return &grant, nil
}

func (s sqliteGrants) List(ctx context.Context, resourceID string) ([]Grant, error) {
	var grants []Grant
	err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).Order("created_at, user_id").Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	return grants, nil
}

// Create inserts the grant. The (resource_id, user_id) unique index is the
// authority on duplicates: a conflicting insert is reported as ErrGrantExists.
func (s sqliteGrants) Create(ctx context.Context, grant Grant) (*Grant, error) {
	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&grant)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create grant: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: resource %s, user %s", kerrors.ErrGrantExists, grant.ResourceID, grant.UserID)
	}
	return &grant, nil
}

func (s sqliteGrants) Delete(ctx context.Context, grantID string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", grantID).Delete(&Grant{}).Error; err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

func (s sqliteGrants) ReplaceGrants(ctx context.Context, resourceID string, grants []Grant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", resourceID).Delete(&Grant{}).Error; err != nil {
			return fmt.Errorf("failed to delete grants: %w", err)
		}
		for _, grant := range grants {
			if grant.ResourceID != resourceID {
				return fmt.Errorf("grant for resource %s passed to replace grants of %s", grant.ResourceID, resourceID)
			}
			if grant.ID == "" {
				grant.ID = uuid.New().String()
			}
			if err := tx.Create(&grant).Error; err != nil {
				return fmt.Errorf("failed to create grant for user %s: %w", grant.UserID, err)
			}
		}
		return nil
	})
}

type sqliteResources struct{ db *gorm.DB }

func (s sqliteResources) Get(ctx context.Context, id string) (*Resource, error) {
	var resource Resource
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&resource).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resource: %w", err)
	}
	return &resource, nil
}

func (s sqliteResources) List(ctx context.Context, filter ResourceFilter) ([]Resource, error) {
	query := s.db.WithContext(ctx).Model(&Resource{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Encrypted != nil {
		query = query.Where("encrypted = ?", *filter.Encrypted)
	}

	var resources []Resource
	if err := query.Order("created_at, id").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	return resources, nil
}

func (s sqliteResources) Put(ctx context.Context, resource Resource) (*Resource, error) {
	if resource.ID == "" {
		resource.ID = uuid.New().String()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Resource
		err := tx.Where("id = ?", resource.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&resource).Error
		case err != nil:
			return err
		}
		resource.CreatedAt = existing.CreatedAt
		return tx.Save(&resource).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save resource %s: %w", resource.ID, err)
	}
	return &resource, nil
}

func (s sqliteResources) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Resource{}).Error; err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}
