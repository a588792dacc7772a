// File: /repositories/profile_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"trailcatalog-api/models"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrDuplicateEmail  = errors.New("another profile already uses this email")
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (models.Profile, error) {
	var profile models.Profile
	return profile, r.first(ctx, &profile, "id = ?", id)
}

func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (models.Profile, error) {
	var profile models.Profile
	return profile, r.first(ctx, &profile, "email = ?", strings.ToLower(email))
}

func (r *ProfileRepository) first(ctx context.Context, dest *models.Profile, query string, arg string) error {
	err := r.db.WithContext(ctx).Where(query, arg).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: load profile: %v", ErrStorage, err)
	}
	return nil
}

// Upsert inserts the profile or refreshes the mutable fields of an existing
// one. It reports whether a new row was created.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) (bool, error) {
	profile.Email = strings.ToLower(profile.Email)
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Profile
		err := tx.Where("id = ?", profile.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			if err := tx.Create(profile).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrDuplicateEmail
				}
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"email":           profile.Email,
			"display_name":    profile.DisplayName,
			"provider":        profile.Provider,
			"last_sign_in_at": profile.LastSignInAt,
		}
		if profile.PasswordHash != "" {
			updates["password_hash"] = profile.PasswordHash
		}
		// Keep a custom avatar once one is set.
		if profile.AvatarURL != nil && existing.AvatarURL == nil {
			updates["avatar_url"] = *profile.AvatarURL
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateEmail
			}
			return err
		}
		profile.CreatedAt = existing.CreatedAt
		if profile.PasswordHash == "" {
			profile.PasswordHash = existing.PasswordHash
		}
		return nil
	})
	if errors.Is(err, ErrDuplicateEmail) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("%w: upsert profile: %v", ErrStorage, err)
	}
	return created, nil
}

// isDuplicateKey recognises unique violations from every driver, translated
// or not.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

// RoleRepository answers whether an actor has admin scope.
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) IsAdmin(ctx context.Context, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.AdminRole{}).Where("user_id = ?", actorID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: lookup admin role: %v", ErrStorage, err)
	}
	return count > 0, nil
}

// Grant marks actorID as admin. Granting twice is a no-op.
func (r *RoleRepository) Grant(ctx context.Context, actorID string) error {
	role := models.AdminRole{UserID: actorID, Role: "admin"}
	if err := r.db.WithContext(ctx).Where(models.AdminRole{UserID: actorID}).FirstOrCreate(&role).Error; err != nil {
		return fmt.Errorf("%w: grant admin role: %v", ErrStorage, err)
	}
	return nil
}
