// File: /models/user.go
package models

import (
	"strings"
	"time"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Profile is the user record upserted on every session establishment.
type Profile struct {
	ID           string     `json:"uid" gorm:"primaryKey;size:191"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	DisplayName  string     `json:"display_name" gorm:"size:255"`
	Provider     string     `json:"provider" gorm:"size:32"`
	PasswordHash string     `json:"-" gorm:"size:255"`
	AvatarURL    *string    `json:"avatar_url" gorm:"size:500"`
	LastSignInAt *time.Time `json:"last_sign_in_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Profile) TableName() string {
	return "user_profiles"
}

// AdminRole marks an actor whose queries see every record.
type AdminRole struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:191"`
	Role      string    `json:"role" gorm:"size:32;default:'admin'"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayNameFallback derives a display name from an email when the provider gave none.
func DisplayNameFallback(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
