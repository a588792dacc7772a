package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"trailcatalog-api/config"
	"trailcatalog-api/models"
	"trailcatalog-api/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Profile{}, &models.AdminRole{}))
	return db
}

type recordingMailer struct {
	sent []string
}

func (m *recordingMailer) SendWelcomeEmail(email, name string) error {
	m.sent = append(m.sent, email)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret",
		TokenTTL:    7 * 24 * time.Hour,
		AdminEmails: []string{"admin@example.com"},
	}
}

func newTestAuthService(t *testing.T, cfg *config.Config) (*AuthService, *recordingMailer) {
	db := newTestDB(t)
	mailer := &recordingMailer{}
	svc := NewAuthService(cfg,
		repositories.NewProfileRepository(db),
		repositories.NewRoleRepository(db),
		NewMemoryDenylist(),
		NewStateStore(10*time.Minute),
		mailer,
		zap.NewNop())
	return svc, mailer
}

func testProfile() models.Profile {
	return models.Profile{ID: "u1", Email: "u1@example.com"}
}

// staleEmailLookup misses every email lookup, like a check that ran just
// before a competing sign-up committed.
type staleEmailLookup struct {
	ProfileStore
}

func (staleEmailLookup) FindByEmail(context.Context, string) (models.Profile, error) {
	return models.Profile{}, repositories.ErrProfileNotFound
}
