// File: /database/database.go
package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"trailcatalog-api/models"
)

// Initialize opens the managed document store. driver is one of mysql,
// postgres or sqlite.
func Initialize(driver, databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(databaseURL)
	case "postgres":
		dialector = postgres.Open(databaseURL)
	case "sqlite":
		dialector = sqlite.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   logger.Default.LogMode(logLevel),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	err := db.AutoMigrate(
		&models.RoutePoint{},
		&models.Profile{},
		&models.AdminRole{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	addCustomIndexes(db, log)
	return nil
}

func addCustomIndexes(db *gorm.DB, log *zap.Logger) {
	// Ownership-scoped listing orders by creation time.
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_route_points_owner_created ON route_points(created_by, created_at DESC)").Error; err != nil {
		log.Warn("could not create index for route_points owner listing", zap.Error(err))
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_route_points_name ON route_points(name)").Error; err != nil {
		log.Warn("could not create index for route_points name", zap.Error(err))
	}
}

// SeedData populates an empty catalog with a few sample routes for development.
func SeedData(db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.RoutePoint{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Info("database already has data, skipping seed")
		return nil
	}

	now := time.Now().UTC()
	samples := []models.RoutePoint{
		{
			ID:          uuid.NewString(),
			Name:        "Vyhlídka u jezera",
			Latitude:    50.0755,
			Longitude:   14.4378,
			Description: "Krátká okružní trasa kolem jezera s vyhlídkou na protější svah.",
			Difficulty:  models.DifficultyEasy,
			RouteType:   models.RouteTypeLoop,
			SuitableFor: models.StringSlice{models.SuitablePedestrians, models.SuitableFamilies},
			Images:      models.StringSlice{},
			CreatedAt:   now.Add(-time.Hour),
			CreatedBy:   "seed",
		},
		{
			ID:          uuid.NewString(),
			Name:        "Hřebenovka Krkonoše",
			Latitude:    50.7363,
			Longitude:   15.7399,
			Description: "Náročný přechod po hřebeni s dlouhými úseky nad hranicí lesa.",
			Difficulty:  models.DifficultyHard,
			RouteType:   models.RouteTypeTraverse,
			SuitableFor: models.StringSlice{models.SuitablePedestrians},
			Images:      models.StringSlice{},
			CreatedAt:   now,
			CreatedBy:   "seed",
		},
	}

	for _, route := range samples {
		if err := db.Create(&route).Error; err != nil {
			log.Warn("could not create sample route", zap.String("name", route.Name), zap.Error(err))
		}
	}

	log.Info("database seeded with sample routes", zap.Int("count", len(samples)))
	return nil
}
