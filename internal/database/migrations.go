package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

const (
	migrationSeedDefaultCategories   = "2026-01-10_seed_default_categories"
	migrationBackfillCategoryUpdated = "2026-02-21_backfill_category_updated_at"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB, time.Time) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedDefaultCategories, apply: seedDefaultCategories},
		{name: migrationBackfillCategoryUpdated, apply: backfillCategoryUpdatedAt},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		now := time.Now().UTC()
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx, now); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: now.Unix()}).Error
		})
		if err != nil {
			return err
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

// seedDefaultCategories installs the built-in categories on an empty database only.
func seedDefaultCategories(db *gorm.DB, now time.Time) error {
	var count int64
	if err := db.Model(&preferences.CategoryRecord{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return preferences.SeedDefaultCategories(db, now.UnixMilli())
}

// backfillCategoryUpdatedAt gives categories saved before per-item timestamps their creation time.
func backfillCategoryUpdatedAt(db *gorm.DB, _ time.Time) error {
	return db.Model(&preferences.CategoryRecord{}).
		Where("updated_at_ms = 0").
		Update("updated_at_ms", gorm.Expr("created_at_ms")).Error
}
