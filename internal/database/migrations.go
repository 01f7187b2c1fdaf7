package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/diagrams"
	"github.com/MarcoPoloResearchLab/schemaboard/internal/remotestore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillRemoteNames = "2026-05-11_backfill_remote_diagram_names"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillRemoteNames, apply: backfillRemoteNames},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows mirrored before names were required carry an empty name.
func backfillRemoteNames(db *gorm.DB) error {
	return db.Model(&remotestore.DiagramRow{}).
		Where("TRIM(name) = ''").
		Update("name", diagrams.DefaultName).Error
}
