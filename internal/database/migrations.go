package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillQuestionChartType = "2026-10-01_backfill_question_chart_type"

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
		{name: migrationBackfillQuestionChartType, apply: backfillQuestionChartType},
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

// backfillQuestionChartType gives rows imported without a chart type the default one.
func backfillQuestionChartType(db *gorm.DB) error {
	return db.Model(&polls.Question{}).
		Where("chart_type IS NULL OR chart_type = ''").
		Update("chart_type", polls.ChartTypeHorizontalBar).Error
}
