package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiagramFeedback struct {
	Id                     uuid.UUID      `gorm:"type:char(36);primaryKey"`
	SessionId              uuid.NullUUID  `gorm:"type:char(36);index"`
	Kind                   string         `gorm:"size:20;not null;index"`
	DiagramContent         string         `gorm:"type:text;not null"`
	UserPrompt             sql.NullString `gorm:"type:text"`
	Rating                 int            `gorm:"not null"`
	FeedbackType           string         `gorm:"size:32;not null"`
	Comment                sql.NullString `gorm:"type:text"`
	ImprovementSuggestions sql.NullString `gorm:"type:text"`
	CreatedAt              time.Time      `gorm:"index"`
}

type GeneralFeedback struct {
	Id           uuid.UUID     `gorm:"type:char(36);primaryKey"`
	SessionId    uuid.NullUUID `gorm:"type:char(36);index"`
	FeedbackType string        `gorm:"size:32;not null"`
	Rating       sql.NullInt32
	Comment      string         `gorm:"type:text;not null"`
	FeatureArea  sql.NullString `gorm:"size:64"`
	CreatedAt    time.Time      `gorm:"index"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&DiagramFeedback{}, &GeneralFeedback{}); err != nil {
		return fmt.Errorf("error creating feedback tables: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&GeneralFeedback{}, &DiagramFeedback{}); err != nil {
		return fmt.Errorf("error dropping feedback tables: %w", err)
	}
	return nil
}
