package migration_0

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatSession struct {
	Id             uuid.UUID      `gorm:"type:char(36);primaryKey"`
	InitialPrompt  string         `gorm:"type:text;not null"`
	RequestedKinds datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt      time.Time
	LastActivity   time.Time

	Diagrams []DiagramState `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	Messages []ChatMessage  `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
}

type DiagramState struct {
	SessionId uuid.UUID `gorm:"type:char(36);primaryKey"`
	Kind      string    `gorm:"size:20;primaryKey"`
	Text      string    `gorm:"type:longtext;not null"`
	Version   int       `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

type ChatMessage struct {
	Id            uint           `gorm:"primaryKey;autoIncrement"`
	SessionId     uuid.UUID      `gorm:"type:char(36);index;not null"`
	Role          string         `gorm:"size:20;not null"`
	Content       string         `gorm:"type:text;not null"`
	AffectedKinds datatypes.JSON `gorm:"type:json"`
	Timestamp     time.Time      `gorm:"not null"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&ChatSession{}, &DiagramState{}, &ChatMessage{}); err != nil {
		return fmt.Errorf("error creating chat tables: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&ChatMessage{}, &DiagramState{}, &ChatSession{}); err != nil {
		return fmt.Errorf("error dropping chat tables: %w", err)
	}
	return nil
}
