package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleUser      string = "user"
	RoleAssistant string = "assistant"
)

type ChatSession struct {
	Id             uuid.UUID      `gorm:"type:char(36);primaryKey"`
	InitialPrompt  string         `gorm:"type:text;not null"`
	RequestedKinds datatypes.JSON `gorm:"type:json;not null"` // JSON-encoded []string
	CreatedAt      time.Time
	LastActivity   time.Time

	Diagrams []DiagramState `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
	Messages []ChatMessage  `gorm:"foreignKey:SessionId;constraint:OnDelete:CASCADE"`
}

// DiagramState holds the current definition of one kind within a session.
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
	AffectedKinds datatypes.JSON `gorm:"type:json"` // JSON-encoded []string
	Timestamp     time.Time      `gorm:"not null"`
}

const (
	FeedbackDiagramQuality    string = "diagram_quality"
	FeedbackDiagramAccuracy   string = "diagram_accuracy"
	FeedbackEditSatisfaction  string = "edit_satisfaction"
	FeedbackOverallExperience string = "overall_experience"
	FeedbackFeatureRequest    string = "feature_request"
	FeedbackBugReport         string = "bug_report"
)

var FeedbackTypes = []string{
	FeedbackDiagramQuality, FeedbackDiagramAccuracy, FeedbackEditSatisfaction,
	FeedbackOverallExperience, FeedbackFeatureRequest, FeedbackBugReport,
}

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
