package api

import "github.com/google/uuid"

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

type QueryRequest struct {
	Prompt       string   `json:"prompt"`
	DiagramTypes []string `json:"diagram_types"`
}

// QueryResponse maps each requested diagram type to its Mermaid definition.
type QueryResponse map[string]string

type DiagramFeedbackRequest struct {
	SessionID              *uuid.UUID `json:"session_id,omitempty"`
	DiagramType            string     `json:"diagram_type"`
	DiagramContent         string     `json:"diagram_content"`
	Rating                 int        `json:"rating"`
	FeedbackType           string     `json:"feedback_type,omitempty"`
	Comment                string     `json:"comment,omitempty"`
	UserPrompt             string     `json:"user_prompt,omitempty"`
	ImprovementSuggestions string     `json:"improvement_suggestions,omitempty"`
}

type GeneralFeedbackRequest struct {
	FeedbackType string     `json:"feedback_type"`
	Rating       *int       `json:"rating,omitempty"`
	Comment      string     `json:"comment"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	FeatureArea  string     `json:"feature_area,omitempty"`
}

type FeedbackResponse struct {
	FeedbackID         uuid.UUID `json:"feedback_id"`
	Message            string    `json:"message"`
	SuggestionsApplied []string  `json:"suggestions_applied"`
}

type FeedbackSummaryParams struct {
	Days int `schema:"days"`
}

type FeedbackTrends struct {
	WeeklyRatingTrend map[string]float64 `json:"weekly_rating_trend"`
	TotalThisPeriod   int                `json:"total_feedback_this_period"`
	ImprovementTrend  string             `json:"improvement_trend"`
}

type FeedbackSummaryResponse struct {
	TotalFeedbackCount int            `json:"total_feedback_count"`
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	CommonSuggestions  []string       `json:"common_suggestions"`
	ImprovementAreas   []string       `json:"improvement_areas"`
	RecentTrends       FeedbackTrends `json:"recent_feedback_trends"`
}

type AdaptationResponse struct {
	AdaptationSummary string `json:"adaptation_summary"`
}
