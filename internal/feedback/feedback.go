package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrInvalidFeedback = errors.New("invalid feedback")

const (
	lowRating          = 3
	poorRating         = 2
	maxHints           = 3
	hintCandidates     = 10
	maxSuggestions     = 5
	minWordLength      = 4
	minAreaReports     = 2
	DefaultSummaryDays = 30
)

type DiagramSubmission struct {
	SessionId   uuid.NullUUID
	Kind        diagram.Kind
	Content     string
	UserPrompt  string
	Rating      int
	Type        string
	Comment     string
	Suggestions string
}

type GeneralSubmission struct {
	SessionId   uuid.NullUUID
	Type        string
	Rating      int // 0 when not rated
	Comment     string
	FeatureArea string
}

type Receipt struct {
	Id                 uuid.UUID
	SuggestionsApplied []string
}

type Summary struct {
	Total             int
	AverageRating     float64
	Distribution      map[string]int
	CommonSuggestions []string
	ImprovementAreas  []string
	WeeklyAverages    map[string]float64
	Trend             string
}

type Service struct {
	db *database.Handle
}

func NewService(db *database.Handle) *Service {
	return &Service{db: db}
}

func (s *Service) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.db.Get(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

func wrap(err error, action string) error {
	if database.IsUnavailable(err) && !errors.Is(err, database.ErrUnavailable) {
		return fmt.Errorf("%w: error %s: %w", database.ErrUnavailable, action, err)
	}
	return fmt.Errorf("error %s: %w", action, err)
}

func validateType(t string) error {
	if !slices.Contains(database.FeedbackTypes, t) {
		return fmt.Errorf("%w: feedback_type must be one of %s", ErrInvalidFeedback, strings.Join(database.FeedbackTypes, ", "))
	}
	return nil
}

func validateRating(r int) error {
	if r < 1 || r > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", ErrInvalidFeedback, r)
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Service) SubmitDiagramFeedback(ctx context.Context, sub DiagramSubmission) (Receipt, error) {
	if sub.Type == "" {
		sub.Type = database.FeedbackDiagramQuality
	}
	if err := validateType(sub.Type); err != nil {
		return Receipt{}, err
	}
	if err := validateRating(sub.Rating); err != nil {
		return Receipt{}, err
	}
	if !sub.Kind.Valid() {
		return Receipt{}, fmt.Errorf("%w: %w: %q", ErrInvalidFeedback, diagram.ErrUnknownKind, sub.Kind)
	}
	if strings.TrimSpace(sub.Content) == "" {
		return Receipt{}, fmt.Errorf("%w: diagram_content must not be empty", ErrInvalidFeedback)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return Receipt{}, err
	}

	row := database.DiagramFeedback{
		Id:                     uuid.New(),
		SessionId:              sub.SessionId,
		Kind:                   string(sub.Kind),
		DiagramContent:         sub.Content,
		UserPrompt:             nullString(sub.UserPrompt),
		Rating:                 sub.Rating,
		FeedbackType:           sub.Type,
		Comment:                nullString(sub.Comment),
		ImprovementSuggestions: nullString(sub.Suggestions),
		CreatedAt:              time.Now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return Receipt{}, wrap(err, "saving diagram feedback")
	}

	return Receipt{Id: row.Id, SuggestionsApplied: suggestionsApplied(sub)}, nil
}

func suggestionsApplied(sub DiagramSubmission) []string {
	applied := []string{}
	if sub.Rating <= poorRating {
		applied = append(applied, "Low rating feedback will be used to improve future diagram generation")
	}
	if strings.TrimSpace(sub.Suggestions) != "" {
		applied = append(applied, "Your improvement suggestions have been noted for future enhancements")
	}
	if sub.Type == database.FeedbackDiagramAccuracy {
		applied = append(applied, "Accuracy feedback will help improve diagram content relevance")
	}
	return applied
}

func (s *Service) SubmitGeneralFeedback(ctx context.Context, sub GeneralSubmission) (Receipt, error) {
	if err := validateType(sub.Type); err != nil {
		return Receipt{}, err
	}
	if sub.Rating != 0 {
		if err := validateRating(sub.Rating); err != nil {
			return Receipt{}, err
		}
	}
	if strings.TrimSpace(sub.Comment) == "" {
		return Receipt{}, fmt.Errorf("%w: comment must not be empty", ErrInvalidFeedback)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return Receipt{}, err
	}

	row := database.GeneralFeedback{
		Id:           uuid.New(),
		SessionId:    sub.SessionId,
		FeedbackType: sub.Type,
		Rating:       sql.NullInt32{Int32: int32(sub.Rating), Valid: sub.Rating != 0},
		Comment:      strings.TrimSpace(sub.Comment),
		FeatureArea:  nullString(sub.FeatureArea),
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return Receipt{}, wrap(err, "saving general feedback")
	}

	return Receipt{Id: row.Id, SuggestionsApplied: []string{}}, nil
}

// Summary aggregates the diagram feedback received in the last days days.
func (s *Service) Summary(ctx context.Context, days int) (Summary, error) {
	if days <= 0 {
		return Summary{}, fmt.Errorf("%w: days must be positive", ErrInvalidFeedback)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return Summary{}, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var rows []database.DiagramFeedback
	if err := db.Where("created_at >= ?", cutoff).Order("created_at ASC").Find(&rows).Error; err != nil {
		return Summary{}, wrap(err, "loading feedback")
	}

	summary := Summary{
		Distribution:      map[string]int{},
		CommonSuggestions: []string{},
		ImprovementAreas:  []string{},
		WeeklyAverages:    map[string]float64{},
		Trend:             "stable",
	}
	if len(rows) == 0 {
		return summary, nil
	}

	for i := 1; i <= 5; i++ {
		summary.Distribution[fmt.Sprint(i)] = 0
	}

	total := 0
	weekly := map[string][]int{}
	poorByKind := map[string]int{}
	words := map[string]int{}
	for _, row := range rows {
		total += row.Rating
		summary.Distribution[fmt.Sprint(row.Rating)]++

		year, week := row.CreatedAt.ISOWeek()
		key := fmt.Sprintf("%d-W%02d", year, week)
		weekly[key] = append(weekly[key], row.Rating)

		if row.Rating <= poorRating {
			poorByKind[row.Kind]++
		}

		if row.ImprovementSuggestions.Valid {
			for _, w := range strings.Fields(strings.ToLower(row.ImprovementSuggestions.String)) {
				if len(w) >= minWordLength {
					words[w]++
				}
			}
		}
	}

	summary.Total = len(rows)
	summary.AverageRating = round2(float64(total) / float64(len(rows)))
	summary.CommonSuggestions = topWords(words, maxSuggestions)

	for _, kind := range diagram.AllKinds {
		if poorByKind[string(kind)] >= minAreaReports {
			summary.ImprovementAreas = append(summary.ImprovementAreas, fmt.Sprintf("%s diagram quality", kind))
		}
	}

	weeks := make([]string, 0, len(weekly))
	for week, ratings := range weekly {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		summary.WeeklyAverages[week] = round2(float64(sum) / float64(len(ratings)))
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)
	if len(weeks) > 1 && summary.WeeklyAverages[weeks[len(weeks)-1]] > summary.WeeklyAverages[weeks[0]] {
		summary.Trend = "improving"
	}

	return summary, nil
}

const adaptationDays = 7

// Adaptation describes, in one sentence, what recent feedback is steering
// generation towards.
func (s *Service) Adaptation(ctx context.Context) (string, error) {
	summary, err := s.Summary(ctx, adaptationDays)
	if err != nil {
		return "", err
	}
	if summary.Total == 0 {
		return "Learning from your feedback to improve!", nil
	}

	areas := summary.ImprovementAreas
	if len(areas) > 3 {
		areas = areas[:3]
	}
	focus := "overall diagram quality"
	if len(areas) > 0 {
		focus = strings.Join(areas, ", ")
	}
	return fmt.Sprintf("Based on %d recent feedback items (avg rating: %.2f/5), I'm focusing on: %s",
		summary.Total, summary.AverageRating, focus), nil
}

// Hints returns up to three recent complaints about kind from low rated
// feedback.
func (s *Service) Hints(ctx context.Context, kind diagram.Kind) ([]string, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []database.DiagramFeedback
	if err := db.Where("kind = ? AND rating <= ?", string(kind), lowRating).
		Order("created_at DESC").
		Limit(hintCandidates).
		Find(&rows).Error; err != nil {
		return nil, wrap(err, "loading feedback hints")
	}

	hints := []string{}
	for _, row := range rows {
		for _, text := range []sql.NullString{row.ImprovementSuggestions, row.Comment} {
			if len(hints) == maxHints {
				return hints, nil
			}
			if text.Valid && !slices.Contains(hints, text.String) {
				hints = append(hints, text.String)
			}
		}
	}
	return hints, nil
}

func topWords(counts map[string]int, n int) []string {
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
