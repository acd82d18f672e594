package api

import (
	"errors"
	"net/http"

	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"
	"diagram-backend/internal/feedback"
	"diagram-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const thanksMessage = "Thank you for your feedback! We'll use it to improve the system."

type FeedbackService struct {
	feedback *feedback.Service
}

func NewFeedbackService(feedback *feedback.Service) *FeedbackService {
	return &FeedbackService{feedback: feedback}
}

func (s *FeedbackService) AddRoutes(r chi.Router) {
	r.Route("/feedback", func(r chi.Router) {
		r.Post("/diagram", RestHandler(s.SubmitDiagramFeedback))
		r.Post("/general", RestHandler(s.SubmitGeneralFeedback))
		r.Get("/summary", RestHandler(s.Summary))
		r.Get("/adaptation", RestHandler(s.Adaptation))
	})
}

func feedbackError(err error) error {
	switch {
	case errors.Is(err, feedback.ErrInvalidFeedback):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, database.ErrUnavailable):
		return CodedErrorf(http.StatusServiceUnavailable, "feedback is unavailable: database not reachable")
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (s *FeedbackService) SubmitDiagramFeedback(r *http.Request) (any, error) {
	req, err := ParseRequest[api.DiagramFeedbackRequest](r)
	if err != nil {
		return nil, err
	}

	kind, err := diagram.ParseKind(req.DiagramType)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid diagram_type: %w", err)
	}

	receipt, err := s.feedback.SubmitDiagramFeedback(r.Context(), feedback.DiagramSubmission{
		SessionId:   nullUUID(req.SessionID),
		Kind:        kind,
		Content:     req.DiagramContent,
		UserPrompt:  req.UserPrompt,
		Rating:      req.Rating,
		Type:        req.FeedbackType,
		Comment:     req.Comment,
		Suggestions: req.ImprovementSuggestions,
	})
	if err != nil {
		return nil, feedbackError(err)
	}

	return api.FeedbackResponse{FeedbackID: receipt.Id, Message: thanksMessage, SuggestionsApplied: receipt.SuggestionsApplied}, nil
}

func (s *FeedbackService) SubmitGeneralFeedback(r *http.Request) (any, error) {
	req, err := ParseRequest[api.GeneralFeedbackRequest](r)
	if err != nil {
		return nil, err
	}

	sub := feedback.GeneralSubmission{
		SessionId:   nullUUID(req.SessionID),
		Type:        req.FeedbackType,
		Comment:     req.Comment,
		FeatureArea: req.FeatureArea,
	}
	if req.Rating != nil {
		if *req.Rating == 0 {
			return nil, CodedErrorf(http.StatusUnprocessableEntity, "rating must be between 1 and 5, got 0")
		}
		sub.Rating = *req.Rating
	}

	receipt, err := s.feedback.SubmitGeneralFeedback(r.Context(), sub)
	if err != nil {
		return nil, feedbackError(err)
	}

	return api.FeedbackResponse{FeedbackID: receipt.Id, Message: thanksMessage, SuggestionsApplied: receipt.SuggestionsApplied}, nil
}

func (s *FeedbackService) Summary(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.FeedbackSummaryParams](r)
	if err != nil {
		return nil, err
	}
	if params.Days == 0 {
		params.Days = feedback.DefaultSummaryDays
	}

	summary, err := s.feedback.Summary(r.Context(), params.Days)
	if err != nil {
		return nil, feedbackError(err)
	}

	return api.FeedbackSummaryResponse{
		TotalFeedbackCount: summary.Total,
		AverageRating:      summary.AverageRating,
		RatingDistribution: summary.Distribution,
		CommonSuggestions:  summary.CommonSuggestions,
		ImprovementAreas:   summary.ImprovementAreas,
		RecentTrends: api.FeedbackTrends{
			WeeklyRatingTrend: summary.WeeklyAverages,
			TotalThisPeriod:   summary.Total,
			ImprovementTrend:  summary.Trend,
		},
	}, nil
}

func (s *FeedbackService) Adaptation(r *http.Request) (any, error) {
	summary, err := s.feedback.Adaptation(r.Context())
	if err != nil {
		return nil, feedbackError(err)
	}
	return api.AdaptationResponse{AdaptationSummary: summary}, nil
}
