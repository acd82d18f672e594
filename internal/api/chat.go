package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"diagram-backend/internal/chat"
	"diagram-backend/internal/diagram"
	"diagram-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const startMessage = "Chat session started. You can now ask for modifications to your diagrams."

type ChatService struct {
	orchestrator *chat.Orchestrator
}

func NewChatService(orchestrator *chat.Orchestrator) *ChatService {
	return &ChatService{orchestrator: orchestrator}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/start", RestHandler(s.StartChat))
		r.Get("/{session_id}", RestHandler(s.GetSession))
		r.Post("/{session_id}/message", RestHandler(s.SendMessage))
		r.Get("/{session_id}/history", RestHandler(s.GetHistory))
	})
}

// sessionID reads the session id from the url. Session ids are opaque to
// clients, so one that is not a UUID names no session.
func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := URLParamUUID(r, "session_id")
	if err != nil {
		return uuid.Nil, chatError(fmt.Errorf("%w: %q", chat.ErrSessionNotFound, chi.URLParam(r, "session_id")))
	}
	return id, nil
}

func chatError(err error) error {
	switch {
	case errors.Is(err, chat.ErrSessionNotFound):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, chat.ErrDatabaseUnavailable):
		return CodedErrorf(http.StatusServiceUnavailable, "chat sessions are unavailable: database not reachable")
	case errors.Is(err, chat.ErrTooManySessions):
		return CodedError(http.StatusServiceUnavailable, err)
	case errors.Is(err, chat.ErrKindNotInSession):
		return CodedError(http.StatusUnprocessableEntity, err)
	case errors.Is(err, chat.ErrInvalidInput):
		return CodedError(http.StatusBadRequest, err)
	default:
		return CodedError(http.StatusInternalServerError, err)
	}
}

func (s *ChatService) StartChat(r *http.Request) (any, error) {
	req, err := ParseRequest[api.StartChatRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.InitialPrompt) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "initial_prompt must not be empty")
	}
	if len(req.DiagramTypes) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "diagram_types must list at least one diagram type")
	}
	kinds, err := parseKinds("diagram_types", req.DiagramTypes)
	if err != nil {
		return nil, err
	}

	session, err := s.orchestrator.Start(r.Context(), req.InitialPrompt, kinds)
	if err != nil {
		return nil, chatError(err)
	}

	return api.StartChatResponse{
		SessionID: session.Id,
		Diagrams:  setToMap(session.Diagrams),
		Message:   startMessage,
	}, nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	sessionId, err := sessionID(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ChatMessageRequest](r)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "message must not be empty")
	}
	targets, err := parseKinds("target_diagrams", req.TargetDiagrams)
	if err != nil {
		return nil, err
	}

	reply, err := s.orchestrator.SendMessage(r.Context(), sessionId, req.Message, targets)
	if err != nil {
		return nil, chatError(err)
	}

	updated := make(map[string]string, len(reply.Updated))
	for _, kind := range reply.Updated {
		updated[string(kind)] = reply.Session.Diagrams[kind]
	}

	return api.ChatMessageResponse{
		SessionID:       sessionId,
		Response:        reply.Response,
		Diagrams:        setToMap(reply.Session.Diagrams),
		UpdatedDiagrams: updated,
	}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionId, err := sessionID(r)
	if err != nil {
		return nil, err
	}

	messages, err := s.orchestrator.GetHistory(r.Context(), sessionId)
	if err != nil {
		return nil, chatError(err)
	}

	history := make([]api.ChatHistoryItem, 0, len(messages))
	for _, msg := range messages {
		history = append(history, api.ChatHistoryItem{
			Role:          msg.Role,
			Content:       msg.Content,
			AffectedKinds: kindNames(msg.AffectedKinds),
			Timestamp:     msg.Timestamp,
		})
	}

	return history, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	sessionId, err := sessionID(r)
	if err != nil {
		return nil, err
	}

	session, err := s.orchestrator.Diagrams(r.Context(), sessionId)
	if err != nil {
		return nil, chatError(err)
	}

	states := make([]api.DiagramState, 0, len(session.Diagrams))
	for kind, text := range session.Diagrams {
		states = append(states, api.DiagramState{Type: string(kind), Text: text, Version: session.Versions[kind]})
	}
	order := make(map[string]int, len(diagram.AllKinds))
	for i, k := range diagram.AllKinds {
		order[string(k)] = i
	}
	sort.Slice(states, func(i, j int) bool { return order[states[i].Type] < order[states[j].Type] })

	return api.ChatSessionInfo{
		SessionID:       session.Id,
		InitialPrompt:   session.InitialPrompt,
		DiagramTypes:    kindNames(session.RequestedKinds),
		CreatedAt:       session.CreatedAt,
		LastActivity:    session.LastActivity,
		CurrentDiagrams: states,
	}, nil
}
