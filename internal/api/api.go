package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"diagram-backend/internal/diagram"
	"diagram-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

const Version = "1.0.0"

type Generator interface {
	Backend() string
	GenerateSet(ctx context.Context, prompt string, kinds []diagram.Kind) (diagram.Set, map[diagram.Kind]diagram.Result)
}

// DiagramService serves stateless generation. It has no database dependency.
type DiagramService struct {
	generator Generator
}

func NewDiagramService(generator Generator) *DiagramService {
	return &DiagramService{generator: generator}
}

func (s *DiagramService) AddRoutes(r chi.Router) {
	r.Get("/", RestHandler(s.Health))
	r.Get("/health", RestHandler(s.Health))
	r.Post("/query", RestHandler(s.Query))
}

func (s *DiagramService) Health(r *http.Request) (any, error) {
	return api.HealthResponse{
		Status:  "ok",
		Message: "Mermaid diagram generator is running",
		Version: Version,
		Backend: s.generator.Backend(),
	}, nil
}

func (s *DiagramService) Query(r *http.Request) (any, error) {
	req, err := ParseRequest[api.QueryRequest](r)
	if err != nil {
		return nil, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "prompt must not be empty")
	}
	if len(req.DiagramTypes) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "diagram_types must list at least one diagram type")
	}

	kinds, err := parseKinds("diagram_types", req.DiagramTypes)
	if err != nil {
		return nil, err
	}

	set, results := s.generator.GenerateSet(r.Context(), prompt, kinds)
	for kind, res := range results {
		if !res.Valid {
			slog.Warn("returning best effort diagram", "kind", kind, "attempts", res.Attempts, "reason", res.Reason)
		}
	}

	return api.QueryResponse(setToMap(set)), nil
}
