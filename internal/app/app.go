package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"diagram-backend/internal/api"
	"diagram-backend/internal/chat"
	"diagram-backend/internal/config"
	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"
	"diagram-backend/internal/feedback"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const reconnectCooldown = 10 * time.Second

// App holds the long lived services of one server process.
type App struct {
	Backend      diagram.GenerativeBackend
	DB           *database.Handle
	Generator    *diagram.Generator
	Orchestrator *chat.Orchestrator
	Feedback     *feedback.Service

	closers []func() error
}

// New builds the services for cfg. connect is called lazily on first database
// use, so a missing database does not prevent the server from starting.
func New(ctx context.Context, cfg config.Config, connect func(ctx context.Context) (*gorm.DB, error)) (*App, error) {
	backend, closer, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Backend: backend}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	app.DB = database.NewHandle(connect, reconnectCooldown)
	app.closers = append(app.closers, app.DB.Close)

	app.Feedback = feedback.NewService(app.DB)
	renderer := diagram.NewRenderer(backend, cfg.LLMTimeout, app.Feedback)
	app.Generator = diagram.NewGenerator(renderer, cfg.MaxRepairs)
	app.Orchestrator = chat.NewOrchestrator(chat.NewStore(app.DB), app.Generator, cfg.MaxSessions)

	return app, nil
}

// NewBackend selects the model backend for the configured provider. Without a
// credential the stub backend is used.
func NewBackend(ctx context.Context, cfg config.Config) (diagram.GenerativeBackend, func() error, error) {
	key := cfg.APIKey()
	if key == "" {
		slog.Warn("no API key configured for provider, using stub backend", "provider", cfg.LLMProvider)
		return diagram.NewStub(), nil, nil
	}

	switch cfg.LLMProvider {
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := cfg.LLMBaseURL
		if baseURL == "" && cfg.LLMProvider == config.ProviderGroq {
			baseURL = diagram.GroqBaseURL
		}
		slog.Info("using openai compatible backend", "provider", cfg.LLMProvider, "model", cfg.Model())
		return diagram.NewOpenAI(diagram.OpenAIOptions{
			Name:      cfg.LLMProvider,
			APIKey:    key,
			BaseURL:   baseURL,
			Model:     cfg.Model(),
			Temp:      cfg.LLMTemp,
			MaxTokens: cfg.LLMMaxTokens,
		}), nil, nil
	case config.ProviderGemini:
		gemini, err := diagram.NewGemini(ctx, key, cfg.Model(), float32(cfg.LLMTemp), int32(cfg.LLMMaxTokens))
		if err != nil {
			slog.Error("error creating gemini client, using stub backend", "error", err)
			return diagram.NewStub(), nil, nil
		}
		slog.Info("using gemini backend", "model", cfg.Model())
		return gemini, gemini.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

// AddRoutes mounts every HTTP service on r.
func (a *App) AddRoutes(r chi.Router) {
	api.NewDiagramService(a.Generator).AddRoutes(r)
	api.NewChatService(a.Orchestrator).AddRoutes(r)
	api.NewFeedbackService(a.Feedback).AddRoutes(r)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
