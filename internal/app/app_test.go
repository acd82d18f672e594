package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"diagram-backend/internal/config"
	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig(provider string) config.Config {
	return config.Config{
		LLMProvider:  provider,
		LLMTimeout:   time.Second,
		LLMTemp:      0.2,
		LLMMaxTokens: 512,
		MaxRepairs:   2,
		MaxSessions:  8,
	}
}

func sqliteConnect(ctx context.Context) (*gorm.DB, error) {
	return database.NewDatabase(ctx, database.DriverSQLite, "file::memory:")
}

func TestNewBackendSelection(t *testing.T) {
	ctx := context.Background()

	backend, closer, err := NewBackend(ctx, testConfig(config.ProviderGroq))
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.Equal(t, "stub", backend.Name())

	cfg := testConfig(config.ProviderGroq)
	cfg.GroqAPIKey = "groq-key"
	backend, _, err = NewBackend(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &diagram.OpenAI{}, backend)
	assert.Equal(t, "groq", backend.Name())

	cfg = testConfig(config.ProviderOpenAI)
	cfg.GroqAPIKey = "groq-key"
	backend, _, err = NewBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "stub", backend.Name(), "a key for another provider does not count")

	cfg.OpenAIAPIKey = "openai-key"
	backend, _, err = NewBackend(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", backend.Name())
}

func TestAppServesWithStubBackend(t *testing.T) {
	app, err := New(context.Background(), testConfig(config.ProviderGroq), sqliteConnect)
	require.NoError(t, err)
	defer app.Close()

	r := chi.NewRouter()
	app.AddRoutes(r)

	body, _ := json.Marshal(map[string]any{"initial_prompt": "checkout flow", "diagram_types": []string{"state"}})
	req := httptest.NewRequest(http.MethodPost, "/chat/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		SessionID string            `json:"session_id"`
		Diagrams  map[string]string `json:"diagrams"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.SessionID)
	assert.True(t, diagram.Valid(res.Diagrams["state"], diagram.KindState))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stub")
}

func TestAppStartsWithoutDatabase(t *testing.T) {
	connect := func(ctx context.Context) (*gorm.DB, error) {
		return nil, errors.New("connection refused")
	}
	app, err := New(context.Background(), testConfig(config.ProviderGroq), connect)
	require.NoError(t, err)
	defer app.Close()

	r := chi.NewRouter()
	app.AddRoutes(r)

	body, _ := json.Marshal(map[string]any{"prompt": "order lifecycle", "diagram_types": []string{"er"}})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	body, _ = json.Marshal(map[string]any{"initial_prompt": "order lifecycle", "diagram_types": []string{"er"}})
	req = httptest.NewRequest(http.MethodPost, "/chat/start", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
