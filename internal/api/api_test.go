package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	backend "diagram-backend/internal/api"
	"diagram-backend/internal/chat"
	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"
	"diagram-backend/internal/feedback"
	"diagram-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func stubGenerator() *diagram.Generator {
	return diagram.NewGenerator(diagram.NewRenderer(diagram.NewStub(), time.Second, nil), diagram.DefaultMaxRepairs)
}

func createRouter(handle *database.Handle) chi.Router {
	generator := stubGenerator()
	router := chi.NewRouter()
	backend.NewDiagramService(generator).AddRoutes(router)
	backend.NewChatService(chat.NewOrchestrator(chat.NewStore(handle), generator, 64)).AddRoutes(router)
	backend.NewFeedbackService(feedback.NewService(handle)).AddRoutes(router)
	return router
}

func unavailableHandle() *database.Handle {
	return database.NewHandle(func(ctx context.Context) (*gorm.DB, error) {
		return nil, errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
	}, time.Minute)
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	var payload *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(b)
	} else {
		payload = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	for _, path := range []string{"/", "/health"} {
		rec := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.HealthResponse](t, rec)
		assert.Equal(t, "ok", res.Status)
		assert.Equal(t, "stub", res.Backend)
		assert.NotEmpty(t, res.Version)
	}
}

func TestQuery(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/query", api.QueryRequest{
		Prompt:       "SEBI compliance monitoring system",
		DiagramTypes: []string{"sequential", "component", "state", "class", "er", "gantt"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[map[string]string](t, rec)
	require.Len(t, res, len(diagram.AllKinds))
	for _, kind := range diagram.AllKinds {
		assert.True(t, strings.HasPrefix(res[string(kind)], kind.Keyword()), "%s: %q", kind, res[string(kind)])
	}
}

func TestQueryAliases(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/query", api.QueryRequest{Prompt: "checkout", DiagramTypes: []string{"sequence", "flowchart"}})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]string](t, rec)
	assert.Contains(t, res, "sequential")
	assert.Contains(t, res, "component")
}

func TestQueryValidation(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/query", api.QueryRequest{Prompt: "x", DiagramTypes: []string{"pie"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "diagram_types")
	assert.Contains(t, rec.Body.String(), "pie")

	rec = do(t, router, http.MethodPost, "/query", api.QueryRequest{Prompt: " ", DiagramTypes: []string{"state"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/query", api.QueryRequest{Prompt: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader("{not json"))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestQueryWithoutDatabase(t *testing.T) {
	router := createRouter(unavailableHandle())

	rec := do(t, router, http.MethodPost, "/query", api.QueryRequest{Prompt: "checkout", DiagramTypes: []string{"state"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatWithoutDatabase(t *testing.T) {
	router := createRouter(unavailableHandle())

	rec := do(t, router, http.MethodPost, "/chat/start", api.StartChatRequest{InitialPrompt: "checkout", DiagramTypes: []string{"state"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodPost, "/chat/"+uuid.NewString()+"/message", api.ChatMessageRequest{Message: "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/chat/"+uuid.NewString()+"/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/feedback/summary", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatScenario(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/chat/start", api.StartChatRequest{
		InitialPrompt: "order processing system",
		DiagramTypes:  []string{"sequential"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decode[api.StartChatResponse](t, rec)
	assert.NotEqual(t, uuid.Nil, started.SessionID)
	assert.True(t, strings.HasPrefix(started.Diagrams["sequential"], "sequenceDiagram"))
	assert.NotEmpty(t, started.Message)

	base := "/chat/" + started.SessionID.String()

	rec = do(t, router, http.MethodPost, base+"/message", api.ChatMessageRequest{Message: "add a payment step"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[api.ChatMessageResponse](t, rec)
	assert.Equal(t, started.SessionID, reply.SessionID)
	assert.NotEqual(t, started.Diagrams["sequential"], reply.Diagrams["sequential"])
	assert.Equal(t, reply.Diagrams["sequential"], reply.UpdatedDiagrams["sequential"])
	assert.NotEmpty(t, reply.Response)

	rec = do(t, router, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]api.ChatHistoryItem](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "add a payment step", history[0].Content)
	assert.Equal(t, []string{"sequential"}, history[0].AffectedKinds)
	assert.Equal(t, "assistant", history[1].Role)

	// History is stable without new messages.
	again := do(t, router, http.MethodGet, base+"/history", nil)
	assert.Equal(t, rec.Body.String(), again.Body.String())

	rec = do(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[api.ChatSessionInfo](t, rec)
	assert.Equal(t, "order processing system", info.InitialPrompt)
	require.Len(t, info.CurrentDiagrams, 1)
	assert.Equal(t, 2, info.CurrentDiagrams[0].Version)
	assert.Equal(t, reply.Diagrams["sequential"], info.CurrentDiagrams[0].Text)
}

func TestChatTargetedEdit(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/chat/start", api.StartChatRequest{InitialPrompt: "lamp", DiagramTypes: []string{"sequential", "state"}})
	require.Equal(t, http.StatusOK, rec.Code)
	started := decode[api.StartChatResponse](t, rec)
	base := "/chat/" + started.SessionID.String()

	rec = do(t, router, http.MethodPost, base+"/message", api.ChatMessageRequest{Message: "add a broken state", TargetDiagrams: []string{"state"}})
	require.Equal(t, http.StatusOK, rec.Code)
	reply := decode[api.ChatMessageResponse](t, rec)
	assert.Equal(t, started.Diagrams["sequential"], reply.Diagrams["sequential"])
	assert.NotEqual(t, started.Diagrams["state"], reply.Diagrams["state"])
	assert.Equal(t, []string{"state"}, keys(reply.UpdatedDiagrams))

	rec = do(t, router, http.MethodPost, base+"/message", api.ChatMessageRequest{Message: "add tasks", TargetDiagrams: []string{"gantt"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/message", api.ChatMessageRequest{Message: "add tasks", TargetDiagrams: []string{"mindmap"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/message", api.ChatMessageRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUnknownSession(t *testing.T) {
	db := createDB(t)
	router := createRouter(database.Static(db))
	id := uuid.NewString()

	rec := do(t, router, http.MethodPost, "/chat/"+id+"/message", api.ChatMessageRequest{Message: "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/chat/"+id+"/history", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/chat/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, path := range []string{"/chat/unknown-session", "/chat/unknown-session/history"} {
		rec = do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "unknown-session")
	}
	rec = do(t, router, http.MethodPost, "/chat/unknown-session/message", api.ChatMessageRequest{Message: "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	require.NoError(t, db.Model(&database.ChatSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFeedbackEndpoints(t *testing.T) {
	router := createRouter(database.Static(createDB(t)))

	rec := do(t, router, http.MethodPost, "/feedback/diagram", api.DiagramFeedbackRequest{
		DiagramType:            "sequence",
		DiagramContent:         "sequenceDiagram\n  A->>B: hi",
		Rating:                 2,
		ImprovementSuggestions: "Add more descriptive participant names",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[api.FeedbackResponse](t, rec)
	assert.NotEqual(t, uuid.Nil, res.FeedbackID)
	assert.Len(t, res.SuggestionsApplied, 2)

	rec = do(t, router, http.MethodPost, "/feedback/diagram", api.DiagramFeedbackRequest{DiagramType: "state", DiagramContent: "x", Rating: 7})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodPost, "/feedback/diagram", api.DiagramFeedbackRequest{DiagramType: "pie", DiagramContent: "x", Rating: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/feedback/general", api.GeneralFeedbackRequest{FeedbackType: "feature_request", Comment: "mind maps please"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/feedback/general", api.GeneralFeedbackRequest{FeedbackType: "praise", Comment: "nice"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, router, http.MethodGet, "/feedback/summary?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.FeedbackSummaryResponse](t, rec)
	assert.Equal(t, 1, summary.TotalFeedbackCount)
	assert.Equal(t, 2.0, summary.AverageRating)
	assert.Equal(t, 1, summary.RatingDistribution["2"])

	rec = do(t, router, http.MethodGet, "/feedback/summary?days=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/feedback/adaptation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	adaptation := decode[api.AdaptationResponse](t, rec)
	assert.Contains(t, adaptation.AdaptationSummary, "Based on 1 recent feedback items")
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
