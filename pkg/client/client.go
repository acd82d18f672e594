// Package client is a Go client for the diagram HTTP API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"diagram-backend/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Error is returned for any non 2xx response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("diagram api error (status %d): %s", e.Status, e.Message)
}

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(5*time.Minute).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.client.R().SetContext(ctx)
	if body != nil {
		req = req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}

	if !res.IsSuccess() {
		return &Error{Status: res.StatusCode(), Message: strings.TrimSpace(res.String())}
	}

	if result != nil {
		if err := json.Unmarshal(res.Body(), result); err != nil {
			return fmt.Errorf("error parsing response from %s: %w", path, err)
		}
	}
	return nil
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var res api.HealthResponse
	err := c.do(ctx, resty.MethodGet, "/health", nil, &res)
	return res, err
}

func (c *Client) Query(ctx context.Context, prompt string, diagramTypes ...string) (map[string]string, error) {
	var res map[string]string
	err := c.do(ctx, resty.MethodPost, "/query", api.QueryRequest{Prompt: prompt, DiagramTypes: diagramTypes}, &res)
	return res, err
}

func (c *Client) StartChat(ctx context.Context, prompt string, diagramTypes ...string) (api.StartChatResponse, error) {
	var res api.StartChatResponse
	err := c.do(ctx, resty.MethodPost, "/chat/start", api.StartChatRequest{InitialPrompt: prompt, DiagramTypes: diagramTypes}, &res)
	return res, err
}

func (c *Client) SendMessage(ctx context.Context, sessionId uuid.UUID, message string, targets ...string) (api.ChatMessageResponse, error) {
	var res api.ChatMessageResponse
	err := c.do(ctx, resty.MethodPost, "/chat/"+sessionId.String()+"/message", api.ChatMessageRequest{Message: message, TargetDiagrams: targets}, &res)
	return res, err
}

func (c *Client) History(ctx context.Context, sessionId uuid.UUID) ([]api.ChatHistoryItem, error) {
	var res []api.ChatHistoryItem
	err := c.do(ctx, resty.MethodGet, "/chat/"+sessionId.String()+"/history", nil, &res)
	return res, err
}

func (c *Client) Session(ctx context.Context, sessionId uuid.UUID) (api.ChatSessionInfo, error) {
	var res api.ChatSessionInfo
	err := c.do(ctx, resty.MethodGet, "/chat/"+sessionId.String(), nil, &res)
	return res, err
}

func (c *Client) SubmitDiagramFeedback(ctx context.Context, req api.DiagramFeedbackRequest) (api.FeedbackResponse, error) {
	var res api.FeedbackResponse
	err := c.do(ctx, resty.MethodPost, "/feedback/diagram", req, &res)
	return res, err
}

func (c *Client) SubmitGeneralFeedback(ctx context.Context, req api.GeneralFeedbackRequest) (api.FeedbackResponse, error) {
	var res api.FeedbackResponse
	err := c.do(ctx, resty.MethodPost, "/feedback/general", req, &res)
	return res, err
}

func (c *Client) FeedbackSummary(ctx context.Context, days int) (api.FeedbackSummaryResponse, error) {
	var res api.FeedbackSummaryResponse
	err := c.do(ctx, resty.MethodGet, "/feedback/summary?days="+strconv.Itoa(days), nil, &res)
	return res, err
}

func (c *Client) Adaptation(ctx context.Context) (string, error) {
	var res api.AdaptationResponse
	err := c.do(ctx, resty.MethodGet, "/feedback/adaptation", nil, &res)
	return res.AdaptationSummary, err
}
