package diagram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	model  string
	temp   float32
	tokens int32
}

func NewGemini(ctx context.Context, apiKey, model string, temp float32, maxTokens int32) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, temp: temp, tokens: maxTokens}, nil
}

func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) Generate(ctx context.Context, prompt Prompt) (string, error) {
	// GenerativeModel carries per-request settings, so one is built per call.
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temp)
	if g.tokens > 0 {
		model.SetMaxOutputTokens(g.tokens)
	}
	if len(prompt.System) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.User))
	if err != nil {
		slog.Error("gemini generation failed", "kind", prompt.Kind, "error", err)
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	return extractText(resp), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}
