package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAI talks to any OpenAI compatible chat completions endpoint. Groq is
// reached the same way through GroqBaseURL.
type OpenAI struct {
	client    openai.Client
	name      string
	model     string
	temp      float64
	maxTokens int64
}

type OpenAIOptions struct {
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	Temp      float64
	MaxTokens int64
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAI{
		client:    openai.NewClient(reqOpts...),
		name:      name,
		model:     opts.Model,
		temp:      opts.Temp,
		maxTokens: opts.MaxTokens,
	}
}

func (o *OpenAI) Name() string {
	return o.name
}

func (o *OpenAI) Generate(ctx context.Context, prompt Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)

	if len(prompt.System) > 0 {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	chatOpts := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       o.model,
		Temperature: openai.Float(o.temp),
	}
	if o.maxTokens > 0 {
		chatOpts.MaxTokens = openai.Int(o.maxTokens)
	}

	res, err := o.client.Chat.Completions.New(ctx, chatOpts)
	if err != nil {
		slog.Error("chat completions failed", "backend", o.name, "kind", prompt.Kind, "error", err)
		return "", fmt.Errorf("%s generation failed: %w", o.name, err)
	}

	if len(res.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}

	return res.Choices[0].Message.Content, nil
}
