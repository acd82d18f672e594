package diagram

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const DefaultTimeout = 45 * time.Second

// Invalid describes a previously produced definition that failed validation.
type Invalid struct {
	Text   string
	Reason string
}

type Request struct {
	Kind Kind
	// Prompt is the domain description the diagram was first generated from.
	Prompt string
	// Instruction and Prior turn the request into an edit of Prior.
	Instruction  string
	Prior        string
	Conversation []string
	Invalid      *Invalid
}

// HintSource supplies short notes about past problems with a kind that are
// added to generation and edit instructions.
type HintSource interface {
	Hints(ctx context.Context, kind Kind) ([]string, error)
}

type Renderer struct {
	backend  GenerativeBackend
	fallback *Stub
	hints    HintSource
	timeout  time.Duration
}

func NewRenderer(backend GenerativeBackend, timeout time.Duration, hints HintSource) *Renderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Renderer{
		backend:  backend,
		fallback: NewStub(),
		hints:    hints,
		timeout:  timeout,
	}
}

func (r *Renderer) Backend() string {
	return r.backend.Name()
}

// Render produces diagram text for req. It never fails: a backend error, a
// timeout or an empty answer yields the stub output for the kind.
func (r *Renderer) Render(ctx context.Context, req Request) string {
	out, _ := r.render(ctx, req)
	return out
}

// render reports whether the text came from the stub fallback rather than the
// backend.
func (r *Renderer) render(ctx context.Context, req Request) (string, bool) {
	prompt, err := BuildPrompt(req, r.lookupHints(ctx, req))
	if err != nil {
		slog.Error("error building diagram prompt", "kind", req.Kind, "error", err)
		return Skeleton(req.Kind, req.Prompt), true
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.backend.Generate(callCtx, prompt)
	if err != nil {
		slog.Warn("diagram backend failed, using stub output", "backend", r.backend.Name(), "kind", req.Kind, "error", err)
		return r.stub(prompt), true
	}

	out = scrubFences(out)
	if out == "" {
		slog.Warn("diagram backend returned empty output, using stub output", "backend", r.backend.Name(), "kind", req.Kind)
		return r.stub(prompt), true
	}

	return out, false
}

func (r *Renderer) stub(prompt Prompt) string {
	out, _ := r.fallback.Generate(context.Background(), prompt)
	return out
}

func (r *Renderer) lookupHints(ctx context.Context, req Request) []string {
	if r.hints == nil || req.Invalid != nil {
		return nil
	}
	hints, err := r.hints.Hints(ctx, req.Kind)
	if err != nil {
		slog.Warn("unable to load feedback hints", "kind", req.Kind, "error", err)
		return nil
	}
	return hints
}

var (
	openingFence = regexp.MustCompile("^```[ \t]*(?i:mermaid)?[ \t]*(\r?\n|$)")
	closingFence = regexp.MustCompile("(^|\r?\n)[ \t]*```[ \t]*$")
)

// scrubFences removes a markdown code fence wrapped around the answer.
func scrubFences(s string) string {
	s = strings.TrimSpace(s)
	s = openingFence.ReplaceAllString(s, "")
	s = closingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
