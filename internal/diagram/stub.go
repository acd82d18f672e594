package diagram

import (
	"context"
	"strings"
)

const maxStubCommentLen = 120

// Stub is the deterministic backend. It returns the catalog skeleton for a
// kind, annotated with the request so that different prompts and edits yield
// different, still valid, text. It is used when no model credential is
// configured and as the fallback when a model call fails.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Name() string {
	return "stub"
}

func (s *Stub) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return s.render(prompt), nil
}

func (s *Stub) render(prompt Prompt) string {
	if prompt.Prior != "" {
		if err := Check(prompt.Prior, prompt.Kind); err == nil {
			return strings.TrimRight(prompt.Prior, "\n") + "\n    %% edit: " + sanitizeComment(prompt.Edit)
		}
	}
	return Skeleton(prompt.Kind, prompt.Subject)
}

// Skeleton returns the minimal valid definition for kind with subject
// recorded as a comment under the header line.
func Skeleton(kind Kind, subject string) string {
	spec, ok := catalog[kind]
	if !ok {
		return ""
	}
	comment := sanitizeComment(subject)
	if comment == "" {
		return spec.stub
	}
	header, body, _ := strings.Cut(spec.stub, "\n")
	return header + "\n    %% " + comment + "\n" + body
}

func sanitizeComment(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxStubCommentLen {
		s = strings.TrimSpace(truncateRunes(s, maxStubCommentLen)) + "..."
	}
	return s
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
