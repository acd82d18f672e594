package diagram

import "context"

// Prompt is a fully built model request for a single diagram kind. System and
// User carry the text sent to a model; the remaining fields describe the
// request for backends that do not call a model.
type Prompt struct {
	Kind   Kind
	System string
	User   string

	Subject string
	Prior   string
	Edit    string
	Repair  bool
}

// GenerativeBackend produces raw diagram text for a prompt.
type GenerativeBackend interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
