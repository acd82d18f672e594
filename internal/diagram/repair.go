package diagram

import (
	"context"
	"errors"
	"log/slog"
)

const DefaultMaxRepairs = 2

type Result struct {
	Text     string
	Valid    bool
	Repaired bool
	Attempts int
	Reason   string
	// Fallback is set when Text is stub output produced because the backend
	// failed, timed out or answered with nothing.
	Fallback bool
}

// Validator checks rendered text and asks the renderer for corrected output
// when the check fails, at most maxRepairs times.
type Validator struct {
	renderer   *Renderer
	maxRepairs int
}

func NewValidator(renderer *Renderer, maxRepairs int) *Validator {
	if maxRepairs < 0 {
		maxRepairs = DefaultMaxRepairs
	}
	return &Validator{renderer: renderer, maxRepairs: maxRepairs}
}

// ValidateAndRepair never fails. When every repair attempt is rejected the
// last produced text is returned with Valid set to false.
func (v *Validator) ValidateAndRepair(ctx context.Context, text string, req Request) Result {
	return v.validate(ctx, Result{Text: text}, req)
}

func (v *Validator) validate(ctx context.Context, result Result, req Request) Result {
	err := Check(result.Text, req.Kind)
	for err != nil && result.Attempts < v.maxRepairs {
		if ctx.Err() != nil {
			break
		}
		result.Attempts++

		repair := req
		repair.Invalid = &Invalid{Text: result.Text, Reason: reason(err)}
		result.Text, result.Fallback = v.renderer.render(ctx, repair)

		err = Check(result.Text, req.Kind)
	}

	result.Valid = err == nil
	result.Repaired = result.Valid && result.Attempts > 0
	if err != nil {
		result.Reason = reason(err)
		slog.Warn("diagram failed validation after repairs", "kind", req.Kind, "attempts", result.Attempts, "reason", result.Reason)
	}
	return result
}

func reason(err error) string {
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return invalid.Reason
	}
	return err.Error()
}

// Generator renders and validates diagrams.
type Generator struct {
	renderer  *Renderer
	validator *Validator
}

func NewGenerator(renderer *Renderer, maxRepairs int) *Generator {
	return &Generator{renderer: renderer, validator: NewValidator(renderer, maxRepairs)}
}

func (g *Generator) Backend() string {
	return g.renderer.Backend()
}

func (g *Generator) Produce(ctx context.Context, req Request) Result {
	text, fallback := g.renderer.render(ctx, req)
	return g.validator.validate(ctx, Result{Text: text, Fallback: fallback}, req)
}

// GenerateSet produces one definition per kind, in order.
func (g *Generator) GenerateSet(ctx context.Context, prompt string, kinds []Kind) (Set, map[Kind]Result) {
	set := make(Set, len(kinds))
	results := make(map[Kind]Result, len(kinds))
	for _, kind := range kinds {
		res := g.Produce(ctx, Request{Kind: kind, Prompt: prompt})
		set[kind] = res.Text
		results[kind] = res
	}
	return set, results
}
