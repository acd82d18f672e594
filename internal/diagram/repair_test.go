package diagram_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"diagram-backend/internal/diagram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndRepairValidInput(t *testing.T) {
	backend := &scriptedBackend{}
	validator := diagram.NewValidator(diagram.NewRenderer(backend, time.Second, nil), diagram.DefaultMaxRepairs)

	text := "stateDiagram-v2\n  [*] --> Idle"
	res := validator.ValidateAndRepair(context.Background(), text, diagram.Request{Kind: diagram.KindState})
	assert.Equal(t, diagram.Result{Text: text, Valid: true}, res)
	assert.Equal(t, 0, backend.calls())
}

func TestValidateAndRepairFixesOutput(t *testing.T) {
	backend := &scriptedBackend{outputs: []string{"stateDiagram-v2\n  state Idle", "stateDiagram-v2\n  [*] --> Idle"}}
	validator := diagram.NewValidator(diagram.NewRenderer(backend, time.Second, nil), diagram.DefaultMaxRepairs)

	res := validator.ValidateAndRepair(context.Background(), "graph TD\n A --> B", diagram.Request{Kind: diagram.KindState, Prompt: "lamp"})
	assert.True(t, res.Valid)
	assert.True(t, res.Repaired)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "stateDiagram-v2\n  [*] --> Idle", res.Text)

	require.Len(t, backend.prompts, 2)
	assert.True(t, backend.prompts[0].Repair)
	assert.Contains(t, backend.prompts[0].User, "graph TD")
	assert.Contains(t, backend.prompts[0].User, "must start with the stateDiagram-v2 declaration")
	assert.Contains(t, backend.prompts[1].User, "state Idle")
	assert.Contains(t, backend.prompts[1].User, "no transition arrow")
}

func TestRepairBound(t *testing.T) {
	backend := &scriptedBackend{outputs: []string{"not a diagram"}}
	generator := diagram.NewGenerator(diagram.NewRenderer(backend, time.Second, nil), diagram.DefaultMaxRepairs)

	res := generator.Produce(context.Background(), diagram.Request{Kind: diagram.KindClass, Prompt: "library"})
	assert.False(t, res.Valid)
	assert.False(t, res.Repaired)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "not a diagram", res.Text)
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, 3, backend.calls())
}

func TestRepairDisabled(t *testing.T) {
	backend := &scriptedBackend{outputs: []string{"not a diagram"}}
	generator := diagram.NewGenerator(diagram.NewRenderer(backend, time.Second, nil), 0)

	res := generator.Produce(context.Background(), diagram.Request{Kind: diagram.KindGantt})
	assert.False(t, res.Valid)
	assert.Equal(t, 1, backend.calls())
}

func TestProduceReportsFallback(t *testing.T) {
	failing := &scriptedBackend{err: errors.New("provider down")}
	generator := diagram.NewGenerator(diagram.NewRenderer(failing, time.Second, nil), diagram.DefaultMaxRepairs)

	res := generator.Produce(context.Background(), diagram.Request{Kind: diagram.KindState, Prompt: "lamp"})
	assert.True(t, res.Valid)
	assert.True(t, res.Fallback)
	assert.Equal(t, diagram.Skeleton(diagram.KindState, "lamp"), res.Text)

	generator = diagram.NewGenerator(diagram.NewRenderer(diagram.NewStub(), time.Second, nil), diagram.DefaultMaxRepairs)
	res = generator.Produce(context.Background(), diagram.Request{Kind: diagram.KindState, Prompt: "lamp"})
	assert.True(t, res.Valid)
	assert.False(t, res.Fallback)
}

// A model answering with prose and then failing on the repair call must not
// replace the prior diagram with a skeleton.
func TestProduceEditKeepsPriorWhenRepairFails(t *testing.T) {
	prior := "sequenceDiagram\n    Customer->>Shop: order\n    Shop->>Bank: charge"
	backend := &flakyBackend{first: "Sure! Here is your updated diagram.", err: errors.New("provider down")}
	generator := diagram.NewGenerator(diagram.NewRenderer(backend, time.Second, nil), diagram.DefaultMaxRepairs)

	res := generator.Produce(context.Background(), diagram.Request{
		Kind:        diagram.KindSequential,
		Prompt:      "checkout",
		Instruction: "add a refund",
		Prior:       prior,
	})
	assert.True(t, res.Valid)
	assert.True(t, res.Fallback)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, strings.HasPrefix(res.Text, prior))
	assert.Contains(t, res.Text, "Bank")
}

func TestGenerateSetWithStub(t *testing.T) {
	generator := diagram.NewGenerator(diagram.NewRenderer(diagram.NewStub(), time.Second, nil), diagram.DefaultMaxRepairs)

	set, results := generator.GenerateSet(context.Background(), "order processing system", diagram.AllKinds)
	require.Len(t, set, len(diagram.AllKinds))
	for _, kind := range diagram.AllKinds {
		assert.True(t, results[kind].Valid, kind)
		assert.Equal(t, 0, results[kind].Attempts, kind)
		assert.NoError(t, diagram.Check(set[kind], kind))
	}
}

// flakyBackend answers the first call with first and fails every later call.
type flakyBackend struct {
	mu    sync.Mutex
	calls int
	first string
	err   error
}

func (b *flakyBackend) Name() string {
	return "flaky"
}

func (b *flakyBackend) Generate(ctx context.Context, prompt diagram.Prompt) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.calls == 1 {
		return b.first, nil
	}
	return "", b.err
}
