package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"
	"diagram-backend/internal/utils"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrKindNotInSession = errors.New("diagram type not requested for this session")
	ErrTooManySessions  = errors.New("too many sessions being edited concurrently")
)

// DefaultContextWindow is the number of earlier messages passed along with an
// edit.
const DefaultContextWindow = 5

type Generator interface {
	Produce(ctx context.Context, req diagram.Request) diagram.Result
	GenerateSet(ctx context.Context, prompt string, kinds []diagram.Kind) (diagram.Set, map[diagram.Kind]diagram.Result)
}

// Reply is the outcome of one edit message.
type Reply struct {
	Session  Session
	Updated  []diagram.Kind
	Retained []diagram.Kind
	Response string
}

// Orchestrator drives the session lifecycle. Edits to one session are
// serialized; different sessions proceed independently.
type Orchestrator struct {
	store         *Store
	generator     Generator
	locks         *utils.MutexMap[uuid.UUID]
	contextWindow int
}

func NewOrchestrator(store *Store, generator Generator, maxActiveSessions int) *Orchestrator {
	return &Orchestrator{
		store:         store,
		generator:     generator,
		locks:         utils.NewMutexMap[uuid.UUID](maxActiveSessions),
		contextWindow: DefaultContextWindow,
	}
}

func (o *Orchestrator) Store() *Store {
	return o.store
}

func (o *Orchestrator) Start(ctx context.Context, prompt string, kinds []diagram.Kind) (Session, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Session{}, fmt.Errorf("%w: initial_prompt must not be empty", ErrInvalidInput)
	}
	if len(kinds) == 0 {
		return Session{}, fmt.Errorf("%w: diagram_types must not be empty", ErrInvalidInput)
	}

	// Fail before spending model calls when the session cannot be stored.
	if err := o.store.Ping(ctx); err != nil {
		return Session{}, err
	}

	diagrams, results := o.generator.GenerateSet(ctx, prompt, kinds)
	for kind, res := range results {
		if !res.Valid {
			slog.Warn("storing best effort diagram for new session", "kind", kind, "reason", res.Reason)
		}
	}

	now := time.Now().UTC()
	session := Session{
		Id:             uuid.New(),
		InitialPrompt:  prompt,
		RequestedKinds: kinds,
		Diagrams:       diagrams,
		Versions:       make(map[diagram.Kind]int, len(kinds)),
		CreatedAt:      now,
		LastActivity:   now,
	}
	for _, kind := range kinds {
		session.Versions[kind] = 1
	}

	if err := o.store.Create(ctx, session); err != nil {
		return Session{}, err
	}

	slog.Info("started chat session", "session_id", session.Id, "kinds", kinds)
	return session, nil
}

// SendMessage applies text as an edit to the targeted kinds, or to every kind
// of the session when targets is empty. A kind keeps its previous text when
// the edit fails validation or the model could not be reached. The user
// message, the diagram updates and the reply are stored together.
func (o *Orchestrator) SendMessage(ctx context.Context, id uuid.UUID, text string, targets []diagram.Kind) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: message must not be empty", ErrInvalidInput)
	}
	received := time.Now().UTC()

	var reply Reply
	err := o.locks.Do(id, func() error {
		var err error
		reply, err = o.edit(ctx, id, text, targets, received)
		return err
	})
	if errors.Is(err, utils.ErrTooManyKeys) {
		return Reply{}, fmt.Errorf("%w: %w", ErrTooManySessions, err)
	}
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (o *Orchestrator) edit(ctx context.Context, id uuid.UUID, text string, targets []diagram.Kind, received time.Time) (Reply, error) {
	session, err := o.store.Get(ctx, id)
	if err != nil {
		return Reply{}, err
	}

	if len(targets) == 0 {
		targets = session.RequestedKinds
	}
	for _, kind := range targets {
		if !session.Requested(kind) {
			return Reply{}, fmt.Errorf("%w: %q (session has %s)", ErrKindNotInSession, kind, joinKinds(session.RequestedKinds))
		}
	}

	recent, err := o.store.RecentMessages(ctx, id, o.contextWindow)
	if err != nil {
		return Reply{}, err
	}
	conversation := make([]string, 0, len(recent)+1)
	for _, msg := range recent {
		conversation = append(conversation, msg.Role+": "+msg.Content)
	}
	conversation = append(conversation, database.RoleUser+": "+text)

	var reply Reply
	updates := make(diagram.Set, len(targets))
	for _, kind := range targets {
		res := o.generator.Produce(ctx, diagram.Request{
			Kind:         kind,
			Prompt:       session.InitialPrompt,
			Instruction:  text,
			Prior:        session.Diagrams[kind],
			Conversation: conversation,
		})
		switch {
		case !res.Valid:
			slog.Warn("keeping previous diagram, edit failed validation", "session_id", id, "kind", kind, "reason", res.Reason)
			reply.Retained = append(reply.Retained, kind)
		case res.Fallback:
			slog.Warn("keeping previous diagram, model unavailable", "session_id", id, "kind", kind)
			reply.Retained = append(reply.Retained, kind)
		default:
			updates[kind] = res.Text
			reply.Updated = append(reply.Updated, kind)
		}
	}
	reply.Response = summarize(reply.Updated, reply.Retained)

	user := &Message{
		SessionId:     id,
		Role:          database.RoleUser,
		Content:       text,
		AffectedKinds: targets,
		Timestamp:     received,
	}
	assistant := &Message{
		SessionId:     id,
		Role:          database.RoleAssistant,
		Content:       reply.Response,
		AffectedKinds: reply.Updated,
	}
	versions, err := o.store.RecordExchange(ctx, user, assistant, updates)
	if err != nil {
		return Reply{}, err
	}

	for kind, updated := range updates {
		session.Diagrams[kind] = updated
		session.Versions[kind] = versions[kind]
	}
	reply.Session = session
	return reply, nil
}

func (o *Orchestrator) GetHistory(ctx context.Context, id uuid.UUID) ([]Message, error) {
	return o.store.ListMessages(ctx, id)
}

func (o *Orchestrator) Diagrams(ctx context.Context, id uuid.UUID) (Session, error) {
	return o.store.Get(ctx, id)
}

func summarize(updated, retained []diagram.Kind) string {
	var b strings.Builder
	switch len(updated) {
	case 0:
		b.WriteString("No diagrams were updated.")
	case 1:
		fmt.Fprintf(&b, "Updated the %s diagram.", updated[0])
	default:
		fmt.Fprintf(&b, "Updated %d diagrams: %s.", len(updated), joinKinds(updated))
	}
	if len(retained) > 0 {
		fmt.Fprintf(&b, " Kept the previous version of %s because no valid update could be generated.", joinKinds(retained))
	}
	return b.String()
}

func joinKinds(kinds []diagram.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
