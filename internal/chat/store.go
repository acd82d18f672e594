package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"diagram-backend/internal/database"
	"diagram-backend/internal/diagram"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound     = errors.New("chat session not found")
	ErrDatabaseUnavailable = database.ErrUnavailable
)

type Session struct {
	Id             uuid.UUID
	InitialPrompt  string
	RequestedKinds []diagram.Kind
	Diagrams       diagram.Set
	Versions       map[diagram.Kind]int
	CreatedAt      time.Time
	LastActivity   time.Time
}

func (s Session) Requested(kind diagram.Kind) bool {
	return slices.Contains(s.RequestedKinds, kind)
}

type Message struct {
	Id            uint
	SessionId     uuid.UUID
	Role          string
	Content       string
	AffectedKinds []diagram.Kind
	Timestamp     time.Time
}

// Store persists sessions, their current diagrams and their message log.
type Store struct {
	db *database.Handle
}

func NewStore(db *database.Handle) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, error) {
	db, err := s.db.Get(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return db.WithContext(ctx), nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrSessionNotFound
	case errors.Is(err, ErrDatabaseUnavailable):
		return err
	case database.IsUnavailable(err):
		return fmt.Errorf("%w: %w", ErrDatabaseUnavailable, err)
	default:
		return err
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return classify(s.db.Ping(ctx))
}

// Create stores a new session together with its initial diagrams in one
// transaction.
func (s *Store) Create(ctx context.Context, session Session) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	kinds, err := encodeKinds(session.RequestedKinds)
	if err != nil {
		return err
	}

	row := database.ChatSession{
		Id:             session.Id,
		InitialPrompt:  session.InitialPrompt,
		RequestedKinds: kinds,
		CreatedAt:      session.CreatedAt,
		LastActivity:   session.LastActivity,
	}
	for _, kind := range session.RequestedKinds {
		row.Diagrams = append(row.Diagrams, database.DiagramState{
			SessionId: session.Id,
			Kind:      string(kind),
			Text:      session.Diagrams[kind],
			Version:   1,
			UpdatedAt: session.CreatedAt,
		})
	}

	err = db.Transaction(func(txn *gorm.DB) error {
		return txn.Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("error creating chat session: %w", classify(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return Session{}, err
	}

	var row database.ChatSession
	if err := db.Preload("Diagrams").First(&row, "id = ?", id).Error; err != nil {
		return Session{}, classify(err)
	}

	kinds, err := decodeKinds(row.RequestedKinds)
	if err != nil {
		return Session{}, fmt.Errorf("error decoding requested kinds for session %s: %w", id, err)
	}

	session := Session{
		Id:             row.Id,
		InitialPrompt:  row.InitialPrompt,
		RequestedKinds: kinds,
		Diagrams:       make(diagram.Set, len(row.Diagrams)),
		Versions:       make(map[diagram.Kind]int, len(row.Diagrams)),
		CreatedAt:      row.CreatedAt,
		LastActivity:   row.LastActivity,
	}
	for _, d := range row.Diagrams {
		session.Diagrams[diagram.Kind(d.Kind)] = d.Text
		session.Versions[diagram.Kind(d.Kind)] = d.Version
	}

	return session, nil
}

// AppendMessage adds msg to the end of the session log and fills in its id
// and timestamp.
func (s *Store) AppendMessage(ctx context.Context, msg *Message) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(txn *gorm.DB) error {
		return appendMessage(txn, msg)
	})
	if err != nil {
		return fmt.Errorf("error saving chat message: %w", classify(err))
	}
	return nil
}

// UpdateDiagram replaces the text for kind and returns the new version.
func (s *Store) UpdateDiagram(ctx context.Context, id uuid.UUID, kind diagram.Kind, text string) (int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	var version int
	err = db.Transaction(func(txn *gorm.DB) error {
		version, err = updateDiagram(txn, id, kind, text)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error updating %s diagram: %w", kind, classify(err))
	}

	return version, nil
}

// RecordExchange stores one edit round in a single transaction: the user
// message, the new text of every kind in updates and the assistant reply.
// Nothing is written when any step fails. It returns the new version of each
// updated kind.
func (s *Store) RecordExchange(ctx context.Context, user, assistant *Message, updates diagram.Set) (map[diagram.Kind]int, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	versions := make(map[diagram.Kind]int, len(updates))
	err = db.Transaction(func(txn *gorm.DB) error {
		if err := appendMessage(txn, user); err != nil {
			return err
		}
		for kind, text := range updates {
			version, err := updateDiagram(txn, user.SessionId, kind, text)
			if err != nil {
				return fmt.Errorf("error updating %s diagram: %w", kind, err)
			}
			versions[kind] = version
		}
		return appendMessage(txn, assistant)
	})
	if err != nil {
		user.Id, assistant.Id = 0, 0
		return nil, fmt.Errorf("error saving chat exchange: %w", classify(err))
	}

	return versions, nil
}

func appendMessage(txn *gorm.DB, msg *Message) error {
	kinds, err := encodeKinds(msg.AffectedKinds)
	if err != nil {
		return err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	row := database.ChatMessage{
		SessionId:     msg.SessionId,
		Role:          msg.Role,
		Content:       msg.Content,
		AffectedKinds: kinds,
		Timestamp:     msg.Timestamp,
	}

	res := txn.Model(&database.ChatSession{}).Where("id = ?", msg.SessionId).Update("last_activity", msg.Timestamp)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	if err := txn.Create(&row).Error; err != nil {
		return err
	}

	msg.Id = row.Id
	return nil
}

func updateDiagram(txn *gorm.DB, id uuid.UUID, kind diagram.Kind, text string) (int, error) {
	res := txn.Model(&database.DiagramState{}).
		Where("session_id = ? AND kind = ?", id, string(kind)).
		Updates(map[string]any{
			"text":       text,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrSessionNotFound
	}

	var state database.DiagramState
	if err := txn.First(&state, "session_id = ? AND kind = ?", id, string(kind)).Error; err != nil {
		return 0, err
	}
	return state.Version, nil
}

// ListMessages returns the session log in insertion order.
func (s *Store) ListMessages(ctx context.Context, id uuid.UUID) ([]Message, error) {
	return s.messages(ctx, id, 0)
}

// RecentMessages returns the last n messages of the session log, oldest
// first.
func (s *Store) RecentMessages(ctx context.Context, id uuid.UUID, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.messages(ctx, id, n)
}

func (s *Store) messages(ctx context.Context, id uuid.UUID, limit int) ([]Message, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&database.ChatSession{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, classify(err)
	}
	if count == 0 {
		return nil, ErrSessionNotFound
	}

	query := db.Where("session_id = ?", id)
	if limit > 0 {
		query = query.Order("id DESC").Limit(limit)
	} else {
		query = query.Order("id ASC")
	}

	var rows []database.ChatMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing chat messages: %w", classify(err))
	}
	if limit > 0 {
		slices.Reverse(rows)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		kinds, err := decodeKinds(row.AffectedKinds)
		if err != nil {
			return nil, fmt.Errorf("error decoding affected kinds for message %d: %w", row.Id, err)
		}
		messages = append(messages, Message{
			Id:            row.Id,
			SessionId:     row.SessionId,
			Role:          row.Role,
			Content:       row.Content,
			AffectedKinds: kinds,
			Timestamp:     row.Timestamp,
		})
	}
	return messages, nil
}

func encodeKinds(kinds []diagram.Kind) (datatypes.JSON, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	b, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("could not marshal kinds: %w", err)
	}
	return datatypes.JSON(b), nil
}

func decodeKinds(data datatypes.JSON) ([]diagram.Kind, error) {
	kinds := []diagram.Kind{}
	if len(data) == 0 {
		return kinds, nil
	}
	if err := json.Unmarshal(data, &kinds); err != nil {
		return nil, err
	}
	return kinds, nil
}
