package api

import (
	"time"

	"github.com/google/uuid"
)

type StartChatRequest struct {
	InitialPrompt string   `json:"initial_prompt"`
	DiagramTypes  []string `json:"diagram_types"`
}

type StartChatResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Diagrams  map[string]string `json:"diagrams"`
	Message   string            `json:"message"`
}

type ChatMessageRequest struct {
	Message        string   `json:"message"`
	TargetDiagrams []string `json:"target_diagrams,omitempty"`
}

type ChatMessageResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Response  string            `json:"response"`
	Diagrams  map[string]string `json:"diagrams"`
	// UpdatedDiagrams holds only the entries replaced by this message.
	UpdatedDiagrams map[string]string `json:"updated_diagrams"`
}

type ChatHistoryItem struct {
	Role          string    `json:"role"` // "user" or "assistant"
	Content       string    `json:"content"`
	AffectedKinds []string  `json:"affected_kinds"`
	Timestamp     time.Time `json:"timestamp"`
}

type DiagramState struct {
	Type    string `json:"diagram_type"`
	Text    string `json:"mermaid"`
	Version int    `json:"version"`
}

type ChatSessionInfo struct {
	SessionID       uuid.UUID      `json:"session_id"`
	InitialPrompt   string         `json:"initial_prompt"`
	DiagramTypes    []string       `json:"diagram_types"`
	CreatedAt       time.Time      `json:"created_at"`
	LastActivity    time.Time      `json:"last_activity"`
	CurrentDiagrams []DiagramState `json:"current_diagrams"`
}
