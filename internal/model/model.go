package model

import (
	"encoding/json"
	"time"
)

// Message roles as they appear on the provider wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation stores metadata about one chat thread. CurrentGenerationID is
// advisory: it names the generation presently writing to the conversation so
// a stop command without an explicit target can be resolved, but cancellation
// itself is always keyed by generation id.
type Conversation struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Title               string    `json:"title"`
	ModelID             string    `json:"model_id"`
	SystemPrompt        string    `json:"system_prompt,omitempty"`
	CurrentGenerationID *string   `json:"current_generation_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Message stores a single turn in a conversation. GenerationID records which
// generation produced an assistant message, for traceability.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ModelID        *string   `json:"model_id,omitempty"`
	GenerationID   *string   `json:"generation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsUser reports whether the message was authored by the end user.
func (m *Message) IsUser() bool { return m.Role == RoleUser }

// AIModel describes a configured model on a remote OpenAI-compatible
// provider. DefaultParams is merged verbatim into completion request bodies.
type AIModel struct {
	ID                 string          `json:"id"`
	ModelName          string          `json:"model_name"`
	DisplayName        string          `json:"display_name"`
	BaseURL            string          `json:"-"`
	APIKey             string          `json:"-"`
	MaxHistoryMessages int             `json:"max_history_messages"`
	DefaultParams      json.RawMessage `json:"default_params,omitempty"`
	IsActive           bool            `json:"is_active"`
}

// FullConversation includes the conversation metadata and all its messages.
type FullConversation struct {
	Conversation
	Messages []Message `json:"messages"`
}

// Generation terminal statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)
