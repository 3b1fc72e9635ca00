// Package event defines the generation lifecycle events and the two
// transports that deliver them: a broadcast broker fanning out to every
// connection subscribed to a conversation, and a per-request queue drained by
// a single streamed HTTP response. The generation task is transport-agnostic;
// it emits through one callback.
package event

// Type enumerates the lifecycle events a generation emits.
type Type string

const (
	TypeGenerationStart Type = "generation_start"
	TypeStreamUpdate    Type = "stream_update"
	TypeFullMessage     Type = "full_message"
	TypeIDUpdate        Type = "id_update"
	TypeGenerationEnd   Type = "generation_end"
)

// Event is one lifecycle notification. Every event carries the generation id
// so a client with multiple in-flight requests can disambiguate. TempID
// echoes a client-supplied placeholder id so optimistic UI entries can be
// reconciled.
type Event struct {
	Type           Type   `json:"type"`
	GenerationID   string `json:"generation_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	TempID         string `json:"temp_id,omitempty"`

	// Content is the text delta for stream_update, the whole text for
	// full_message.
	Content string `json:"content,omitempty"`

	// MessageID identifies the persisted assistant message (id_update).
	// UserMessageID echoes the persisted user message for the same turn.
	MessageID     string `json:"message_id,omitempty"`
	UserMessageID string `json:"user_message_id,omitempty"`

	// Status and Error are set on generation_end only.
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Terminal reports whether this is the final event of its generation.
func (e Event) Terminal() bool { return e.Type == TypeGenerationEnd }

// CarriesAIContent reports whether the event would show AI-authored text to a
// user. Connection actors re-check the stop store before forwarding these.
func (e Event) CarriesAIContent() bool {
	return e.Type == TypeStreamUpdate || e.Type == TypeFullMessage
}

// EmitFunc is the capability handed to a generation task for publishing
// lifecycle events. Implementations must not block indefinitely.
type EmitFunc func(Event)
