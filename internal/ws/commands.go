package ws

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	app_errors "openchat/backend/internal/errors"
)

// Command types accepted from clients.
const (
	CommandChatMessage    = "chat_message"
	CommandRegenerate     = "regenerate"
	CommandImageUpload    = "image_upload"
	CommandStopGeneration = "stop_generation"
	CommandSubscribe      = "subscribe"
	CommandUnsubscribe    = "unsubscribe"
)

// Command is the envelope for every inbound WebSocket message. Fields beyond
// Type are command-specific; validation happens per command type.
type Command struct {
	Type           string `json:"type" validate:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
	Content        string `json:"content,omitempty"`
	TempID         string `json:"temp_id,omitempty"`
	GenerationID   string `json:"generation_id,omitempty"`

	// MessageID targets the user message to regenerate from.
	MessageID string `json:"message_id,omitempty"`

	// FileName and FileData carry an image upload; FileData is base64.
	FileName string `json:"file_name,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

var commandValidator = validator.New()

// Validate checks the envelope's field rules before the command is
// dispatched.
func (c *Command) Validate() error {
	if err := commandValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: command type is required", app_errors.ErrValidation)
	}
	return nil
}

// Ack confirms an accepted command, echoing the ids a client needs to
// reconcile its optimistic state.
type Ack struct {
	Type           string `json:"type"`
	TempID         string `json:"temp_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserMessageID  string `json:"user_message_id,omitempty"`
	GenerationID   string `json:"generation_id,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
}

// CommandError reports a rejected command back to the sender only.
type CommandError struct {
	Type   string `json:"type"`
	TempID string `json:"temp_id,omitempty"`
	Error  string `json:"error"`
}
