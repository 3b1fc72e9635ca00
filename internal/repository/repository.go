package repository

import (
	"context"
	"time"

	"openchat/backend/internal/model"
)

// Repository defines the interface for data storage operations.
// This interface makes it easy to switch database implementations.
type Repository interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
	GetConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID, newTitle string) error
	DeleteConversation(ctx context.Context, conversationID string) error

	// SetCurrentGeneration records the generation presently writing to a
	// conversation. ClearCurrentGeneration resets it only while it still
	// matches generationID, so a newer generation's marker is never clobbered
	// by an older task's cleanup.
	SetCurrentGeneration(ctx context.Context, conversationID, generationID string) error
	ClearCurrentGeneration(ctx context.Context, conversationID, generationID string) error

	AddMessage(ctx context.Context, msg *model.Message) error
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string) error
	DeleteMessage(ctx context.Context, messageID string) error
	DeleteAssistantMessagesAfter(ctx context.Context, conversationID string, after time.Time) error

	GetModel(ctx context.Context, modelID string) (*model.AIModel, error)
	GetModels(ctx context.Context) ([]*model.AIModel, error)
}
