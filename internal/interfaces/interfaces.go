package interfaces

import (
	"context"

	"openchat/backend/internal/event"
	"openchat/backend/internal/model"
	"openchat/backend/internal/service"
)

// This file defines the interfaces for our core services.
// Depending on these interfaces, instead of concrete implementations, allows for
// decoupling (e.g., API layer from Service layer) and easier testing via mocking.

// ChatService defines the contract for conversation and message logic outside
// of generation.
type ChatService interface {
	PrepareUserTurn(ctx context.Context, req *service.NewTurnRequest) (*model.Conversation, *model.Message, string, error)
	AttachUpload(ctx context.Context, msg *model.Message, fileName string, data []byte) (string, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	GetFullConversation(ctx context.Context, conversationID string) (*model.FullConversation, error)
	UpdateConversationTitle(ctx context.Context, conversationID, newTitle string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	GetMessage(ctx context.Context, messageID string) (*model.Message, error)
	ListModels(ctx context.Context) ([]*model.AIModel, error)
}

// GenerationService defines the contract for starting and stopping
// generations.
type GenerationService interface {
	Start(ctx context.Context, req *service.GenerationRequest, emit event.EmitFunc) (string, error)
	Stop(ctx context.Context, generationID, conversationID string) error
}

// SettingsService defines the contract for managing application settings.
type SettingsService interface {
	InitAndGet(ctx context.Context, initialSystemPrompt string) (*service.Settings, error)
	Get(ctx context.Context) (*service.Settings, error)
	Save(ctx context.Context, settings *service.Settings) error
}
