package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/model"
	"openchat/backend/internal/repository"
)

// ChatService owns conversation and message lifecycle outside of generation:
// creating the user's side of a turn, listing, titling, deleting, and
// attaching uploads.
type ChatService struct {
	repo      repository.Repository
	settings  *SettingsService
	uploadDir string
}

// NewTurnRequest describes the user half of a chat turn. An empty
// ConversationID creates a new conversation titled from the content.
type NewTurnRequest struct {
	UserID         string
	ConversationID string
	ModelID        string
	Content        string
}

func NewChatService(repo repository.Repository, settings *SettingsService, uploadDir string) *ChatService {
	return &ChatService{repo: repo, settings: settings, uploadDir: uploadDir}
}

// PrepareUserTurn persists the user message (creating the conversation first
// if needed) before any generation starts, so the turn survives even if the
// generation never runs. It returns the conversation, the stored message and
// the resolved model id for the follow-up generation.
func (s *ChatService) PrepareUserTurn(ctx context.Context, req *NewTurnRequest) (*model.Conversation, *model.Message, string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, nil, "", fmt.Errorf("%w: content cannot be empty", app_errors.ErrValidation)
	}

	var conv *model.Conversation
	var err error
	if req.ConversationID == "" {
		conv, err = s.createConversation(ctx, req)
	} else {
		conv, err = s.repo.GetConversation(ctx, req.ConversationID)
	}
	if err != nil {
		return nil, nil, "", err
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = conv.ModelID
	}
	if modelID == "" {
		return nil, nil, "", fmt.Errorf("%w: no model selected", app_errors.ErrValidation)
	}

	userMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        req.Content,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, userMsg); err != nil {
		return nil, nil, "", fmt.Errorf("could not save user message: %w", err)
	}
	return conv, userMsg, modelID, nil
}

func (s *ChatService) createConversation(ctx context.Context, req *NewTurnRequest) (*model.Conversation, error) {
	systemPrompt := ""
	modelID := req.ModelID
	if settings, err := s.settings.Get(ctx); err == nil {
		systemPrompt = settings.SystemPrompt
		if modelID == "" {
			modelID = settings.DefaultModel
		}
	} else {
		slog.Warn("Could not load settings for new conversation", "error", err)
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Title:        truncate(req.Content, 50),
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("could not create conversation: %w", err)
	}
	return conv, nil
}

// AttachUpload stores an uploaded file under the uploads directory and
// appends its marker to the message content, where the context assembler
// picks it up on later turns.
func (s *ChatService) AttachUpload(ctx context.Context, msg *model.Message, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", app_errors.ErrValidation)
	}
	relPath := uuid.New().String() + "_" + filepath.Base(fileName)

	if err := os.MkdirAll(s.uploadDir, 0750); err != nil {
		return "", fmt.Errorf("could not create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.uploadDir, relPath), data, 0640); err != nil {
		return "", fmt.Errorf("could not store upload: %w", err)
	}

	content := strings.TrimSpace(msg.Content + "\n" + FileMarker(relPath))
	if err := s.repo.UpdateMessageContent(ctx, msg.ID, content); err != nil {
		return "", fmt.Errorf("could not link upload to message: %w", err)
	}
	msg.Content = content
	return relPath, nil
}

// ListConversations retrieves all conversations for a user, most recent
// first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	return s.repo.GetConversations(ctx, userID)
}

// GetFullConversation retrieves a conversation's metadata and all its
// messages.
func (s *ChatService) GetFullConversation(ctx context.Context, conversationID string) (*model.FullConversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullConversation{Conversation: *conv, Messages: messages}, nil
}

// UpdateConversationTitle handles a manual title change.
func (s *ChatService) UpdateConversationTitle(ctx context.Context, conversationID, newTitle string) error {
	if strings.TrimSpace(newTitle) == "" {
		return fmt.Errorf("%w: title cannot be empty", app_errors.ErrValidation)
	}
	return s.repo.UpdateConversationTitle(ctx, conversationID, newTitle)
}

// DeleteConversation deletes a conversation and all its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID string) error {
	slog.Info("Deleting conversation", "conversation_id", conversationID)
	return s.repo.DeleteConversation(ctx, conversationID)
}

// GetMessage fetches a single message, used to resolve regenerate targets.
func (s *ChatService) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	return s.repo.GetMessage(ctx, messageID)
}

// ListModels returns the configured AI models.
func (s *ChatService) ListModels(ctx context.Context) ([]*model.AIModel, error) {
	return s.repo.GetModels(ctx)
}

func truncate(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}
