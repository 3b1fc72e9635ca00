package service_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/model"
	mock_repo "openchat/backend/internal/repository/mocks"
	"openchat/backend/internal/service"
)

type chatMocks struct {
	repo   *mock_repo.MockRepository
	db     *sql.DB
	mockDB sqlmock.Sqlmock
}

func setupChatService(t *testing.T) (*service.ChatService, chatMocks) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mocks := chatMocks{
		repo:   mock_repo.NewMockRepository(t),
		db:     db,
		mockDB: mockDB,
	}
	settings := service.NewSettingsService(db, mocks.repo)
	chat := service.NewChatService(mocks.repo, settings, t.TempDir())
	return chat, mocks
}

func settingsRows(systemPrompt, defaultModel string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"key", "value"}).
		AddRow("system_prompt", systemPrompt).
		AddRow("default_model", defaultModel)
}

func TestChatService_PrepareUserTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("NewConversation", func(t *testing.T) {
		chat, mocks := setupChatService(t)

		mocks.mockDB.ExpectQuery("SELECT key, value FROM settings").
			WillReturnRows(settingsRows("be helpful", "m1"))
		mocks.repo.On("CreateConversation", ctx, mock.MatchedBy(func(c *model.Conversation) bool {
			return c.Title == "hello there" && c.SystemPrompt == "be helpful" && c.ModelID == "m1"
		})).Return(nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.MatchedBy(func(m *model.Message) bool {
			return m.Role == model.RoleUser && m.Content == "hello there"
		})).Return(nil).Once()

		conv, msg, modelID, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{
			UserID: "default-user", Content: "hello there",
		})
		require.NoError(t, err)
		assert.Equal(t, conv.ID, msg.ConversationID)
		assert.Equal(t, "m1", modelID)
	})

	t.Run("ExistingConversation", func(t *testing.T) {
		chat, mocks := setupChatService(t)

		conv := &model.Conversation{ID: "conv1", ModelID: "m1"}
		mocks.repo.On("GetConversation", ctx, "conv1").Return(conv, nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.Anything).Return(nil).Once()

		_, _, modelID, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{
			UserID: "default-user", ConversationID: "conv1", Content: "again",
		})
		require.NoError(t, err)
		assert.Equal(t, "m1", modelID)
	})

	t.Run("ExplicitModelOverride", func(t *testing.T) {
		chat, mocks := setupChatService(t)

		conv := &model.Conversation{ID: "conv1", ModelID: "m1"}
		mocks.repo.On("GetConversation", ctx, "conv1").Return(conv, nil).Once()
		mocks.repo.On("AddMessage", ctx, mock.Anything).Return(nil).Once()

		_, _, modelID, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{
			UserID: "default-user", ConversationID: "conv1", ModelID: "m2", Content: "switch",
		})
		require.NoError(t, err)
		assert.Equal(t, "m2", modelID)
	})

	t.Run("EmptyContent", func(t *testing.T) {
		chat, _ := setupChatService(t)
		_, _, _, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{Content: "   "})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("NoModelAnywhere", func(t *testing.T) {
		chat, mocks := setupChatService(t)

		mocks.repo.On("GetConversation", ctx, "conv1").
			Return(&model.Conversation{ID: "conv1"}, nil).Once()

		_, _, _, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{
			ConversationID: "conv1", Content: "hi",
		})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})

	t.Run("CreateFails", func(t *testing.T) {
		chat, mocks := setupChatService(t)

		mocks.mockDB.ExpectQuery("SELECT key, value FROM settings").
			WillReturnRows(settingsRows("", "m1"))
		mocks.repo.On("CreateConversation", ctx, mock.Anything).Return(errors.New("db error")).Once()

		_, _, _, err := chat.PrepareUserTurn(ctx, &service.NewTurnRequest{Content: "hi"})
		assert.Error(t, err)
	})
}

func TestChatService_AttachUpload(t *testing.T) {
	ctx := context.Background()
	chat, mocks := setupChatService(t)

	msg := &model.Message{ID: "msg1", ConversationID: "conv1", Role: model.RoleUser, Content: "look"}
	mocks.repo.On("UpdateMessageContent", ctx, "msg1", mock.MatchedBy(func(content string) bool {
		return len(content) > len("look") && content[:4] == "look"
	})).Return(nil).Once()

	relPath, err := chat.AttachUpload(ctx, msg, "cat.png", []byte{0x89, 0x50})
	require.NoError(t, err)
	assert.Contains(t, msg.Content, service.FileMarker(relPath))
	assert.Contains(t, relPath, "cat.png")
}

func TestChatService_AttachUploadEmptyFile(t *testing.T) {
	chat, _ := setupChatService(t)
	msg := &model.Message{ID: "msg1"}
	_, err := chat.AttachUpload(context.Background(), msg, "cat.png", nil)
	assert.ErrorIs(t, err, app_errors.ErrValidation)
}

func TestChatService_UpdateConversationTitle(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		chat, mocks := setupChatService(t)
		mocks.repo.On("UpdateConversationTitle", ctx, "conv1", "New Title").Return(nil).Once()
		assert.NoError(t, chat.UpdateConversationTitle(ctx, "conv1", "New Title"))
	})

	t.Run("EmptyTitle", func(t *testing.T) {
		chat, _ := setupChatService(t)
		err := chat.UpdateConversationTitle(ctx, "conv1", "  ")
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}

func TestChatService_GetFullConversation(t *testing.T) {
	ctx := context.Background()
	chat, mocks := setupChatService(t)

	conv := &model.Conversation{ID: "conv1", Title: "hello"}
	history := []model.Message{{ID: "m1", ConversationID: "conv1", Role: model.RoleUser, Content: "hi"}}
	mocks.repo.On("GetConversation", ctx, "conv1").Return(conv, nil).Once()
	mocks.repo.On("GetMessages", ctx, "conv1").Return(history, nil).Once()

	full, err := chat.GetFullConversation(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, "conv1", full.Conversation.ID)
	assert.Len(t, full.Messages, 1)
}

func TestChatService_AttachUploadCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	repo := mock_repo.NewMockRepository(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chat := service.NewChatService(repo, service.NewSettingsService(db, repo), dir)
	msg := &model.Message{ID: "msg1", Content: "hi"}
	repo.On("UpdateMessageContent", mock.Anything, "msg1", mock.Anything).Return(nil).Once()

	relPath, err := chat.AttachUpload(context.Background(), msg, "a.bin", []byte{1})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, relPath))
	assert.NoError(t, statErr)
}
