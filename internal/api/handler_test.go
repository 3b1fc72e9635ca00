// The `_test` suffix creates a "black box" test package: the tests exercise
// only the package's exported surface, like a real caller would.
package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"openchat/backend/internal/api"
	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/event"
	"openchat/backend/internal/interfaces/mocks"
	"openchat/backend/internal/model"
	"openchat/backend/internal/service"
)

type handlerMocks struct {
	chat        *mocks.MockChatService
	generations *mocks.MockGenerationService
	settings    *mocks.MockSettingsService
}

func setupChatHandler(t *testing.T) (*api.ChatHandler, handlerMocks) {
	m := handlerMocks{
		chat:        mocks.NewMockChatService(t),
		generations: mocks.NewMockGenerationService(t),
		settings:    mocks.NewMockSettingsService(t),
	}
	handler := api.NewChatHandler(m.chat, m.generations, m.settings, event.NewBroker())
	return handler, m
}

// addChiURLParams simulates how the chi router injects URL parameters into
// the request context.
func addChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for key, value := range params {
		chiCtx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

func TestChatHandler_GetConversations(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, m := setupChatHandler(t)
		m.chat.On("ListConversations", mock.Anything, "default-user").
			Return([]*model.Conversation{{ID: "conv1", Title: "hello"}}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
		rr := httptest.NewRecorder()
		handler.GetConversations(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var conversations []model.Conversation
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conversations))
		require.Len(t, conversations, 1)
		assert.Equal(t, "conv1", conversations[0].ID)
	})

	t.Run("RepoError", func(t *testing.T) {
		handler, m := setupChatHandler(t)
		m.chat.On("ListConversations", mock.Anything, "default-user").
			Return(nil, errors.New("db down")).Once()

		rr := httptest.NewRecorder()
		handler.GetConversations(rr, httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestChatHandler_GetConversation_NotFound(t *testing.T) {
	handler, m := setupChatHandler(t)
	m.chat.On("GetFullConversation", mock.Anything, "ghost").
		Return(nil, app_errors.ErrNotFound).Once()

	req := addChiURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/ghost", nil),
		map[string]string{"conversationID": "ghost"})
	rr := httptest.NewRecorder()
	handler.GetConversation(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatHandler_UpdateConversationTitle(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, m := setupChatHandler(t)
		m.chat.On("UpdateConversationTitle", mock.Anything, "conv1", "New Title").Return(nil).Once()

		req := addChiURLParams(
			httptest.NewRequest(http.MethodPut, "/api/v1/conversations/conv1/title",
				strings.NewReader(`{"title":"New Title"}`)),
			map[string]string{"conversationID": "conv1"})
		rr := httptest.NewRecorder()
		handler.UpdateConversationTitle(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("EmptyTitleRejected", func(t *testing.T) {
		handler, _ := setupChatHandler(t)

		req := addChiURLParams(
			httptest.NewRequest(http.MethodPut, "/api/v1/conversations/conv1/title",
				strings.NewReader(`{"title":""}`)),
			map[string]string{"conversationID": "conv1"})
		rr := httptest.NewRecorder()
		handler.UpdateConversationTitle(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestChatHandler_StopGeneration(t *testing.T) {
	handler, m := setupChatHandler(t)
	m.generations.On("Stop", mock.Anything, "g1", "").Return(nil).Once()

	req := addChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/v1/generations/g1/stop", nil),
		map[string]string{"generationID": "g1"})
	rr := httptest.NewRecorder()
	handler.StopGeneration(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp api.StopResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "stop_requested", resp.Status)
	assert.Equal(t, "g1", resp.GenerationID)
}

func TestChatHandler_StopConversation_NoGeneration(t *testing.T) {
	handler, m := setupChatHandler(t)
	m.generations.On("Stop", mock.Anything, "", "conv1").
		Return(app_errors.ErrNotFound).Once()

	req := addChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv1/stop", nil),
		map[string]string{"conversationID": "conv1"})
	rr := httptest.NewRecorder()
	handler.StopConversation(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func prepareTurn(m handlerMocks) {
	conv := &model.Conversation{ID: "conv1", ModelID: "m1"}
	userMsg := &model.Message{ID: "um1", ConversationID: "conv1", Role: model.RoleUser, Content: "hello"}
	m.chat.On("PrepareUserTurn", mock.Anything, mock.AnythingOfType("*service.NewTurnRequest")).
		Return(conv, userMsg, "m1", nil).Once()
}

func TestChatHandler_SendMessage_Buffered(t *testing.T) {
	handler, m := setupChatHandler(t)
	prepareTurn(m)

	m.generations.On("Start", mock.Anything, mock.MatchedBy(func(req *service.GenerationRequest) bool {
		return req.ConversationID == "conv1" && req.ModelID == "m1" && !req.Streaming
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(2).(event.EmitFunc)
			emit(event.Event{Type: event.TypeGenerationStart, GenerationID: "g1"})
			emit(event.Event{Type: event.TypeFullMessage, GenerationID: "g1", Content: "hi"})
			emit(event.Event{Type: event.TypeIDUpdate, GenerationID: "g1", MessageID: "am1"})
			emit(event.Event{Type: event.TypeGenerationEnd, GenerationID: "g1", Status: model.StatusCompleted})
		}).Return("g1", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/messages",
		strings.NewReader(`{"content":"hello"}`))
	rr := httptest.NewRecorder()
	handler.SendMessage(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var result api.GenerationResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, "g1", result.GenerationID)
	assert.Equal(t, "hi", result.Content)
	assert.Equal(t, "am1", result.MessageID)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "um1", result.UserMessageID)
}

func TestChatHandler_SendMessage_Stream(t *testing.T) {
	handler, m := setupChatHandler(t)
	prepareTurn(m)

	m.generations.On("Start", mock.Anything, mock.MatchedBy(func(req *service.GenerationRequest) bool {
		return req.Streaming
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(2).(event.EmitFunc)
			emit(event.Event{Type: event.TypeGenerationStart, GenerationID: "g1"})
			emit(event.Event{Type: event.TypeStreamUpdate, GenerationID: "g1", Content: "hi"})
			emit(event.Event{Type: event.TypeGenerationEnd, GenerationID: "g1", Status: model.StatusCompleted})
		}).Return("g1", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/messages",
		strings.NewReader(`{"content":"hello","stream":true}`))
	rr := httptest.NewRecorder()
	handler.SendMessage(rr, req)

	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `"type":"generation_start"`)
	assert.Contains(t, body, `"type":"stream_update"`)
	assert.Contains(t, body, `"type":"generation_end"`)
	assert.True(t, strings.HasPrefix(body, "data: "))
}

func TestChatHandler_SendMessage_InvalidBody(t *testing.T) {
	handler, _ := setupChatHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/messages",
		strings.NewReader(`{"content":""}`))
	rr := httptest.NewRecorder()
	handler.SendMessage(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChatHandler_Settings(t *testing.T) {
	t.Run("Get", func(t *testing.T) {
		handler, m := setupChatHandler(t)
		m.settings.On("Get", mock.Anything).
			Return(&service.Settings{SystemPrompt: "be kind", DefaultModel: "m1"}, nil).Once()

		rr := httptest.NewRecorder()
		handler.GetSettings(rr, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var settings service.Settings
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &settings))
		assert.Equal(t, "m1", settings.DefaultModel)
	})

	t.Run("SaveUnknownModel", func(t *testing.T) {
		handler, m := setupChatHandler(t)
		m.settings.On("Save", mock.Anything, mock.AnythingOfType("*service.Settings")).
			Return(app_errors.ErrValidation).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/settings",
			strings.NewReader(`{"default_model":"ghost"}`))
		rr := httptest.NewRecorder()
		handler.UpdateSettings(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
