package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"openchat/backend/internal/event"
	"openchat/backend/internal/interfaces/mocks"
	"openchat/backend/internal/model"
	"openchat/backend/internal/service"
	"openchat/backend/internal/stopstore"
	"openchat/backend/internal/ws"
)

type wsFixture struct {
	chat        *mocks.MockChatService
	generations *mocks.MockGenerationService
	stops       stopstore.Store
	broker      *event.Broker
	conn        *websocket.Conn
}

func setupConn(t *testing.T) *wsFixture {
	t.Helper()
	f := &wsFixture{
		chat:        mocks.NewMockChatService(t),
		generations: mocks.NewMockGenerationService(t),
		stops:       stopstore.NewMemoryStore(time.Minute),
		broker:      event.NewBroker(),
	}

	server := httptest.NewServer(ws.NewHandler(f.chat, f.generations, f.stops, f.broker))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f.conn = conn
	return f
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWS_SubscribeAndReceiveEvents(t *testing.T) {
	f := setupConn(t)

	require.NoError(t, f.conn.WriteJSON(ws.Command{Type: ws.CommandSubscribe, ConversationID: "conv1"}))
	ack := readJSON(t, f.conn)
	assert.Equal(t, "subscribed", ack["type"])

	f.broker.Topic("conv1").Publish(event.Event{
		Type: event.TypeStreamUpdate, GenerationID: "g1", ConversationID: "conv1", Content: "hi",
	})

	msg := readJSON(t, f.conn)
	assert.Equal(t, string(event.TypeStreamUpdate), msg["type"])
	assert.Equal(t, "hi", msg["content"])
}

func TestWS_SuppressesAIContentForStoppedGeneration(t *testing.T) {
	f := setupConn(t)
	ctx := context.Background()

	require.NoError(t, f.conn.WriteJSON(ws.Command{Type: ws.CommandSubscribe, ConversationID: "conv1"}))
	readJSON(t, f.conn)

	require.NoError(t, f.stops.RequestStop(ctx, "g-stopped"))

	topic := f.broker.Topic("conv1")
	topic.Publish(event.Event{Type: event.TypeStreamUpdate, GenerationID: "g-stopped", Content: "late delta"})
	topic.Publish(event.Event{Type: event.TypeFullMessage, GenerationID: "g-stopped", Content: "late body"})
	topic.Publish(event.Event{Type: event.TypeGenerationEnd, GenerationID: "g-stopped", Status: model.StatusCancelled})

	// AI content is suppressed at delivery time; the terminal event still
	// goes through.
	msg := readJSON(t, f.conn)
	assert.Equal(t, string(event.TypeGenerationEnd), msg["type"])
	assert.Equal(t, model.StatusCancelled, msg["status"])
}

func TestWS_ChatMessageStartsGeneration(t *testing.T) {
	f := setupConn(t)

	conv := &model.Conversation{ID: "conv1", ModelID: "m1"}
	userMsg := &model.Message{ID: "um1", ConversationID: "conv1", Role: model.RoleUser, Content: "hello"}

	f.chat.On("PrepareUserTurn", mock.Anything, mock.MatchedBy(func(req *service.NewTurnRequest) bool {
		return req.Content == "hello" && req.ConversationID == ""
	})).Return(conv, userMsg, "m1", nil).Once()

	f.generations.On("Start", mock.Anything, mock.MatchedBy(func(req *service.GenerationRequest) bool {
		return req.ConversationID == "conv1" && req.ModelID == "m1" && req.Streaming && req.UserMessageID == "um1"
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			emit := args.Get(2).(event.EmitFunc)
			emit(event.Event{Type: event.TypeGenerationStart, GenerationID: "g1", ConversationID: "conv1"})
			emit(event.Event{Type: event.TypeGenerationEnd, GenerationID: "g1", ConversationID: "conv1", Status: model.StatusCompleted})
		}).Return("g1", nil).Once()

	require.NoError(t, f.conn.WriteJSON(ws.Command{Type: ws.CommandChatMessage, Content: "hello", TempID: "tmp1"}))

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		msg := readJSON(t, f.conn)
		seen[msg["type"].(string)] = true
		if msg["type"] == "ack" {
			assert.Equal(t, "g1", msg["generation_id"])
			assert.Equal(t, "um1", msg["user_message_id"])
			assert.Equal(t, "tmp1", msg["temp_id"])
		}
	}
	assert.True(t, seen["ack"])
	assert.True(t, seen[string(event.TypeGenerationStart)])
	assert.True(t, seen[string(event.TypeGenerationEnd)])
}

func TestWS_StopGeneration(t *testing.T) {
	f := setupConn(t)

	f.generations.On("Stop", mock.Anything, "g1", "").Return(nil).Once()

	require.NoError(t, f.conn.WriteJSON(ws.Command{Type: ws.CommandStopGeneration, GenerationID: "g1"}))
	msg := readJSON(t, f.conn)
	assert.Equal(t, "stop_requested", msg["type"])
	assert.Equal(t, "g1", msg["generation_id"])
}

func TestWS_UnknownCommand(t *testing.T) {
	f := setupConn(t)

	require.NoError(t, f.conn.WriteJSON(ws.Command{Type: "teleport"}))
	msg := readJSON(t, f.conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["error"], "unknown command")
}

func TestWS_MissingCommandTypeRejected(t *testing.T) {
	f := setupConn(t)

	require.NoError(t, f.conn.WriteJSON(ws.Command{TempID: "tmp1", Content: "hello"}))
	msg := readJSON(t, f.conn)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "tmp1", msg["temp_id"])
	assert.Contains(t, msg["error"], "command type is required")
}

func TestWS_InvalidUploadPayload(t *testing.T) {
	f := setupConn(t)

	require.NoError(t, f.conn.WriteJSON(ws.Command{
		Type: ws.CommandImageUpload, Content: "look", FileName: "x.png", FileData: "not base64!!",
	}))
	msg := readJSON(t, f.conn)
	assert.Equal(t, "error", msg["type"])
}
