package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"openchat/backend/internal/event"
	"openchat/backend/internal/interfaces"
	"openchat/backend/internal/service"
	"openchat/backend/internal/stopstore"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Image uploads arrive base64-encoded inside the command envelope.
	maxMessageSize = 16 << 20

	sendBuffer = 128
)

// client is one WebSocket connection actor. It dispatches inbound commands
// and forwards broadcast events for the conversations it subscribed to.
type client struct {
	conn        *websocket.Conn
	chat        interfaces.ChatService
	generations interfaces.GenerationService
	stops       stopstore.Store
	broker      *event.Broker

	send   chan any
	closed chan struct{}

	mu   sync.Mutex
	subs map[string]*event.Subscription
}

func newClient(conn *websocket.Conn, h *Handler) *client {
	return &client{
		conn:        conn,
		chat:        h.chat,
		generations: h.generations,
		stops:       h.stops,
		broker:      h.broker,
		send:        make(chan any, sendBuffer),
		closed:      make(chan struct{}),
		subs:        make(map[string]*event.Subscription),
	}
}

// readPump reads and dispatches commands until the connection drops. It runs
// on the connection's handler goroutine.
func (c *client) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.reply(CommandError{Type: "error", Error: "invalid command payload"})
			continue
		}
		if err := cmd.Validate(); err != nil {
			c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
			continue
		}
		c.dispatch(&cmd)
	}
}

// writePump serializes all outbound traffic for the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *client) dispatch(cmd *Command) {
	ctx := context.Background()

	switch cmd.Type {
	case CommandChatMessage:
		c.handleChatMessage(ctx, cmd, nil)
	case CommandImageUpload:
		data, err := base64.StdEncoding.DecodeString(cmd.FileData)
		if err != nil || len(data) == 0 {
			c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: "invalid file payload"})
			return
		}
		c.handleChatMessage(ctx, cmd, data)
	case CommandRegenerate:
		c.handleRegenerate(ctx, cmd)
	case CommandStopGeneration:
		if err := c.generations.Stop(ctx, cmd.GenerationID, cmd.ConversationID); err != nil {
			c.reply(CommandError{Type: "error", Error: err.Error()})
			return
		}
		c.reply(Ack{Type: "stop_requested", GenerationID: cmd.GenerationID, ConversationID: cmd.ConversationID})
	case CommandSubscribe:
		c.subscribe(cmd.ConversationID)
		c.reply(Ack{Type: "subscribed", ConversationID: cmd.ConversationID})
	case CommandUnsubscribe:
		c.unsubscribe(cmd.ConversationID)
		c.reply(Ack{Type: "unsubscribed", ConversationID: cmd.ConversationID})
	default:
		c.reply(CommandError{Type: "error", Error: fmt.Sprintf("unknown command type %q", cmd.Type)})
	}
}

// handleChatMessage persists the user turn (optionally with an uploaded
// file), subscribes the sender to the conversation and starts a streaming
// generation broadcast on the conversation topic.
func (c *client) handleChatMessage(ctx context.Context, cmd *Command, upload []byte) {
	conv, userMsg, modelID, err := c.chat.PrepareUserTurn(ctx, &service.NewTurnRequest{
		UserID:         "default-user",
		ConversationID: cmd.ConversationID,
		ModelID:        cmd.ModelID,
		Content:        cmd.Content,
	})
	if err != nil {
		c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
		return
	}

	var filePath string
	if upload != nil {
		filePath, err = c.chat.AttachUpload(ctx, userMsg, cmd.FileName, upload)
		if err != nil {
			c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
			return
		}
	}

	c.subscribe(conv.ID)

	genID, err := c.generations.Start(ctx, &service.GenerationRequest{
		GenerationID:   cmd.GenerationID,
		ConversationID: conv.ID,
		ModelID:        modelID,
		TempID:         cmd.TempID,
		Streaming:      true,
		UserMessageID:  userMsg.ID,
	}, c.broker.Topic(conv.ID).Publish)
	if err != nil {
		c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
		return
	}

	c.reply(Ack{
		Type:           "ack",
		TempID:         cmd.TempID,
		ConversationID: conv.ID,
		UserMessageID:  userMsg.ID,
		GenerationID:   genID,
		FilePath:       filePath,
	})
}

func (c *client) handleRegenerate(ctx context.Context, cmd *Command) {
	modelID := cmd.ModelID
	if modelID == "" {
		full, err := c.chat.GetFullConversation(ctx, cmd.ConversationID)
		if err != nil {
			c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
			return
		}
		modelID = full.Conversation.ModelID
	}

	c.subscribe(cmd.ConversationID)

	genID, err := c.generations.Start(ctx, &service.GenerationRequest{
		GenerationID:   cmd.GenerationID,
		ConversationID: cmd.ConversationID,
		ModelID:        modelID,
		TempID:         cmd.TempID,
		Streaming:      true,
		Regenerate:     true,
		PivotMessageID: cmd.MessageID,
	}, c.broker.Topic(cmd.ConversationID).Publish)
	if err != nil {
		c.reply(CommandError{Type: "error", TempID: cmd.TempID, Error: err.Error()})
		return
	}
	c.reply(Ack{Type: "ack", TempID: cmd.TempID, ConversationID: cmd.ConversationID, GenerationID: genID})
}

// subscribe attaches the client to a conversation topic. The forwarding
// goroutine re-checks the stop store before delivering AI content: a
// generation cancelled moments ago may still have events in flight, and the
// user who pressed stop must not see them.
func (c *client) subscribe(conversationID string) {
	if conversationID == "" {
		return
	}
	c.mu.Lock()
	if _, ok := c.subs[conversationID]; ok {
		c.mu.Unlock()
		return
	}
	sub := c.broker.Topic(conversationID).Subscribe()
	c.subs[conversationID] = sub
	c.mu.Unlock()

	go func() {
		for {
			select {
			case e := <-sub.Events():
				if e.CarriesAIContent() && c.stops.IsStopRequested(context.Background(), e.GenerationID) {
					continue
				}
				select {
				case c.send <- e:
				case <-c.closed:
					return
				}
			case <-sub.Done():
				return
			case <-c.closed:
				return
			}
		}
	}()
}

func (c *client) unsubscribe(conversationID string) {
	c.mu.Lock()
	sub, ok := c.subs[conversationID]
	if ok {
		delete(c.subs, conversationID)
	}
	c.mu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
}

func (c *client) reply(msg any) {
	select {
	case c.send <- msg:
	case <-c.closed:
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[string]*event.Subscription{}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	close(c.closed)
	_ = c.conn.Close()
}
