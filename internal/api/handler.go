package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"openchat/backend/internal/event"
	"openchat/backend/internal/interfaces"
	"openchat/backend/internal/service"
)

// defaultUserID scopes conversations until real authentication exists.
const defaultUserID = "default-user"

type ChatHandler struct {
	chat        interfaces.ChatService
	generations interfaces.GenerationService
	settings    interfaces.SettingsService
	broker      *event.Broker
}

func NewChatHandler(chat interfaces.ChatService, generations interfaces.GenerationService, settings interfaces.SettingsService, broker *event.Broker) *ChatHandler {
	return &ChatHandler{chat: chat, generations: generations, settings: settings, broker: broker}
}

// @Summary      List conversations
// @Description  Gets all conversations for the current user, most recent first.
// @Tags         Conversations
// @Produce      json
// @Success      200  {array}   model.Conversation
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/conversations [get]
func (h *ChatHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.chat.ListConversations(r.Context(), defaultUserID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conversations)
}

// @Summary      Get a conversation
// @Description  Gets a conversation's metadata together with all its messages.
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  model.FullConversation
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [get]
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	full, err := h.chat.GetFullConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, full)
}

// @Summary      Update conversation title
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        conversationID  path  string              true  "Conversation ID"
// @Param        title           body  UpdateTitleRequest  true  "New title"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/title [put]
func (h *ChatHandler) UpdateConversationTitle(w http.ResponseWriter, r *http.Request) {
	var req UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}
	if err := h.chat.UpdateConversationTitle(r.Context(), chi.URLParam(r, "conversationID"), req.Title); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// @Summary      Delete a conversation
// @Tags         Conversations
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID} [delete]
func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// @Summary      List AI models
// @Tags         Models
// @Produce      json
// @Success      200  {array}   model.AIModel
// @Failure      500  {object}  ErrorResponse
// @Router       /v1/models [get]
func (h *ChatHandler) GetModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.chat.ListModels(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models)
}

// @Summary      Get settings
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  service.Settings
// @Router       /v1/settings [get]
func (h *ChatHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// @Summary      Update settings
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        settings  body  service.Settings  true  "New settings"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/settings [post]
func (h *ChatHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings service.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if err := h.settings.Save(r.Context(), &settings); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// @Summary      Send a message
// @Description  Persists the user message and starts a generation. With
// @Description  stream=true the response is a Server-Sent Events stream of
// @Description  lifecycle events; otherwise the call blocks until the
// @Description  generation terminates and returns a summary.
// @Tags         Generations
// @Accept       json
// @Produce      json
// @Param        message  body  SendMessageRequest  true  "Message"
// @Success      200  {object}  GenerationResult
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/conversations/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	conv, userMsg, modelID, err := h.chat.PrepareUserTurn(r.Context(), &service.NewTurnRequest{
		UserID:         defaultUserID,
		ConversationID: req.ConversationID,
		ModelID:        req.ModelID,
		Content:        req.Content,
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	h.runGeneration(w, r, &service.GenerationRequest{
		GenerationID:   req.GenerationID,
		ConversationID: conv.ID,
		ModelID:        modelID,
		TempID:         req.TempID,
		Streaming:      req.Stream,
		UserMessageID:  userMsg.ID,
	})
}

// @Summary      Regenerate a response
// @Description  Replays the conversation from an earlier user message and
// @Description  replaces the assistant messages that followed it.
// @Tags         Generations
// @Accept       json
// @Produce      json
// @Param        conversationID  path  string             true  "Conversation ID"
// @Param        messageID       path  string             true  "User message to regenerate from"
// @Param        options         body  RegenerateRequest  true  "Options"
// @Success      200  {object}  GenerationResult
// @Failure      400  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/messages/{messageID}/regenerate [post]
func (h *ChatHandler) RegenerateMessage(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload"})
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	modelID := req.ModelID
	if modelID == "" {
		conv, err := h.chat.GetFullConversation(r.Context(), conversationID)
		if err != nil {
			respondWithError(w, err)
			return
		}
		modelID = conv.Conversation.ModelID
	}

	h.runGeneration(w, r, &service.GenerationRequest{
		GenerationID:   req.GenerationID,
		ConversationID: conversationID,
		ModelID:        modelID,
		TempID:         req.TempID,
		Streaming:      req.Stream,
		Regenerate:     true,
		PivotMessageID: chi.URLParam(r, "messageID"),
	})
}

// @Summary      Stop a generation
// @Description  Marks the generation as stop-requested. The stop is
// @Description  cooperative; the task observes it at its next checkpoint.
// @Tags         Generations
// @Produce      json
// @Param        generationID  path  string  true  "Generation ID"
// @Success      202  {object}  StopResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /v1/generations/{generationID}/stop [post]
func (h *ChatHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	generationID := chi.URLParam(r, "generationID")
	if err := h.generations.Stop(r.Context(), generationID, ""); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, StopResponse{Status: "stop_requested", GenerationID: generationID})
}

// @Summary      Stop a conversation's running generation
// @Description  Resolves the target generation through the conversation's
// @Description  current-generation hint.
// @Tags         Generations
// @Produce      json
// @Param        conversationID  path  string  true  "Conversation ID"
// @Success      202  {object}  StopResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /v1/conversations/{conversationID}/stop [post]
func (h *ChatHandler) StopConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.generations.Stop(r.Context(), "", chi.URLParam(r, "conversationID")); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, StopResponse{Status: "stop_requested"})
}

// runGeneration starts the task and delivers its events either as an SSE
// stream or as a single blocking JSON summary. Events are mirrored to the
// conversation's broadcast topic so WebSocket subscribers see HTTP-initiated
// generations too.
func (h *ChatHandler) runGeneration(w http.ResponseWriter, r *http.Request, genReq *service.GenerationRequest) {
	queue := event.NewQueue()
	topic := h.broker.Topic(genReq.ConversationID)
	emit := func(e event.Event) {
		queue.Emit(e)
		topic.Publish(e)
	}

	if genReq.Streaming {
		h.streamEvents(w, r, genReq, emit, queue)
		return
	}

	genID, err := h.generations.Start(r.Context(), genReq, emit)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, collectResult(genID, genReq, queue))
}

func (h *ChatHandler) streamEvents(w http.ResponseWriter, r *http.Request, genReq *service.GenerationRequest, emit event.EmitFunc, queue *event.Queue) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := h.generations.Start(r.Context(), genReq, emit); err != nil {
		sendStreamError(w, err.Error())
		return
	}

	for {
		select {
		case e, ok := <-queue.Events():
			if !ok {
				return
			}
			if err := writeStreamEvent(w, e); err != nil {
				// Client gone; the generation keeps running and can still
				// be stopped explicitly.
				queue.Abandon()
				return
			}
		case <-r.Context().Done():
			queue.Abandon()
			return
		}
	}
}

// collectResult drains the queue until the terminal event and folds the
// stream into one response body.
func collectResult(genID string, genReq *service.GenerationRequest, queue *event.Queue) GenerationResult {
	result := GenerationResult{
		GenerationID:   genID,
		ConversationID: genReq.ConversationID,
		UserMessageID:  genReq.UserMessageID,
	}
	for e := range queue.Events() {
		switch e.Type {
		case event.TypeFullMessage:
			result.Content = e.Content
		case event.TypeStreamUpdate:
			result.Content += e.Content
		case event.TypeIDUpdate:
			result.MessageID = e.MessageID
		case event.TypeGenerationEnd:
			result.Status = e.Status
			result.Error = e.Error
		}
	}
	return result
}
