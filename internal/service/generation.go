package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/event"
	"openchat/backend/internal/llm"
	"openchat/backend/internal/model"
	"openchat/backend/internal/repository"
	"openchat/backend/internal/stopstore"
)

// GenerationConfig tunes the lifecycle of one generation task.
type GenerationConfig struct {
	// HeartbeatInterval is how often a running task renews the stop marker's
	// TTL while a provider call is in flight.
	HeartbeatInterval time.Duration

	// InterChunkTimeout fails a streaming generation when the provider goes
	// silent mid-stream.
	InterChunkTimeout time.Duration

	// MaxRetries bounds additional provider attempts after a transient
	// failure (timeout or 5xx). Retries never happen once content has been
	// streamed to the client.
	MaxRetries   int
	RetryBackoff time.Duration
}

// GenerationRequest describes one requested AI turn.
type GenerationRequest struct {
	// GenerationID may be supplied by the client for pre-request stop
	// races; anything that is not a valid UUID is replaced server-side.
	GenerationID   string
	ConversationID string
	ModelID        string
	TempID         string
	Streaming      bool

	// UserMessageID echoes the persisted user message in generation_start.
	UserMessageID string

	// Regenerate replays the conversation from PivotMessageID (a user
	// message); assistant messages after it are replaced.
	Regenerate     bool
	PivotMessageID string
}

// GenerationService runs generation tasks: background units of work that
// assemble context, call the provider, persist the result and emit lifecycle
// events, checking the stop store at every checkpoint along the way.
type GenerationService struct {
	repo      repository.Repository
	provider  llm.Provider
	stops     stopstore.Store
	assembler *ContextAssembler
	cfg       GenerationConfig
}

func NewGenerationService(repo repository.Repository, provider llm.Provider, stops stopstore.Store, assembler *ContextAssembler, cfg GenerationConfig) *GenerationService {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.InterChunkTimeout <= 0 {
		cfg.InterChunkTimeout = 20 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &GenerationService{repo: repo, provider: provider, stops: stops, assembler: assembler, cfg: cfg}
}

// Start validates the request, normalizes the generation id and launches the
// task in the background. It returns the effective generation id
// immediately; progress is delivered through emit.
func (s *GenerationService) Start(ctx context.Context, req *GenerationRequest, emit event.EmitFunc) (string, error) {
	if req.ConversationID == "" {
		return "", fmt.Errorf("%w: conversation_id is required", app_errors.ErrValidation)
	}
	if req.ModelID == "" {
		return "", fmt.Errorf("%w: model_id is required", app_errors.ErrValidation)
	}
	if req.Regenerate && req.PivotMessageID == "" {
		return "", fmt.Errorf("%w: message_id is required to regenerate", app_errors.ErrValidation)
	}

	genID := req.GenerationID
	if _, err := uuid.Parse(genID); err != nil {
		genID = uuid.New().String()
	}

	// The task outlives the request that spawned it; a dropped connection
	// must not abort a generation the user can still stop explicitly.
	go s.run(context.WithoutCancel(ctx), genID, req, emit)
	return genID, nil
}

// Stop marks a generation as stop-requested. With an empty generationID the
// conversation's current generation hint resolves the target.
func (s *GenerationService) Stop(ctx context.Context, generationID, conversationID string) error {
	if generationID == "" {
		if conversationID == "" {
			return fmt.Errorf("%w: generation_id or conversation_id is required", app_errors.ErrValidation)
		}
		conv, err := s.repo.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv.CurrentGenerationID == nil || *conv.CurrentGenerationID == "" {
			return fmt.Errorf("%w: no generation in progress", app_errors.ErrNotFound)
		}
		generationID = *conv.CurrentGenerationID
	}
	return s.stops.RequestStop(ctx, generationID)
}

// run is the generation task body. Exactly one generation_end is emitted per
// run, from the single deferred finish below.
func (s *GenerationService) run(ctx context.Context, genID string, req *GenerationRequest, emit event.EmitFunc) {
	status := model.StatusFailed
	var failure string

	defer func() {
		if status != model.StatusCancelled {
			// A cancelled marker is left to expire via TTL so that
			// delivery-time checks in connection actors still see it.
			if err := s.stops.Clear(ctx, genID); err != nil {
				slog.Warn("Could not clear stop marker", "generation_id", genID, "error", err)
			}
		}
		if err := s.repo.ClearCurrentGeneration(ctx, req.ConversationID, genID); err != nil {
			slog.Warn("Could not clear current generation", "conversation_id", req.ConversationID, "error", err)
		}
		emit(event.Event{
			Type:           event.TypeGenerationEnd,
			GenerationID:   genID,
			ConversationID: req.ConversationID,
			TempID:         req.TempID,
			Status:         status,
			Error:          failure,
		})
	}()

	// Checkpoint: a stop can land before the task is even scheduled.
	if s.stops.IsStopRequested(ctx, genID) {
		status = model.StatusCancelled
		return
	}

	conv, err := s.repo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		failure = fmt.Sprintf("conversation lookup failed: %v", err)
		return
	}
	aiModel, err := s.repo.GetModel(ctx, req.ModelID)
	if err != nil {
		failure = fmt.Sprintf("model lookup failed: %v", err)
		return
	}

	if err := s.repo.SetCurrentGeneration(ctx, req.ConversationID, genID); err != nil {
		slog.Warn("Could not record current generation", "conversation_id", req.ConversationID, "error", err)
	}

	emit(event.Event{
		Type:           event.TypeGenerationStart,
		GenerationID:   genID,
		ConversationID: req.ConversationID,
		TempID:         req.TempID,
		UserMessageID:  req.UserMessageID,
	})

	history, err := s.repo.GetMessages(ctx, req.ConversationID)
	if err != nil {
		failure = fmt.Sprintf("history lookup failed: %v", err)
		return
	}
	var pivot *model.Message
	if req.Regenerate {
		pivot, err = s.findPivot(history, req.PivotMessageID)
		if err != nil {
			failure = err.Error()
			return
		}
	}
	messages, err := s.assembler.Build(conv, history, req.PivotMessageID, aiModel.MaxHistoryMessages)
	if err != nil {
		failure = fmt.Sprintf("context assembly failed: %v", err)
		return
	}

	llmReq := &llm.Request{
		BaseURL:  aiModel.BaseURL,
		APIKey:   aiModel.APIKey,
		Model:    aiModel.ModelName,
		Messages: messages,
		Params:   aiModel.DefaultParams,
	}

	content, err := s.generate(ctx, genID, req, llmReq, emit)
	if err != nil {
		if errors.Is(err, app_errors.ErrCancelled) {
			status = model.StatusCancelled
		} else {
			failure = err.Error()
			slog.Error("Generation failed", "generation_id", genID, "error", err)
		}
		return
	}

	// Checkpoint: a stop that raced in during the final chunks discards the
	// completed content instead of persisting it.
	if s.stops.IsStopRequested(ctx, genID) {
		status = model.StatusCancelled
		return
	}

	if req.Regenerate {
		if err := s.repo.DeleteAssistantMessagesAfter(ctx, req.ConversationID, pivot.Timestamp); err != nil {
			failure = fmt.Sprintf("could not replace previous response: %v", err)
			return
		}
	}

	aiMsg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: req.ConversationID,
		Role:           model.RoleAssistant,
		Content:        content,
		ModelID:        &req.ModelID,
		GenerationID:   &genID,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, aiMsg); err != nil {
		failure = fmt.Sprintf("could not save message: %v", err)
		return
	}

	// Checkpoint: between persist and broadcast. An orphaned row the client
	// was told nothing about is worse than one extra delete.
	if s.stops.IsStopRequested(ctx, genID) {
		if err := s.repo.DeleteMessage(ctx, aiMsg.ID); err != nil {
			slog.Error("Could not delete message of cancelled generation", "message_id", aiMsg.ID, "error", err)
		}
		status = model.StatusCancelled
		return
	}

	emit(event.Event{
		Type:           event.TypeIDUpdate,
		GenerationID:   genID,
		ConversationID: req.ConversationID,
		TempID:         req.TempID,
		MessageID:      aiMsg.ID,
	})
	status = model.StatusCompleted
}

// generate runs the provider call with the retry budget. Transient failures
// (timeouts, 5xx, transport errors) are retried with a short backoff unless
// content has already reached the client or a stop arrived in the meantime.
func (s *GenerationService) generate(ctx context.Context, genID string, req *GenerationRequest, llmReq *llm.Request, emit event.EmitFunc) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		// Checkpoint: before every provider call.
		if s.stops.IsStopRequested(ctx, genID) {
			return "", app_errors.ErrCancelled
		}

		var content string
		var emitted bool
		if req.Streaming {
			content, emitted, lastErr = s.streamOnce(ctx, genID, req, llmReq, emit)
		} else {
			content, lastErr = s.completeOnce(ctx, genID, req, llmReq, emit)
		}
		if lastErr == nil || errors.Is(lastErr, app_errors.ErrCancelled) {
			return content, lastErr
		}
		if emitted || attempt >= s.cfg.MaxRetries || !retryable(lastErr) {
			return "", lastErr
		}

		slog.Warn("Retrying provider call", "generation_id", genID, "attempt", attempt+1, "error", lastErr)
		select {
		case <-time.After(s.cfg.RetryBackoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// completeOnce performs one buffered provider call, heartbeating the stop
// marker while it waits.
func (s *GenerationService) completeOnce(ctx context.Context, genID string, req *GenerationRequest, llmReq *llm.Request, emit event.EmitFunc) (string, error) {
	stopHeartbeat := s.startHeartbeat(ctx, genID)
	content, err := s.provider.Complete(ctx, llmReq)
	stopHeartbeat()
	if err != nil {
		return "", err
	}

	// Checkpoint: on response arrival, before the content is accepted.
	if s.stops.IsStopRequested(ctx, genID) {
		return "", app_errors.ErrCancelled
	}

	emit(event.Event{
		Type:           event.TypeFullMessage,
		GenerationID:   genID,
		ConversationID: req.ConversationID,
		TempID:         req.TempID,
		Content:        content,
	})
	return content, nil
}

// streamOnce performs one streaming provider call. It reports whether any
// delta reached the client, which disables retries for this generation.
func (s *GenerationService) streamOnce(ctx context.Context, genID string, req *GenerationRequest, llmReq *llm.Request, emit event.EmitFunc) (string, bool, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopHeartbeat := s.startHeartbeat(callCtx, genID)
	defer stopHeartbeat()

	ch := make(chan llm.Chunk, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- s.provider.Stream(callCtx, llmReq, ch) }()

	var full strings.Builder
	emitted := false
	timer := time.NewTimer(s.cfg.InterChunkTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				if err := <-errCh; err != nil {
					return "", emitted, err
				}
				return full.String(), emitted, nil
			}
			// Checkpoint: before each chunk is forwarded.
			if s.stops.IsStopRequested(ctx, genID) {
				cancel()
				drain(ch)
				<-errCh
				return "", emitted, app_errors.ErrCancelled
			}
			full.WriteString(chunk.Content)
			emit(event.Event{
				Type:           event.TypeStreamUpdate,
				GenerationID:   genID,
				ConversationID: req.ConversationID,
				TempID:         req.TempID,
				Content:        chunk.Content,
			})
			emitted = true
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(s.cfg.InterChunkTimeout)
		case <-timer.C:
			cancel()
			drain(ch)
			<-errCh
			return "", emitted, fmt.Errorf("%w: no chunk received for %s", app_errors.ErrProviderTimeout, s.cfg.InterChunkTimeout)
		}
	}
}

// startHeartbeat renews the stop marker's TTL at the configured interval
// until the returned stop function is called.
func (s *GenerationService) startHeartbeat(ctx context.Context, genID string) (stop func()) {
	hbCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(s.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := s.stops.Heartbeat(hbCtx, genID); err != nil {
					slog.Warn("Stop marker heartbeat failed", "generation_id", genID, "error", err)
				}
			}
		}
	}()
	return cancel
}

func (s *GenerationService) findPivot(history []model.Message, messageID string) (*model.Message, error) {
	for i := range history {
		if history[i].ID == messageID {
			if !history[i].IsUser() {
				return nil, fmt.Errorf("%w: can only regenerate from a user message", app_errors.ErrValidation)
			}
			return &history[i], nil
		}
	}
	return nil, fmt.Errorf("%w: message %s not in conversation", app_errors.ErrNotFound, messageID)
}

// retryable reports whether a provider error is worth another attempt:
// timeouts, 5xx responses and transport failures. Client errors (4xx) and
// malformed bodies are not.
func retryable(err error) bool {
	if errors.Is(err, app_errors.ErrProviderTimeout) {
		return true
	}
	var statusErr *llm.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return errors.Is(err, app_errors.ErrProviderHTTP)
}

func drain(ch <-chan llm.Chunk) {
	for range ch {
	}
}
