package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	app_errors "openchat/backend/internal/errors"
)

// This file contains shared DTOs (Data Transfer Objects) for API responses
// and helper functions for sending consistent HTTP responses.

// ErrorResponse defines the standard JSON structure for error messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse defines a generic success response, typically for operations
// like POST, PUT, DELETE that don't need to return a full resource.
type StatusResponse struct {
	Status string `json:"status"`
}

// StopResponse acknowledges a stop request. The stop is asynchronous: the
// running generation observes the marker at its next checkpoint.
type StopResponse struct {
	Status       string `json:"status"`
	GenerationID string `json:"generation_id"`
}

// UpdateTitleRequest is the DTO for the manual conversation title update
// endpoint.
type UpdateTitleRequest struct {
	Title string `json:"title" validate:"required,min=1,max=100" example:"My Custom Title"`
}

// SendMessageRequest is the DTO for starting a new generation turn.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ModelID        string `json:"model_id,omitempty"`
	Content        string `json:"content" validate:"required,min=1"`
	TempID         string `json:"temp_id,omitempty"`
	GenerationID   string `json:"generation_id,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
}

// RegenerateRequest is the DTO for regenerating the response to an earlier
// user message.
type RegenerateRequest struct {
	ModelID      string `json:"model_id,omitempty"`
	TempID       string `json:"temp_id,omitempty"`
	GenerationID string `json:"generation_id,omitempty"`
	Stream       bool   `json:"stream,omitempty"`
}

// GenerationResult is the JSON body of a non-streaming generation request.
type GenerationResult struct {
	GenerationID   string `json:"generation_id"`
	ConversationID string `json:"conversation_id"`
	UserMessageID  string `json:"user_message_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// respondWithError is the centralized error handling function for the API
// layer. It maps business-layer sentinel errors to HTTP status codes and
// formats a standard JSON error response.
func respondWithError(w http.ResponseWriter, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "The requested resource was not found."
	case errors.Is(err, app_errors.ErrValidation):
		statusCode = http.StatusBadRequest
		// Validation messages from the service layer are already
		// user-friendly.
		message = err.Error()
	case errors.Is(err, app_errors.ErrProviderTimeout):
		statusCode = http.StatusGatewayTimeout
		message = "The AI provider did not respond in time."
	case errors.Is(err, app_errors.ErrProviderHTTP), errors.Is(err, app_errors.ErrResponseExtraction):
		statusCode = http.StatusBadGateway
		message = "The AI provider returned an unusable response."
	case errors.Is(err, app_errors.ErrStoreUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "The stop-request store is unavailable."
	default:
		// Any unhandled error is considered an internal server error.
		// This prevents leaking implementation details to the client.
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal server error occurred."
	}

	slog.Warn("Responding with error", "status_code", statusCode, "client_message", message, "internal_error", err)

	respondWithJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondWithJSON is a low-level helper for marshaling a payload to JSON
// and writing it to the http.ResponseWriter with a given status code.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// sendStreamError sends a structured error message over a Server-Sent Events
// stream, so clients consuming streams can handle errors gracefully.
func sendStreamError(w http.ResponseWriter, message string) {
	slog.Warn("Sending stream error to client", "message", message)
	jsonData, err := json.Marshal(ErrorResponse{Error: message})
	if err != nil {
		slog.Error("Failed to marshal stream error payload", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: error\ndata: %s\n\n", string(jsonData)); err != nil {
		slog.Warn("Failed to write stream error, client might have disconnected", "error", err)
		return
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeStreamEvent marshals data and writes it as one SSE data frame. A write
// failure is the signal that the client has disconnected.
func writeStreamEvent(w http.ResponseWriter, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", string(jsonData)); err != nil {
		return fmt.Errorf("failed to write data to stream: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
