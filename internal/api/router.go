package api

import (
	"net/http"
	"time"

	// This blank import is required by swaggo to find the API definitions.
	_ "openchat/backend/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"openchat/backend/internal/ws"
)

// NewRouter creates and configures a new chi router with all the
// application's routes.
func NewRouter(chatHandler *ChatHandler, wsHandler *ws.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/swagger/*", httpSwagger.WrapHandler)

	// Liveness probe for container orchestration.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// The WebSocket transport manages its own deadlines; the HTTP timeout
	// middleware must not apply to it.
	r.Handle("/ws", wsHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Standard request/response endpoints get a server-side timeout.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/settings", chatHandler.GetSettings)
			r.Post("/settings", chatHandler.UpdateSettings)

			r.Get("/conversations", chatHandler.GetConversations)
			r.Get("/conversations/{conversationID}", chatHandler.GetConversation)
			r.Put("/conversations/{conversationID}/title", chatHandler.UpdateConversationTitle)
			r.Delete("/conversations/{conversationID}", chatHandler.DeleteConversation)

			r.Get("/models", chatHandler.GetModels)

			r.Post("/generations/{generationID}/stop", chatHandler.StopGeneration)
			r.Post("/conversations/{conversationID}/stop", chatHandler.StopConversation)
		})

		// Generation endpoints stream or block for the lifetime of the
		// provider call and carry no timeout middleware.
		r.Group(func(r chi.Router) {
			r.Post("/conversations/messages", chatHandler.SendMessage)
			r.Post("/conversations/{conversationID}/messages/{messageID}/regenerate", chatHandler.RegenerateMessage)
		})
	})

	return r
}
