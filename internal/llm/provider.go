package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider issues chat-completion requests against an OpenAI-compatible HTTP
// API. One call, one completion; orchestration (stop checks, retries,
// heartbeats) lives in the service layer.
type Provider interface {
	// Complete performs a buffered completion and returns the whole text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Stream performs a streaming completion, sending decoded text deltas on
	// ch. The channel is closed when the stream ends, fails, or ctx is done.
	Stream(ctx context.Context, req *Request, ch chan<- Chunk) error
}

// Request carries everything needed for one provider call. Params is raw JSON
// merged into the request body (temperature, max_tokens, ...).
type Request struct {
	BaseURL  string
	APIKey   string
	Model    string
	Messages []Message
	Params   json.RawMessage
}

// Message is one turn in the provider wire format. Content is either a plain
// string or a []ContentPart for multi-modal turns.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of a multi-modal message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// Chunk is one decoded text delta from a streaming response.
type Chunk struct {
	Content string
}

// EndpointURL builds the chat-completions URL from a provider base URL,
// tolerating bases that already include the path.
func EndpointURL(baseURL string) string {
	const path = "/v1/chat/completions"
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, path) {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + path
}
