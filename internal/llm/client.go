package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	app_errors "openchat/backend/internal/errors"
)

const defaultRequestTimeout = 300 * time.Second

type client struct {
	httpClient *http.Client
}

// NewClient returns a Provider speaking the OpenAI-compatible
// chat-completions protocol. timeout bounds the whole request including body
// consumption; streaming reads are additionally bounded per chunk by the
// caller.
func NewClient(timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HTTPStatusError is a non-2xx provider response. It unwraps to
// ErrProviderHTTP so callers can branch on the status code for retry
// decisions without string matching.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) Unwrap() error { return app_errors.ErrProviderHTTP }

func (c *client) Complete(ctx context.Context, req *Request) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportError(err)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/json", "":
		return ExtractContent(body)
	case "text/event-stream", "text/plain":
		// A provider that ignored stream=false. Accumulate the deltas
		// instead of failing outright.
		slog.Warn("Provider sent a stream for a buffered request, accumulating",
			"content_type", contentType)
		return accumulateStream(body)
	default:
		return "", fmt.Errorf("%w: unexpected content type %q", app_errors.ErrResponseExtraction, contentType)
	}
}

func (c *client) Stream(ctx context.Context, req *Request, ch chan<- Chunk) error {
	defer close(ch)

	resp, err := c.post(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}

		delta, ok := extractChunkDelta([]byte(data))
		if !ok {
			// Tool-call frames, role announcements and keepalives carry no
			// text; skip them silently. Truly malformed JSON is skipped too,
			// matching what lenient SSE consumers do.
			continue
		}

		select {
		case ch <- Chunk{Content: delta}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return classifyTransportError(err)
	}
	return nil
}

func (c *client) post(ctx context.Context, req *Request, stream bool) (*http.Response, error) {
	body, err := buildRequestBody(req, stream)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointURL(req.BaseURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return resp, nil
}

func buildRequestBody(req *Request, stream bool) ([]byte, error) {
	payload := map[string]any{
		"model":    req.Model,
		"messages": req.Messages,
		"stream":   stream,
	}
	if len(req.Params) > 0 {
		var params map[string]any
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, fmt.Errorf("invalid default params: %w", err)
		}
		for k, v := range params {
			payload[k] = v
		}
	}
	return json.Marshal(payload)
}

// accumulateStream concatenates the deltas of a complete event-stream body.
func accumulateStream(body []byte) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		if delta, ok := extractChunkDelta([]byte(data)); ok {
			sb.WriteString(delta)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no content in event stream", app_errors.ErrResponseExtraction)
	}
	return sb.String(), nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", app_errors.ErrProviderTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", app_errors.ErrProviderTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", app_errors.ErrProviderHTTP, err)
}
