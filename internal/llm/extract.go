package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	app_errors "openchat/backend/internal/errors"
)

// The two response shapes seen in the wild: OpenAI-style
// choices[0].message.content / choices[0].delta.content, and Anthropic-style
// content: [{type:"text", text:...}]. Matchers are tried in order; each
// either recognizes the document or passes.

type shapeMatcher func(data []byte) (string, bool)

var bodyMatchers = []shapeMatcher{extractOpenAIBody, extractAnthropicBody}

type openAIResponse struct {
	Choices []struct {
		Delta *struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func extractOpenAIBody(data []byte) (string, bool) {
	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Choices) == 0 {
		return "", false
	}
	if msg := resp.Choices[0].Message; msg != nil && msg.Content != "" {
		return msg.Content, true
	}
	return "", false
}

func extractAnthropicBody(data []byte) (string, bool) {
	var resp anthropicResponse
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Content) == 0 {
		return "", false
	}
	var sb strings.Builder
	for _, item := range resp.Content {
		if item.Type == "text" {
			sb.WriteString(item.Text)
		}
	}
	if sb.Len() == 0 {
		return "", false
	}
	return sb.String(), true
}

// ExtractContent pulls the completion text out of a buffered JSON response
// body, trying each known shape in turn.
func ExtractContent(data []byte) (string, error) {
	for _, match := range bodyMatchers {
		if content, ok := match(data); ok {
			return content, nil
		}
	}
	return "", fmt.Errorf("%w: unrecognized response shape", app_errors.ErrResponseExtraction)
}

// extractChunkDelta pulls the text delta out of one decoded SSE chunk.
// Falls back to message.content for providers that send whole messages in
// stream framing.
func extractChunkDelta(data []byte) (string, bool) {
	var resp openAIResponse
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Choices) == 0 {
		return "", false
	}
	choice := resp.Choices[0]
	if choice.Delta != nil && choice.Delta.Content != "" {
		return choice.Delta.Content, true
	}
	if choice.Message != nil && choice.Message.Content != "" {
		return choice.Message.Content, true
	}
	return "", false
}
