package service

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/llm"
	"openchat/backend/internal/model"
)

// Image context strategies.
const (
	ImageStrategyAll        = "all"
	ImageStrategyLatestOnly = "latest_only"
	ImageStrategyNone       = "none"
)

// fileMarkerRe matches the upload marker appended to user message content.
var fileMarkerRe = regexp.MustCompile(`\[file:(.*?)\]`)

// FileMarker renders the marker stored in message content for an uploaded
// file.
func FileMarker(path string) string { return fmt.Sprintf("[file:%s]", path) }

// AssemblerConfig tunes the context window construction.
type AssemblerConfig struct {
	// ImageStrategy is one of "all", "latest_only" or "none". Only the most
	// recent MaxImages image-bearing user turns carry the full base64 image;
	// older ones are rewritten to a textual placeholder to bound token cost.
	ImageStrategy string
	MaxImages     int
	UploadDir     string
}

// ContextAssembler builds the ordered role/content turns sent to the
// provider: optional system prompt first, then the trailing window of up to
// the model's max history messages, oldest truncated.
type ContextAssembler struct {
	cfg AssemblerConfig
}

func NewContextAssembler(cfg AssemblerConfig) *ContextAssembler {
	if cfg.ImageStrategy == "" {
		cfg.ImageStrategy = ImageStrategyLatestOnly
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 1
	}
	return &ContextAssembler{cfg: cfg}
}

// Build assembles the provider message list. When pivotMessageID is set
// (regenerate), history is cut at that user message, inclusive; the window
// and image policy then apply to the cut history.
func (a *ContextAssembler) Build(conv *model.Conversation, history []model.Message, pivotMessageID string, maxHistory int) ([]llm.Message, error) {
	if pivotMessageID != "" {
		cut := -1
		for i, msg := range history {
			if msg.ID == pivotMessageID {
				cut = i
				break
			}
		}
		if cut < 0 {
			return nil, fmt.Errorf("%w: message %s not in conversation history", app_errors.ErrNotFound, pivotMessageID)
		}
		history = history[:cut+1]
	}

	if maxHistory > 0 && len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}

	// Decide which image-bearing user turns keep their payload.
	withImages := make(map[string]bool)
	if a.cfg.ImageStrategy != ImageStrategyNone {
		var imageIDs []string
		for _, msg := range history {
			if msg.IsUser() && fileMarkerRe.MatchString(msg.Content) {
				imageIDs = append(imageIDs, msg.ID)
			}
		}
		if a.cfg.ImageStrategy == ImageStrategyLatestOnly && len(imageIDs) > a.cfg.MaxImages {
			imageIDs = imageIDs[len(imageIDs)-a.cfg.MaxImages:]
		}
		for _, id := range imageIDs {
			withImages[id] = true
		}
	}

	var messages []llm.Message
	if conv.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: model.RoleSystem, Content: conv.SystemPrompt})
	}

	for _, msg := range history {
		match := fileMarkerRe.FindStringSubmatch(msg.Content)
		if match == nil || !msg.IsUser() {
			messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
			continue
		}

		filePath := match[1]
		text := strings.TrimSpace(strings.Replace(msg.Content, match[0], "", 1))

		if withImages[msg.ID] {
			messages = append(messages, a.imageMessage(msg.Role, text, filePath))
		} else {
			placeholder := fmt.Sprintf("[user uploaded image: %s]", filepath.Base(filePath))
			if text != "" {
				placeholder = text + "\n" + placeholder
			}
			messages = append(messages, llm.Message{Role: msg.Role, Content: placeholder})
		}
	}
	return messages, nil
}

// imageMessage embeds the uploaded file as a base64 data URI content part.
// An unreadable file degrades to text so one lost upload does not sink the
// whole generation.
func (a *ContextAssembler) imageMessage(role, text, filePath string) llm.Message {
	data, err := os.ReadFile(filepath.Join(a.cfg.UploadDir, filePath))
	if err != nil {
		slog.Error("Could not read uploaded file for context", "path", filePath, "error", err)
		fallback := fmt.Sprintf("[image unavailable: %s]", filepath.Base(filePath))
		if text != "" {
			fallback = text + "\n" + fallback
		}
		return llm.Message{Role: role, Content: fallback}
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filePath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	return llm.Message{Role: role, Content: []llm.ContentPart{
		{Type: "text", Text: text},
		{Type: "image_url", ImageURL: &llm.ImageURL{URL: dataURI}},
	}}
}
