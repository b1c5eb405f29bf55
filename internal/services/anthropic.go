package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/chatscreen/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic answers prompts with the Anthropic Messages API. The reply is streamed and collected into a
// single text.
type Anthropic struct {
	apiKey       string
	endpoint     string
	model        string
	systemPrompt string
	maxTokens    int

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"
)

// NewAnthropic creates an Anthropic backend. An empty baseURL targets the public API.
func NewAnthropic(apiKey, baseURL, model, systemPrompt string, maxTokens int, logger *slog.Logger) Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:       apiKey,
		endpoint:     strings.TrimRight(baseURL, "/") + "/messages",
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		client:       &http.Client{},
		logger:       logger.With(slog.String("module", "anthropic")),
	}
}

// Respond sends prompt as a single-turn message and returns the concatenated text deltas of the
// streamed answer.
func (a Anthropic) Respond(ctx context.Context, prompt models.Prompt) (string, error) {
	reqBody := anthropicChatRequest{
		Model: a.model,
		Messages: []anthropicMessage{
			{
				Role:    string(models.RoleUser),
				Content: prompt.Message,
			},
		},
		System:    modeSystemPrompt(a.systemPrompt, prompt.Option),
		MaxTokens: a.maxTokens,
		Stream:    true,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var sb strings.Builder
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return "", fmt.Errorf("error reading response: %w", err)
		}
		switch ev.Type {
		case "error":
			var e anthropicError
			if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
				return "", fmt.Errorf("error unmarshaling error: %w", err)
			}
			return "", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message)
		case "message_stop":
			return sb.String(), nil
		case "content_block_delta":
			var res anthropicStreamResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				return "", fmt.Errorf("error unmarshaling response: %w", err)
			}
			sb.WriteString(res.Delta.Text)
		default:
			continue
		}
	}

	a.logger.Warn("Stream ended without message_stop", slog.Int("length", sb.Len()))

	return sb.String(), nil
}
