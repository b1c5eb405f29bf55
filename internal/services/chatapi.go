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
)

// ChatAPI forwards prompts to a remote chat endpoint at {baseURL}/chat. The endpoint receives
// {"message", "option"} and answers with {"response"}.
type ChatAPI struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

// StatusError is returned by ChatAPI when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// DefaultChatAPIBaseURL is used when neither the configuration nor the environment names a base URL.
const DefaultChatAPIBaseURL = "http://localhost:5000"

// NewChatAPI creates a ChatAPI for baseURL. A nil client means http.DefaultClient, so no timeout is
// applied beyond the transport's own.
func NewChatAPI(baseURL string, client *http.Client, logger *slog.Logger) ChatAPI {
	if baseURL == "" {
		baseURL = DefaultChatAPIBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return ChatAPI{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat",
		client:   client,
		logger:   logger.With(slog.String("module", "chatapi")),
	}
}

// Endpoint returns the URL prompts are posted to.
func (c ChatAPI) Endpoint() string {
	return c.endpoint
}

// Respond posts prompt to the chat endpoint and returns the response field of its answer. A 2xx
// answer without a response field yields an empty string and no error.
func (c ChatAPI) Respond(ctx context.Context, prompt models.Prompt) (string, error) {
	jsonBody, err := json.Marshal(prompt)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	c.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var reply models.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	return reply.Response, nil
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}
