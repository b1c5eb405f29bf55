package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MegaGrindStone/chatscreen/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama answers prompts with a model served by an Ollama instance. The prompt option is passed to the
// model as part of the system prompt.
type Ollama struct {
	model        string
	systemPrompt string

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates an Ollama backend for host and model. It returns an error if host is not a valid
// URL.
func NewOllama(host, model, systemPrompt string, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		model:        model,
		systemPrompt: systemPrompt,
		client:       api.NewClient(u, &http.Client{}),
		logger:       logger.With(slog.String("module", "ollama")),
	}, nil
}

// Respond sends prompt as a single-turn, non-streaming chat and returns the model's answer.
func (o Ollama) Respond(ctx context.Context, prompt models.Prompt) (string, error) {
	f := false
	req := api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{
				Role:    "system",
				Content: modeSystemPrompt(o.systemPrompt, prompt.Option),
			},
			{
				Role:    "user",
				Content: prompt.Message,
			},
		},
		Stream: &f,
	}

	var sb strings.Builder
	if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
		sb.WriteString(res.Message.Content)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	o.logger.Debug("Response", slog.String("model", o.model), slog.Int("length", sb.Len()))

	return sb.String(), nil
}

// modeSystemPrompt appends the selected mode to the configured system prompt so chat-completion
// backends see the same option the /chat endpoint receives.
func modeSystemPrompt(systemPrompt, option string) string {
	if option == "" {
		return systemPrompt
	}
	if systemPrompt == "" {
		return fmt.Sprintf("Conversation mode: %s.", option)
	}
	return fmt.Sprintf("%s\n\nConversation mode: %s.", systemPrompt, option)
}
