package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MegaGrindStone/chatscreen/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI answers prompts with an OpenAI-compatible chat completion API.
type OpenAI struct {
	model        string
	systemPrompt string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// LLMParameters are the optional sampling parameters forwarded with every completion request. Nil
// fields are left to the API's defaults.
type LLMParameters struct {
	Temperature      *float32 `yaml:"temperature"`
	TopP             *float32 `yaml:"topP"`
	Stop             []string `yaml:"stop"`
	PresencePenalty  *float32 `yaml:"presencePenalty"`
	FrequencyPenalty *float32 `yaml:"frequencyPenalty"`
	Seed             *int     `yaml:"seed"`
	MaxTokens        *int     `yaml:"maxTokens"`
}

// NewOpenAI creates an OpenAI backend. An empty baseURL targets the public OpenAI API.
func NewOpenAI(apiKey, baseURL, model, systemPrompt string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       goopenai.NewClientWithConfig(cfg),
		logger:       logger.With(slog.String("module", "openai")),
	}
}

// Respond sends prompt as a single-turn chat completion and returns the first choice.
func (o OpenAI) Respond(ctx context.Context, prompt models.Prompt) (string, error) {
	msgs := []goopenai.ChatCompletionMessage{
		{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: modeSystemPrompt(o.systemPrompt, prompt.Option),
		},
		{
			Role:    goopenai.ChatMessageRoleUser,
			Content: prompt.Message,
		},
	}

	req := o.chatRequest(msgs)

	reqJSON, err := json.Marshal(req)
	if err == nil {
		o.logger.Debug("Request", slog.String("req", string(reqJSON)))
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	return resp.Choices[0].Message.Content, nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.PresencePenalty != nil {
		req.PresencePenalty = *o.params.PresencePenalty
	}
	if o.params.FrequencyPenalty != nil {
		req.FrequencyPenalty = *o.params.FrequencyPenalty
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}

	return req
}
