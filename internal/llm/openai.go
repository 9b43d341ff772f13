package llm

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OpenAI wraps an OpenAI-compatible API client.
type OpenAI struct {
	api         *openai.Client
	model       string
	temperature float32
	jsonMode    bool
}

// NewOpenAI creates a completer for an OpenAI-compatible endpoint.
// jsonMode requests a JSON object response format, which not every
// compatible server supports.
func NewOpenAI(baseURL, apiKey, modelName string, temperature float32, jsonMode bool) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return &OpenAI{
		api:         openai.NewClientWithConfig(config),
		model:       modelName,
		temperature: temperature,
		jsonMode:    jsonMode,
	}
}

// Model returns the model name.
func (c *OpenAI) Model() string {
	return c.model
}

// Complete sends one system and one user message and returns the reply text.
func (c *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.temperature,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping checks that the endpoint is reachable and the model is listed.
func (c *OpenAI) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available at endpoint", c.model)
}
