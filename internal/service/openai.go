package service

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"shopadvisor/internal/config"
)

// GenerationClient issues one schema-constrained chat completion and returns
// the raw model output. The extractor owns parsing, validation, and retries.
type GenerationClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	IsEnabled() bool
}

// extractionSchema is the strict JSON schema the provider must conform to.
// It is a flattened rendering of the ExtractionResult tagged union: the kind
// tag selects the variant, every key is always present (nullable where the
// field is optional), and no extra keys are allowed.
var extractionSchema = json.RawMessage(`{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"kind": {"type": "string", "enum": ["constraints", "clarification"]},
		"category": {"type": ["string", "null"]},
		"attributes": {
			"type": "array",
			"items": {
				"type": "object",
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string"},
					"value": {"type": "string"}
				},
				"required": ["name", "value"]
			}
		},
		"budget_min": {"type": ["number", "null"]},
		"budget_max": {"type": ["number", "null"]},
		"require_in_stock": {"type": "boolean"},
		"free_text_hints": {"type": "array", "items": {"type": "string"}},
		"question": {"type": ["string", "null"]},
		"missing_fields": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["kind", "category", "attributes", "budget_min", "budget_max", "require_in_stock", "free_text_hints", "question", "missing_fields"]
}`)

// OpenAIClient is the generation provider backed by an OpenAI-compatible API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	temp    float32
	enabled bool
}

// NewOpenAIClient builds the client from configuration. A missing API key
// leaves the client disabled; the extractor degrades to a clarification reply.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientConfig.BaseURL = cfg.APIBase
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.ChatModel,
		temp:    cfg.Temperature,
		enabled: cfg.Enabled,
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c.enabled
}

// Complete performs the chat completion with the extraction response format.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("openai: API is not enabled (missing API key)")
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temp,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "extraction_result",
				Schema: extractionSchema,
				Strict: true,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
