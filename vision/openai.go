package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an expert object identifier and historian. " +
	"First identify the main object in the image, then provide its name and a detailed " +
	"description including historical context if relevant. Return your response as JSON " +
	"with 'object_name', 'description', and 'confidence' fields."

const userPrompt = "Identify the main object in this image. Provide the object name and a " +
	"detailed description that includes historical or contextual information if relevant. " +
	"Format your response as JSON."

// OpenAIClient analyzes images via the OpenAI chat completions API. Every
// transport or parsing failure is treated as transient and retried per the
// configured policy; exhaustion surfaces as a *TerminalError.
type OpenAIClient struct {
	api    *openai.Client
	model  string
	policy RetryPolicy
	sleep  SleepFunc // nil means real sleeping
}

// NewOpenAIClient creates a vision client. baseURL may be empty to use the
// public API endpoint; tests point it at a local stub server.
func NewOpenAIClient(apiKey, model, baseURL string, policy RetryPolicy) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:    openai.NewClientWithConfig(cfg),
		model:  model,
		policy: policy,
	}
}

// Analyze sends the base64-encoded image to the model and returns the parsed
// result. All three result fields are guaranteed present on success.
func (c *OpenAIClient) Analyze(ctx context.Context, imageData []byte, mimeType string) (*Result, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))

	var result *Result
	err := c.policy.Do(ctx, c.sleep, func() error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: userPrompt,
						},
						{
							Type: openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{
								URL: dataURL,
							},
						},
					},
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			MaxTokens: 1000,
		})
		if err != nil {
			return fmt.Errorf("chat completion request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("chat completion returned no choices")
		}

		parsed, err := parseResult(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// parseResult decodes the model's JSON payload, filling any missing field
// with its default and clamping confidence into [0, 1].
func parseResult(content string) (*Result, error) {
	var raw struct {
		ObjectName  *string  `json:"object_name"`
		Description *string  `json:"description"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}

	result := &Result{
		ObjectName:  DefaultObjectName,
		Description: DefaultDescription,
		Confidence:  DefaultConfidence,
	}
	if raw.ObjectName != nil && *raw.ObjectName != "" {
		result.ObjectName = *raw.ObjectName
	}
	if raw.Description != nil && *raw.Description != "" {
		result.Description = *raw.Description
	}
	if raw.Confidence != nil {
		result.Confidence = clampConfidence(*raw.Confidence)
	}
	return result, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
