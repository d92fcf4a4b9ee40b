package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
)

// AnthropicClient classifies one text per request; it deliberately does not
// implement domain.BatchClassifier, exercising the sequential fallback.
type AnthropicClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *AnthropicClient) complete(ctx context.Context, messages []anthropicMessage, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:     anthropicModel,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read messages response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messages API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal messages response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("messages API error: %s", result.Error.Message)
	}

	for _, block := range result.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}

	return "", fmt.Errorf("messages API returned no text content")
}

func (c *AnthropicClient) Classify(ctx context.Context, text string) (domain.Dimension, error) {
	raw, err := c.complete(ctx, []anthropicMessage{
		{Role: "user", Content: fmt.Sprintf(classifyPrompt, text)},
	}, 16)
	if err != nil {
		return "", err
	}
	return parseDimension(raw), nil
}

func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, []anthropicMessage{{Role: "user", Content: prompt}}, 256)
}

func (c *AnthropicClient) Contradicts(ctx context.Context, a, b string) (bool, error) {
	raw, err := c.complete(ctx, []anthropicMessage{
		{Role: "user", Content: fmt.Sprintf(contradictionPrompt, a, b)},
	}, 8)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(raw), "true"), nil
}
