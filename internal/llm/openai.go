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
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// Classify assigns the text to one identity dimension. Unrecognized model
// output maps to the general dimension.
func (c *OpenAIClient) Classify(ctx context.Context, text string) (domain.Dimension, error) {
	raw, err := c.complete(ctx, []chatMessage{
		{Role: "user", Content: fmt.Sprintf(classifyPrompt, text)},
	}, 0)
	if err != nil {
		return "", err
	}
	return parseDimension(raw), nil
}

// ClassifyBatch classifies several texts in a single completion. This makes
// OpenAIClient satisfy domain.BatchClassifier.
func (c *OpenAIClient) ClassifyBatch(ctx context.Context, texts []string) ([]domain.Dimension, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t)
	}

	raw, err := c.complete(ctx, []chatMessage{
		{Role: "user", Content: fmt.Sprintf(classifyBatchPrompt, sb.String())},
	}, 0)
	if err != nil {
		return nil, err
	}

	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.Trim(raw, "` \n")

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("unmarshal batch classification: %w", err)
	}
	if len(names) != len(texts) {
		return nil, fmt.Errorf("batch classification returned %d dimensions for %d texts", len(names), len(texts))
	}

	dims := make([]domain.Dimension, len(names))
	for i, name := range names {
		dims[i] = parseDimension(name)
	}
	return dims, nil
}

// Generate produces free text from a prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.7)
}

// Contradicts asks the model whether two statements conflict.
func (c *OpenAIClient) Contradicts(ctx context.Context, a, b string) (bool, error) {
	raw, err := c.complete(ctx, []chatMessage{
		{Role: "user", Content: fmt.Sprintf(contradictionPrompt, a, b)},
	}, 0)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(raw), "true"), nil
}

func parseDimension(raw string) domain.Dimension {
	name := strings.ToLower(strings.TrimSpace(raw))
	if domain.ValidDimension(name) {
		return domain.Dimension(name)
	}
	return domain.DimensionGeneral
}
