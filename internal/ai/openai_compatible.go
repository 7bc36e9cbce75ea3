package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096

	defaultTimeout = 60 * time.Second
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds the settings of an OpenAI-compatible endpoint.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// CompletionOptions tunes one chat completion. A nil Temperature or a
// non-positive MaxTokens takes the default; Temp(0) requests greedy sampling.
type CompletionOptions struct {
	Temperature *float64
	MaxTokens   int
}

// Temp returns a pointer suitable for CompletionOptions.Temperature.
func Temp(v float64) *float64 {
	return &v
}

func (o CompletionOptions) withDefaults() CompletionOptions {
	if o.Temperature == nil {
		o.Temperature = Temp(DefaultTemperature)
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}

type OpenAICompatibleClient struct {
	httpClient *http.Client
	cfg        Config
}

func NewOpenAICompatibleClient(cfg Config) *OpenAICompatibleClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

// ModelName returns the chat model the client talks to.
func (c *OpenAICompatibleClient) ModelName() string {
	return c.cfg.Model
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, messages []ChatMessage, opts CompletionOptions) (string, error) {
	opts = opts.withDefaults()
	reqBody := map[string]interface{}{
		"model":       c.cfg.Model,
		"messages":    messages,
		"temperature": *opts.Temperature,
		"max_tokens":  opts.MaxTokens,
		"stream":      false,
	}

	raw, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parse llm json failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAICompatibleClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("response status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
