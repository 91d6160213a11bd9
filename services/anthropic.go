package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	appconfig "stock-research/config"
	"stock-research/models"
)

const (
	anthropicBaseURL    = "https://api.anthropic.com"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicService calls the Anthropic Messages API directly over HTTP
type AnthropicService struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

// anthropicError is the error envelope returned by the Messages API
type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicService creates a new AnthropicService instance
func NewAnthropicService(cfg *appconfig.Config) (*AnthropicService, error) {
	if cfg.LLM.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required", models.ErrConfigurationMissing)
	}

	baseURL := cfg.LLM.Anthropic.BaseURL
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}

	return &AnthropicService{
		apiKey:     cfg.LLM.Anthropic.APIKey,
		model:      cfg.LLM.Anthropic.Model,
		maxTokens:  cfg.LLM.MaxTokens,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.LLM.Timeout},
	}, nil
}

func (s *AnthropicService) Provider() string { return BreakerAnthropic }
func (s *AnthropicService) Model() string    { return s.model }

// InvokeWithPrompt sends a single user turn with a system prompt and returns the text reply
func (s *AnthropicService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return observeLLMCall(BreakerAnthropic, "messages", func() (string, error) {
		return WithCircuitBreaker(ctx, BreakerAnthropic, func() (string, error) {
			request := reportTurn(systemPrompt, userPrompt, s.maxTokens)
			request.Model = s.model
			return s.createMessage(ctx, request)
		})
	})
}

func (s *AnthropicService) createMessage(ctx context.Context, request ClaudeRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read anthropic response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("anthropic http %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("anthropic http %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var response ClaudeResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return response.reply(BreakerAnthropic, s.model)
}
