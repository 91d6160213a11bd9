package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	appconfig "stock-research/config"
	"stock-research/models"
	"stock-research/observability"
)

// chatCompleter is the slice of the OpenAI client the report writer needs
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type sdkChatCompleter struct {
	client openai.Client
}

func (c *sdkChatCompleter) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// OpenAIService writes reports through the chat completions API. BaseURL
// points it at any OpenAI-compatible endpoint.
type OpenAIService struct {
	chat      chatCompleter
	model     string
	maxTokens int
}

// NewOpenAIService builds the client from the LLM configuration
func NewOpenAIService(cfg *appconfig.Config) (*OpenAIService, error) {
	oc := cfg.LLM.OpenAI
	if oc.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required", models.ErrConfigurationMissing)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(oc.APIKey),
		option.WithRequestTimeout(cfg.LLM.Timeout),
		// WithRetry already covers transient failures
		option.WithMaxRetries(0),
	}
	if oc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(oc.BaseURL, "/")+"/"))
	}

	return &OpenAIService{
		chat:      &sdkChatCompleter{client: openai.NewClient(opts...)},
		model:     oc.Model,
		maxTokens: cfg.LLM.MaxTokens,
	}, nil
}

func (s *OpenAIService) Provider() string { return BreakerOpenAI }
func (s *OpenAIService) Model() string    { return s.model }

// InvokeWithPrompt sends one system and one user message and returns the first choice
func (s *OpenAIService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return observeLLMCall(BreakerOpenAI, "chat", func() (string, error) {
		return WithCircuitBreaker(ctx, BreakerOpenAI, func() (string, error) {
			completion, err := s.chat.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
				Model:     shared.ChatModel(s.model),
				MaxTokens: openai.Int(int64(s.maxTokens)),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(systemPrompt),
					openai.UserMessage(userPrompt),
				},
			})
			if err != nil {
				return "", fmt.Errorf("openai chat completion: %w", err)
			}
			if len(completion.Choices) == 0 {
				return "", errors.New("openai returned no choices")
			}

			choice := completion.Choices[0]
			observability.WithProvider(BreakerOpenAI).Debug("openai completion done",
				"model", completion.Model,
				"finish_reason", choice.FinishReason,
				"prompt_tokens", completion.Usage.PromptTokens,
				"completion_tokens", completion.Usage.CompletionTokens)
			return choice.Message.Content, nil
		})
	})
}
