package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "stock-research/config"
	"stock-research/models"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// bedrockInvoker is the part of the Bedrock runtime client reports use
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService writes reports with a Claude model hosted on AWS Bedrock.
// Credentials come from the default AWS chain.
type BedrockService struct {
	client    bedrockInvoker
	model     string
	maxTokens int
}

// NewBedrockService loads the AWS config for the configured region
func NewBedrockService(ctx context.Context, cfg *appconfig.Config) (*BedrockService, error) {
	bc := cfg.LLM.Bedrock
	if bc.Region == "" || bc.ModelID == "" {
		return nil, fmt.Errorf("%w: bedrock needs AWS_REGION and BEDROCK_MODEL_ID", models.ErrConfigurationMissing)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(bc.Region),
		// the report path has its own retry and breaker
		awsconfig.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &BedrockService{
		client:    bedrockruntime.NewFromConfig(awsCfg),
		model:     bc.ModelID,
		maxTokens: cfg.LLM.MaxTokens,
	}, nil
}

func (s *BedrockService) Provider() string { return BreakerBedrock }
func (s *BedrockService) Model() string    { return s.model }

// InvokeWithPrompt runs one report turn through InvokeModel
func (s *BedrockService) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return observeLLMCall(BreakerBedrock, "invoke", func() (string, error) {
		return WithCircuitBreaker(ctx, BreakerBedrock, func() (string, error) {
			request := reportTurn(systemPrompt, userPrompt, s.maxTokens)
			request.AnthropicVersion = bedrockAnthropicVersion

			body, err := json.Marshal(request)
			if err != nil {
				return "", fmt.Errorf("failed to marshal request: %w", err)
			}

			output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
				ModelId:     aws.String(s.model),
				Body:        body,
				ContentType: aws.String("application/json"),
				Accept:      aws.String("application/json"),
			})
			if err != nil {
				return "", fmt.Errorf("bedrock invoke %s: %w", s.model, err)
			}

			var response ClaudeResponse
			if err := json.Unmarshal(output.Body, &response); err != nil {
				return "", fmt.Errorf("failed to unmarshal bedrock response: %w", err)
			}
			return response.reply(BreakerBedrock, s.model)
		})
	})
}
