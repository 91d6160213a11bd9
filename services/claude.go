package services

import (
	"errors"
	"strings"

	"stock-research/observability"
)

// ClaudeRequest is the Messages API body shared by the direct Anthropic
// client and Bedrock. Bedrock takes the model from the URL and needs
// anthropic_version in the body; the direct API is the reverse.
type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version,omitempty"`
	Model            string          `json:"model,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []ClaudeMessage `json:"messages"`
}

// ClaudeMessage is one conversation turn
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeResponse is the Messages API reply
type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// reportTurn builds the single-turn request used for every research report
func reportTurn(systemPrompt, userPrompt string, maxTokens int) ClaudeRequest {
	return ClaudeRequest{
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages:  []ClaudeMessage{{Role: "user", Content: userPrompt}},
	}
}

// Text joins the text blocks of the response
func (r *ClaudeResponse) Text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" || block.Type == "" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// reply returns the text of r, logging token usage under provider.
// A reply cut off by max_tokens is still returned.
func (r *ClaudeResponse) reply(provider, model string) (string, error) {
	if len(r.Content) == 0 {
		return "", errors.New("empty response from model")
	}

	log := observability.WithProvider(provider)
	if r.StopReason == "max_tokens" {
		log.Warn("report truncated at max tokens", "model", model, "output_tokens", r.Usage.OutputTokens)
	}
	log.Debug("claude message complete",
		"model", model,
		"stop_reason", r.StopReason,
		"input_tokens", r.Usage.InputTokens,
		"output_tokens", r.Usage.OutputTokens)

	return r.Text(), nil
}
