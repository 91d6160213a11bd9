package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	appconfig "stock-research/config"
	"stock-research/models"
	"stock-research/observability"
)

// NewLLMService builds the provider selected by LLM_PROVIDER. A provider
// without its credential yields an error wrapping ErrConfigurationMissing.
func NewLLMService(ctx context.Context, cfg *appconfig.Config) (LLMService, error) {
	if !cfg.HasLLMCredential() {
		return nil, fmt.Errorf("%w: %s provider needs %s", models.ErrConfigurationMissing, cfg.LLM.Provider, cfg.LLMCredentialName())
	}

	var (
		svc LLMService
		err error
	)
	switch cfg.LLM.Provider {
	case appconfig.LLMProviderAnthropic:
		svc, err = NewAnthropicService(cfg)
	case appconfig.LLMProviderBedrock:
		svc, err = NewBedrockService(ctx, cfg)
	case appconfig.LLMProviderOpenAI:
		svc, err = NewOpenAIService(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLM.Provider)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// NewPriceHistorySource builds the source selected by MARKET_DATA_PROVIDER
func NewPriceHistorySource(cfg *appconfig.Config) (PriceHistorySource, error) {
	switch cfg.MarketData.Provider {
	case appconfig.MarketDataYahoo:
		svc := NewYahooService(cfg.MarketData.Timeout)
		if cfg.MarketData.YahooBaseURL != "" {
			svc.baseURL = strings.TrimRight(cfg.MarketData.YahooBaseURL, "/")
		}
		return svc, nil
	case appconfig.MarketDataAlpaca:
		if !cfg.HasAlpacaCredentials() {
			return nil, fmt.Errorf("alpaca provider needs ALPACA_API_KEY and ALPACA_API_SECRET")
		}
		return NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret), nil
	case appconfig.MarketDataDemo:
		return NewDemoSource(), nil
	default:
		return nil, fmt.Errorf("unsupported market data provider %q", cfg.MarketData.Provider)
	}
}

// NewFundamentalsSource prefers Alpha Vantage, then FMP. It returns nil when neither is configured.
func NewFundamentalsSource(cfg *appconfig.Config) FundamentalsSource {
	switch {
	case cfg.HasAlphaVantageKey():
		return NewAlphaVantageService(cfg.AlphaVantage.APIKey, cfg.MarketData.Timeout)
	case cfg.HasFMPKey():
		return NewFMPService(cfg.FMP.APIKey, cfg.MarketData.Timeout)
	default:
		return nil
	}
}

// observeLLMCall records request count, latency and failure category for one LLM call
func observeLLMCall(provider, operation string, call func() (string, error)) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(provider, operation)
	timer := metrics.NewTimer()

	text, err := call()

	timer.ObserveExternalAPI(provider, operation)
	if err != nil {
		metrics.RecordExternalAPIError(provider, operation, categorizeAPIError(err))
	}
	return text, err
}

// categorizeAPIError buckets an LLM failure into a metrics label
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return "rate_limit"
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return "auth_error"
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, models.ErrUpstreamUnavailable):
		// only the breaker wraps LLM calls this way
		return "circuit_open"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "deadline"):
		return "timeout"
	case containsAny(msg, "rate limit", "429", "throttl", "overloaded", "529"):
		return "rate_limit"
	case containsAny(msg, "unauthorized", "401", "403", "access denied"):
		return "auth_error"
	case containsAny(msg, "connection", "network", "no such host"):
		return "connection_error"
	default:
		return "unknown"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
