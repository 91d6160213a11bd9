package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stock-research/config"
	"stock-research/models"
)

func TestNewLLMService_MissingCredential(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
	}{
		{config.LLMProviderAnthropic, "ANTHROPIC_API_KEY"},
		{config.LLMProviderBedrock, "BEDROCK_MODEL_ID"},
		{config.LLMProviderOpenAI, "OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.NewTestConfig()
			cfg.LLM.Provider = tt.provider

			svc, err := NewLLMService(context.Background(), cfg)
			if svc != nil {
				t.Error("expected nil service")
			}
			if !errors.Is(err, models.ErrConfigurationMissing) {
				t.Fatalf("expected ErrConfigurationMissing, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantName) {
				t.Errorf("error should name %s: %v", tt.wantName, err)
			}
		})
	}
}

func TestNewLLMService_SelectsProvider(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.Anthropic.APIKey = "key"
	cfg.LLM.OpenAI.APIKey = "sk"

	svc, err := NewLLMService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Provider() != BreakerAnthropic {
		t.Errorf("Provider() = %s, want anthropic", svc.Provider())
	}

	cfg.LLM.Provider = config.LLMProviderOpenAI
	svc, err = NewLLMService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Provider() != BreakerOpenAI {
		t.Errorf("Provider() = %s, want openai", svc.Provider())
	}
}

func TestNewLLMService_UnknownProvider(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.LLM.Provider = "cohere"

	if _, err := NewLLMService(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewPriceHistorySource(t *testing.T) {
	cfg := config.NewTestConfig()

	tests := []struct {
		provider string
		setup    func(*config.Config)
		wantName string
		wantErr  bool
	}{
		{config.MarketDataYahoo, func(*config.Config) {}, "yahoo", false},
		{config.MarketDataDemo, func(*config.Config) {}, "demo", false},
		{config.MarketDataAlpaca, func(*config.Config) {}, "", true},
		{config.MarketDataAlpaca, func(c *config.Config) {
			c.Alpaca.APIKey = "key"
			c.Alpaca.APISecret = "secret"
		}, "alpaca", false},
		{"bloomberg", func(*config.Config) {}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.wantName, func(t *testing.T) {
			c := *cfg
			c.MarketData.Provider = tt.provider
			tt.setup(&c)

			src, err := NewPriceHistorySource(&c)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Name() != tt.wantName {
				t.Errorf("Name() = %s, want %s", src.Name(), tt.wantName)
			}
		})
	}
}

func TestNewPriceHistorySource_YahooBaseURL(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.MarketData.Provider = config.MarketDataYahoo
	cfg.MarketData.YahooBaseURL = "http://127.0.0.1:9999/"

	src, err := NewPriceHistorySource(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := src.(*YahooService).baseURL; got != "http://127.0.0.1:9999" {
		t.Errorf("baseURL = %q", got)
	}
}

func TestNewFundamentalsSource(t *testing.T) {
	cfg := config.NewTestConfig()
	if src := NewFundamentalsSource(cfg); src != nil {
		t.Error("expected nil source without an API key")
	}

	cfg.FMP.APIKey = "fmp"
	if _, ok := NewFundamentalsSource(cfg).(*FMPService); !ok {
		t.Error("expected FMP source with only an FMP key")
	}

	cfg.AlphaVantage.APIKey = "demo"
	if _, ok := NewFundamentalsSource(cfg).(*AlphaVantageService); !ok {
		t.Error("expected Alpha Vantage to take precedence")
	}
}
