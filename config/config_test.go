package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATA_DIR",
	"CACHE_TTL_HOURS",
	"MARKET_DATA_PROVIDER",
	"MARKET_DATA_LOOKBACK_DAYS",
	"MARKET_DATA_TIMEOUT_SECONDS",
	"YAHOO_BASE_URL",
	"ALPHA_VANTAGE_API_KEY",
	"FMP_API_KEY",
	"ALPACA_API_KEY",
	"ALPACA_API_SECRET",
	"LLM_PROVIDER",
	"LLM_MAX_TOKENS",
	"LLM_TIMEOUT_SECONDS",
	"REPORT_CONCURRENCY_LIMIT",
	"ANTHROPIC_API_KEY",
	"ANTHROPIC_MODEL",
	"ANTHROPIC_BASE_URL",
	"AWS_REGION",
	"BEDROCK_MODEL_ID",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"OPENAI_BASE_URL",
	"PORT",
	"CORS_ALLOWED_ORIGINS",
	"HTTP_READ_TIMEOUT_SECONDS",
	"HTTP_WRITE_TIMEOUT_SECONDS",
	"HTTP_SHUTDOWN_TIMEOUT_SECONDS",
	"LOG_FORMAT",
	"LOG_LEVEL",
	"SYMBOLS_FILE",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	if cfg.Cache.Dir != "data" {
		t.Errorf("expected Cache.Dir='data', got %s", cfg.Cache.Dir)
	}
	if cfg.Cache.TTL != 24*time.Hour {
		t.Errorf("expected Cache.TTL=24h, got %s", cfg.Cache.TTL)
	}
	if cfg.MarketData.Provider != MarketDataYahoo {
		t.Errorf("expected MarketData.Provider=yahoo, got %s", cfg.MarketData.Provider)
	}
	if cfg.MarketData.LookbackDays != 365 {
		t.Errorf("expected LookbackDays=365, got %d", cfg.MarketData.LookbackDays)
	}
	if cfg.LLM.Provider != LLMProviderAnthropic {
		t.Errorf("expected LLM.Provider=anthropic, got %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Anthropic.Model != DefaultAnthropicModel {
		t.Errorf("expected Anthropic.Model=%s, got %s", DefaultAnthropicModel, cfg.LLM.Anthropic.Model)
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("expected MaxTokens=1024, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.ConcurrencyLimit != 3 {
		t.Errorf("expected ConcurrencyLimit=3, got %d", cfg.LLM.ConcurrencyLimit)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.Symbols.Len() != 4 {
		t.Errorf("expected 4 default symbols, got %d", cfg.Symbols.Len())
	}
	if !cfg.Symbols.Contains("RELIANCE.NS") {
		t.Error("expected default symbols to include RELIANCE.NS")
	}
	if cfg.HasLLMCredential() {
		t.Error("expected no LLM credential by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("DATA_DIR", "/tmp/series")
	os.Setenv("CACHE_TTL_HOURS", "6")
	os.Setenv("MARKET_DATA_PROVIDER", "demo")
	os.Setenv("MARKET_DATA_LOOKBACK_DAYS", "180")
	os.Setenv("MARKET_DATA_TIMEOUT_SECONDS", "5")
	os.Setenv("YAHOO_BASE_URL", "http://localhost:9999")
	os.Setenv("LLM_PROVIDER", "openai")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	os.Setenv("OPENAI_BASE_URL", "http://localhost:11434/v1")
	os.Setenv("PORT", "9000")
	os.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Cache.Dir != "/tmp/series" {
		t.Errorf("expected Cache.Dir='/tmp/series', got %s", cfg.Cache.Dir)
	}
	if cfg.Cache.TTL != 6*time.Hour {
		t.Errorf("expected Cache.TTL=6h, got %s", cfg.Cache.TTL)
	}
	if cfg.MarketData.Provider != MarketDataDemo {
		t.Errorf("expected provider=demo, got %s", cfg.MarketData.Provider)
	}
	if cfg.MarketData.LookbackDays != 180 {
		t.Errorf("expected LookbackDays=180, got %d", cfg.MarketData.LookbackDays)
	}
	if cfg.MarketData.Timeout != 5*time.Second {
		t.Errorf("expected Timeout=5s, got %s", cfg.MarketData.Timeout)
	}
	if cfg.MarketData.YahooBaseURL != "http://localhost:9999" {
		t.Errorf("expected YahooBaseURL override, got %q", cfg.MarketData.YahooBaseURL)
	}
	if cfg.LLM.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected OpenAI.Model='gpt-4o-mini', got %s", cfg.LLM.OpenAI.Model)
	}
	if cfg.LLM.OpenAI.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("expected OpenAI.BaseURL override, got %q", cfg.LLM.OpenAI.BaseURL)
	}
	if !cfg.HasLLMCredential() {
		t.Error("expected OpenAI credential to be detected")
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected Log.Format='json', got %s", cfg.Log.Format)
	}
}

func TestLoad_SymbolsFile(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	path := filepath.Join(t.TempDir(), "symbols.yaml")
	content := "stocks:\n  - symbol: AAPL\n    name: Apple Inc.\n  - symbol: MSFT\n    name: Microsoft\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Setenv("SYMBOLS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	list := cfg.Symbols.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(list))
	}
	if list[0].Symbol != "AAPL" || list[0].Name != "Apple Inc." {
		t.Errorf("unexpected first symbol: %+v", list[0])
	}
	if cfg.Symbols.Contains("TCS.NS") {
		t.Error("symbols file should replace the default list")
	}
}

func TestLoadSymbols_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "stocks: [symbol: {"},
		{"empty list", "stocks: []\n"},
		{"duplicate symbol", "stocks:\n  - symbol: AAPL\n  - symbol: AAPL\n"},
		{"blank symbol", "stocks:\n  - symbol: \"  \"\n    name: Blank\n"},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "symbols"+string(rune('a'+i))+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadSymbols(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadSymbols(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown market data provider", func(c *Config) { c.MarketData.Provider = "bloomberg" }, true},
		{"alpaca without credentials", func(c *Config) { c.MarketData.Provider = MarketDataAlpaca }, true},
		{"alpaca with credentials", func(c *Config) {
			c.MarketData.Provider = MarketDataAlpaca
			c.Alpaca.APIKey = "key"
			c.Alpaca.APISecret = "secret"
		}, false},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "cohere" }, true},
		{"empty data dir", func(c *Config) { c.Cache.Dir = "" }, true},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"zero lookback", func(c *Config) { c.MarketData.LookbackDays = 0 }, true},
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }, true},
		{"no symbols", func(c *Config) { c.Symbols = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestHasLLMCredential(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		setup    func(*Config)
		want     bool
		wantName string
	}{
		{"anthropic missing", LLMProviderAnthropic, func(c *Config) {}, false, "ANTHROPIC_API_KEY"},
		{"anthropic present", LLMProviderAnthropic, func(c *Config) { c.LLM.Anthropic.APIKey = "key" }, true, "ANTHROPIC_API_KEY"},
		{"bedrock region only", LLMProviderBedrock, func(c *Config) { c.LLM.Bedrock.Region = "us-east-1" }, false, "AWS_REGION and BEDROCK_MODEL_ID"},
		{"bedrock complete", LLMProviderBedrock, func(c *Config) {
			c.LLM.Bedrock.Region = "us-east-1"
			c.LLM.Bedrock.ModelID = "anthropic.claude-3-sonnet"
		}, true, "AWS_REGION and BEDROCK_MODEL_ID"},
		{"openai present", LLMProviderOpenAI, func(c *Config) { c.LLM.OpenAI.APIKey = "sk" }, true, "OPENAI_API_KEY"},
		{"anthropic key does not satisfy openai", LLMProviderOpenAI, func(c *Config) { c.LLM.Anthropic.APIKey = "key" }, false, "OPENAI_API_KEY"},
		{"unknown provider", "cohere", func(c *Config) {}, false, "LLM_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			cfg.LLM.Provider = tt.provider
			tt.setup(cfg)
			if got := cfg.HasLLMCredential(); got != tt.want {
				t.Errorf("HasLLMCredential() = %v, want %v", got, tt.want)
			}
			if got := cfg.LLMCredentialName(); got != tt.wantName {
				t.Errorf("LLMCredentialName() = %q, want %q", got, tt.wantName)
			}
		})
	}
}

func TestHasAlpacaCredentials(t *testing.T) {
	cfg := &Config{
		Alpaca: AlpacaConfig{APIKey: "", APISecret: ""},
	}
	if cfg.HasAlpacaCredentials() {
		t.Error("expected HasAlpacaCredentials() to return false for empty config")
	}

	cfg.Alpaca.APIKey = "key"
	if cfg.HasAlpacaCredentials() {
		t.Error("expected HasAlpacaCredentials() to return false without secret")
	}

	cfg.Alpaca.APISecret = "secret"
	if !cfg.HasAlpacaCredentials() {
		t.Error("expected HasAlpacaCredentials() to return true for complete config")
	}
}

func TestHasAlphaVantageKey(t *testing.T) {
	cfg := &Config{
		AlphaVantage: AlphaVantageConfig{APIKey: ""},
	}
	if cfg.HasAlphaVantageKey() {
		t.Error("expected HasAlphaVantageKey() to return false for empty key")
	}

	cfg.AlphaVantage.APIKey = "key"
	if !cfg.HasAlphaVantageKey() {
		t.Error("expected HasAlphaVantageKey() to return true for non-empty key")
	}
}

func TestHasFMPKey(t *testing.T) {
	cfg := NewTestConfig()
	if cfg.HasFMPKey() {
		t.Error("expected HasFMPKey() to return false for empty key")
	}

	cfg.FMP.APIKey = "key"
	if !cfg.HasFMPKey() {
		t.Error("expected HasFMPKey() to return true for non-empty key")
	}
}

func TestGetEnvString(t *testing.T) {
	key := "TEST_GET_ENV_STRING"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvString(key, "default"); got != "default" {
		t.Errorf("expected 'default', got %s", got)
	}

	// Set value returns value
	os.Setenv(key, "custom")
	if got := getEnvString(key, "default"); got != "custom" {
		t.Errorf("expected 'custom', got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	tests := []struct {
		value string
		want  int
	}{
		{"", 42},
		{"100", 100},
		{"invalid", 42},
		{"-5", 42},
		{"0", 42},
	}

	for _, tt := range tests {
		if tt.value == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, tt.value)
		}
		if got := getEnvInt(key, 42); got != tt.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}
