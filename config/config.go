package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stock-research/models"
)

// LLM providers
const (
	LLMProviderAnthropic = "anthropic"
	LLMProviderBedrock   = "bedrock"
	LLMProviderOpenAI    = "openai"
)

// Price history providers
const (
	MarketDataYahoo  = "yahoo"
	MarketDataAlpaca = "alpaca"
	MarketDataDemo   = "demo"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultOpenAIModel    = "gpt-4o"
	DefaultMaxTokens      = 1024
)

// Config holds all application configuration
type Config struct {
	// Cache store configuration
	Cache CacheConfig

	// Market data configuration
	MarketData   MarketDataConfig
	AlphaVantage AlphaVantageConfig
	FMP          FMPConfig
	Alpaca       AlpacaConfig

	// Report generation
	LLM LLMConfig

	HTTP HTTPConfig
	Log  LogConfig

	// SymbolsFile is the optional YAML allow-list; Symbols is the resolved set
	SymbolsFile string
	Symbols     *models.SymbolSet
}

// CacheConfig holds the on-disk series cache configuration
type CacheConfig struct {
	Dir string
	TTL time.Duration
}

// MarketDataConfig selects and tunes the price history source
type MarketDataConfig struct {
	Provider     string
	LookbackDays int
	Timeout      time.Duration
	YahooBaseURL string // overrides the chart API host, empty for the public endpoint
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey string
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey string
}

// AlpacaConfig holds Alpaca market data credentials
type AlpacaConfig struct {
	APIKey    string
	APISecret string
}

// LLMConfig selects the report provider
type LLMConfig struct {
	Provider         string
	MaxTokens        int
	Timeout          time.Duration
	ConcurrencyLimit int // concurrent report generations (default: 3)
	Anthropic        AnthropicConfig
	Bedrock          BedrockConfig
	OpenAI           OpenAIConfig
}

// AnthropicConfig holds Anthropic Messages API configuration
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region  string
	ModelID string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // any OpenAI-compatible chat completions endpoint
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               int
	CORSAllowedOrigins string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
}

// LogConfig holds logger configuration
type LogConfig struct {
	Format string
	Level  string
}

// symbolsFile is the on-disk shape of SYMBOLS_FILE
type symbolsFile struct {
	Stocks []models.StockInfo `yaml:"stocks"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Cache: CacheConfig{
			Dir: getEnvString("DATA_DIR", "data"),
			TTL: time.Duration(getEnvInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		},
		MarketData: MarketDataConfig{
			Provider:     getEnvString("MARKET_DATA_PROVIDER", MarketDataYahoo),
			LookbackDays: getEnvInt("MARKET_DATA_LOOKBACK_DAYS", 365),
			Timeout:      time.Duration(getEnvInt("MARKET_DATA_TIMEOUT_SECONDS", 30)) * time.Second,
			YahooBaseURL: os.Getenv("YAHOO_BASE_URL"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		},
		FMP: FMPConfig{
			APIKey: os.Getenv("FMP_API_KEY"),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
		},
		LLM: LLMConfig{
			Provider:         getEnvString("LLM_PROVIDER", LLMProviderAnthropic),
			MaxTokens:        getEnvInt("LLM_MAX_TOKENS", DefaultMaxTokens),
			Timeout:          time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			ConcurrencyLimit: getEnvInt("REPORT_CONCURRENCY_LIMIT", 3),
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   getEnvString("ANTHROPIC_MODEL", DefaultAnthropicModel),
				BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
			},
			Bedrock: BedrockConfig{
				Region:  os.Getenv("AWS_REGION"),
				ModelID: os.Getenv("BEDROCK_MODEL_ID"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   getEnvString("OPENAI_MODEL", DefaultOpenAIModel),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
		},
		HTTP: HTTPConfig{
			Port:               getEnvInt("PORT", 8080),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			ReadTimeout:        time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)) * time.Second,
			WriteTimeout:       time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)) * time.Second,
			ShutdownTimeout:    time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Log: LogConfig{
			Format: getEnvString("LOG_FORMAT", "text"),
			Level:  getEnvString("LOG_LEVEL", "info"),
		},
		SymbolsFile: os.Getenv("SYMBOLS_FILE"),
	}

	symbols, err := loadSymbols(cfg.SymbolsFile)
	if err != nil {
		return nil, err
	}
	cfg.Symbols = symbols

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadSymbols reads a YAML allow-list of the form
//
//	stocks:
//	  - symbol: TCS.NS
//	    name: Tata Consultancy Services
func LoadSymbols(path string) (*models.SymbolSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}

	var file symbolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse symbols file %s: %w", path, err)
	}

	set, err := models.NewSymbolSet(file.Stocks)
	if err != nil {
		return nil, fmt.Errorf("invalid symbols file %s: %w", path, err)
	}
	return set, nil
}

func loadSymbols(path string) (*models.SymbolSet, error) {
	if path == "" {
		return models.NewSymbolSet(models.DefaultStocks)
	}
	return LoadSymbols(path)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.MarketData.Provider {
	case MarketDataYahoo, MarketDataDemo:
	case MarketDataAlpaca:
		if !c.HasAlpacaCredentials() {
			return fmt.Errorf("MARKET_DATA_PROVIDER=alpaca requires ALPACA_API_KEY and ALPACA_API_SECRET")
		}
	default:
		return fmt.Errorf("MARKET_DATA_PROVIDER must be one of yahoo, alpaca, demo, got %q", c.MarketData.Provider)
	}

	switch c.LLM.Provider {
	case LLMProviderAnthropic, LLMProviderBedrock, LLMProviderOpenAI:
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of anthropic, bedrock, openai, got %q", c.LLM.Provider)
	}

	if c.Cache.Dir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive, got %s", c.Cache.TTL)
	}
	if c.MarketData.LookbackDays <= 0 {
		return fmt.Errorf("MARKET_DATA_LOOKBACK_DAYS must be positive, got %d", c.MarketData.LookbackDays)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Symbols == nil || c.Symbols.Len() == 0 {
		return fmt.Errorf("at least one supported symbol is required")
	}

	return nil
}

// HasLLMCredential reports whether the selected LLM provider has what it needs to run
func (c *Config) HasLLMCredential() bool {
	switch c.LLM.Provider {
	case LLMProviderAnthropic:
		return c.LLM.Anthropic.APIKey != ""
	case LLMProviderBedrock:
		return c.LLM.Bedrock.Region != "" && c.LLM.Bedrock.ModelID != ""
	case LLMProviderOpenAI:
		return c.LLM.OpenAI.APIKey != ""
	default:
		return false
	}
}

// LLMCredentialName names the setting the selected LLM provider requires
func (c *Config) LLMCredentialName() string {
	switch c.LLM.Provider {
	case LLMProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case LLMProviderBedrock:
		return "AWS_REGION and BEDROCK_MODEL_ID"
	case LLMProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "LLM_PROVIDER"
	}
}

// HasAlpacaCredentials returns true if Alpaca configuration is available
func (c *Config) HasAlpacaCredentials() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantageKey returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantageKey() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasFMPKey returns true if Financial Modeling Prep configuration is available
func (c *Config) HasFMPKey() bool {
	return c.FMP.APIKey != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	symbols, _ := models.NewSymbolSet(models.DefaultStocks)
	return &Config{
		Cache: CacheConfig{
			Dir: "data",
			TTL: 24 * time.Hour,
		},
		MarketData: MarketDataConfig{
			Provider:     MarketDataDemo,
			LookbackDays: 365,
			Timeout:      30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:         LLMProviderAnthropic,
			MaxTokens:        DefaultMaxTokens,
			Timeout:          60 * time.Second,
			ConcurrencyLimit: 3,
			Anthropic: AnthropicConfig{
				Model: DefaultAnthropicModel,
			},
			OpenAI: OpenAIConfig{
				Model: DefaultOpenAIModel,
			},
		},
		HTTP: HTTPConfig{
			Port:               8080,
			CORSAllowedOrigins: "*",
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       120 * time.Second,
			ShutdownTimeout:    10 * time.Second,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Symbols: symbols,
	}
}
