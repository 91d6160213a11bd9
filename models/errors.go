package models

import "errors"

// Error taxonomy shared by the store, fetchers, analysis and HTTP layers.
// Wrap with fmt.Errorf("...: %w") and classify with errors.Is.
var (
	// ErrUnknownSymbol means the symbol is not in the allow-list or the provider has no data for it
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrUpstreamUnavailable means market data could not be fetched and no cached copy exists
	ErrUpstreamUnavailable = errors.New("market data upstream unavailable")

	// ErrCacheCorrupted marks an unreadable cache record; it is always recovered as a cache miss
	ErrCacheCorrupted = errors.New("cache record corrupted")

	// ErrConfigurationMissing means no LLM credential is configured
	ErrConfigurationMissing = errors.New("LLM credential not configured")

	// ErrReportGenerationFailed means the LLM call failed or returned no content
	ErrReportGenerationFailed = errors.New("report generation failed")
)

// IsRetryable reports whether the caller may safely retry the failed operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrReportGenerationFailed) || errors.Is(err, ErrUpstreamUnavailable)
}
