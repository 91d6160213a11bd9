package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"stock-research/models"
	"stock-research/observability"
)

// Upstream breaker names. Each price, fundamentals, or LLM provider
// gets its own breaker so one outage does not block the others.
const (
	BreakerYahoo        = "yahoo"
	BreakerAlpaca       = "alpaca"
	BreakerAlphaVantage = "alphavantage"
	BreakerFMP          = "fmp"
	BreakerAnthropic    = "anthropic"
	BreakerBedrock      = "bedrock"
	BreakerOpenAI       = "openai"
)

// CircuitBreakerConfig controls when an upstream is considered down
type CircuitBreakerConfig struct {
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state window after which counts reset
	Timeout      time.Duration // how long a breaker stays open
	MinRequests  uint32        // calls in the window before tripping is considered
	FailureRatio float64       // share of failed calls that trips the breaker
}

// DefaultCircuitBreakerConfig trips after half of at least five calls fail
// and probes again after 30 seconds
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	MaxRequests:  5,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.5,
}

// CircuitBreakerRegistry hands out one breaker per upstream name
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   CircuitBreakerConfig
}

// NewCircuitBreakerRegistry creates an empty registry
func NewCircuitBreakerRegistry(config CircuitBreakerConfig) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   config,
	}
}

func (r *CircuitBreakerRegistry) breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	cfg := r.config
	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful:  isBreakerSuccess,
		OnStateChange: onBreakerStateChange,
	})
	r.breakers[name] = cb
	return cb
}

func onBreakerStateChange(name string, from, to gobreaker.State) {
	observability.Warn("upstream breaker state change",
		"breaker", name,
		"from", from.String(),
		"to", to.String())

	metrics := observability.GetMetrics()
	metrics.SetCircuitBreakerState(name, stateGauge(to))
	if to == gobreaker.StateOpen {
		metrics.RecordCircuitBreakerTrip(name)
	}
}

// isBreakerSuccess keeps caller-side outcomes from tripping a breaker.
// An unknown symbol or a cancelled request says nothing about upstream health.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, models.ErrUnknownSymbol) ||
		errors.Is(err, context.Canceled)
}

// Execute runs fn through the named breaker. Rejections by an open or
// saturated breaker surface as ErrUpstreamUnavailable.
func (r *CircuitBreakerRegistry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	result, err := r.breaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		observability.Warn("upstream breaker open, rejecting call", "breaker", name)
		return nil, fmt.Errorf("%w: %s is temporarily disabled after repeated failures", models.ErrUpstreamUnavailable, name)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %s is recovering, too many probe requests", models.ErrUpstreamUnavailable, name)
	}
	return result, err
}

// CircuitBreakerStatus is the health view of one upstream
type CircuitBreakerStatus struct {
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// Status reports every breaker created so far, keyed by upstream name
func (r *CircuitBreakerRegistry) Status() map[string]CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]CircuitBreakerStatus, len(r.breakers))
	for name, cb := range r.breakers {
		counts := cb.Counts()
		status[name] = CircuitBreakerStatus{
			State:               cb.State().String(),
			Requests:            counts.Requests,
			Failures:            counts.TotalFailures,
			ConsecutiveFailures: counts.ConsecutiveFailures,
		}
	}
	return status
}

// OpenBreakers lists the upstreams currently rejecting calls, sorted by name
func (r *CircuitBreakerRegistry) OpenBreakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []string
	for name, cb := range r.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

var (
	globalRegistry *CircuitBreakerRegistry
	registryOnce   sync.Once
)

// GetGlobalRegistry returns the process-wide registry
func GetGlobalRegistry() *CircuitBreakerRegistry {
	registryOnce.Do(func() {
		globalRegistry = NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig)
	})
	return globalRegistry
}

// SetGlobalRegistry replaces the process-wide registry (useful for testing)
func SetGlobalRegistry(r *CircuitBreakerRegistry) {
	registryOnce.Do(func() {})
	globalRegistry = r
}

// WithCircuitBreaker runs a typed call through the named global breaker
func WithCircuitBreaker[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	result, err := GetGlobalRegistry().Execute(ctx, name, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// stateGauge encodes a state for the breaker gauge: 0 closed, 1 half-open, 2 open
func stateGauge(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
