// Package circuitbreaker protects upstream service calls using Sony's
// gobreaker.
package circuitbreaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"quest-gateway/internal/common/errors"
	"quest-gateway/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration
	// MaxConcurrentRequests is the number of requests allowed while half-open
	MaxConcurrentRequests int
}

// HTTPConfig suits calls to upstream HTTP APIs that should fail fast.
var HTTPConfig = Config{
	MaxFailures:           3,
	Timeout:               30 * time.Second,
	MaxConcurrentRequests: 2,
}

// Breaker wraps gobreaker behind the small surface the gateway uses.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
}

// New creates a named circuit breaker.
func New(name string, config Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logging.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client-side errors do not indicate upstream trouble.
			switch errors.GetType(err) {
			case errors.ErrTypeValidation, errors.ErrTypeNotFound, errors.ErrTypeAuth:
				return true
			}
			return false
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn within the breaker. While the breaker is open the call is
// rejected immediately with an upstream error.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.UpstreamError(fmt.Sprintf("%s is unavailable", b.name), err)
	}

	return err
}

// IsOpen returns true if the circuit breaker is open.
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}
