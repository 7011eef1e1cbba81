package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/erazemk/handreceipt/internal/model"
)

// BreakerConfig tunes the circuit breaker around a ledger client.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
	MaxRequests         uint32
}

// DefaultBreakerConfig opens after five consecutive failures and lets one request through again after 30s.
var DefaultBreakerConfig = BreakerConfig{
	ConsecutiveFailures: 5,
	Timeout:             30 * time.Second,
	MaxRequests:         1,
}

// Breaker wraps a Client so that an unreachable ledger fails fast instead
// of holding up every approval.
type Breaker struct {
	next Client
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker.
func NewBreaker(next Client, cfg BreakerConfig) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig.ConsecutiveFailures
	}
	settings := gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("ledger circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Enabled implements Client.
func (b *Breaker) Enabled(item model.Item) bool {
	return b.next.Enabled(item)
}

// Record implements Client. While the breaker is open it returns
// gobreaker.ErrOpenState without calling the wrapped client.
func (b *Breaker) Record(ctx context.Context, item model.Item, eventType string, p Payload, actor string) (Receipt, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Record(ctx, item, eventType, p, actor)
	})
	if err != nil {
		return Receipt{}, err
	}
	return res.(Receipt), nil
}

// State returns the breaker state ("closed", "half-open" or "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
