// Package throttle implements request pacing for rate-limited open-data
// APIs. A fixed politeness delay separates successive page requests, and a
// server-requested Retry-After stretches the next wait to at least that
// duration.
package throttle

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pacing.
var (
	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "throttle_waits_total",
		Help: "Total inter-request politeness waits",
	})

	throttleRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "throttle_rate_limited_total",
		Help: "Total rate-limited responses observed",
	})

	throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "throttle_wait_seconds",
		Help:    "Duration of pacing waits",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// DefaultDelay is the politeness delay between page requests.
const DefaultDelay = 500 * time.Millisecond

// Pacer enforces the inter-request delay. Not safe for concurrent use; the
// fetch loop owns it for the duration of a run.
type Pacer struct {
	delay      time.Duration
	retryAfter time.Duration
	logger     zerolog.Logger
}

// NewPacer creates a pacer with the given delay.
// A non-positive delay falls back to DefaultDelay.
func NewPacer(delay time.Duration, logger zerolog.Logger) *Pacer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Pacer{
		delay:  delay,
		logger: logger,
	}
}

// ObserveRateLimit records a server throttling response so the next Wait
// honors the requested backoff. A zero retryAfter still counts the event.
func (p *Pacer) ObserveRateLimit(retryAfter time.Duration) {
	throttleRateLimitedTotal.Inc()
	if retryAfter > p.retryAfter {
		p.retryAfter = retryAfter
	}

	p.logger.Warn().
		Dur("retry_after", retryAfter).
		Msg("Rate limited by server")
}

// Wait blocks for the politeness delay, or the pending Retry-After duration
// when that is longer. It returns early with the context error on
// cancellation.
func (p *Pacer) Wait(ctx context.Context) error {
	wait := p.delay
	if p.retryAfter > wait {
		wait = p.retryAfter
	}
	p.retryAfter = 0

	throttleWaitsTotal.Inc()
	throttleWaitSeconds.Observe(wait.Seconds())

	select {
	case <-ctx.Done():
		p.logger.Warn().Dur("wait", wait).Msg("Context cancelled during pacing wait")
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// Delay returns the configured politeness delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}
