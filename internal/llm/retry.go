package llm

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/hpungsan/qsyntax/internal/logging"
)

// RetryEvent describes an upcoming retry.
type RetryEvent struct {
	Attempt     int // the attempt that just failed, 1-based
	MaxAttempts int
	Delay       time.Duration
	Reason      string
}

// ProgressSink receives retry progress. Implementations must not block.
type ProgressSink interface {
	OnRetry(RetryEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(RetryEvent)

func (f ProgressFunc) OnRetry(e RetryEvent) { f(e) }

// RetryPolicy controls attempts and backoff.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Factor      float64
}

// DefaultRetryPolicy is two attempts, 1s initial delay, growing 1.2x.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Delay: time.Second, Factor: 1.2}

// Retrier wraps a Provider with bounded retries.
type Retrier struct {
	provider Provider
	policy   RetryPolicy
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithLogger sets the logger used for attempt timings.
func WithLogger(l *log.Logger) RetrierOption {
	return func(r *Retrier) { r.logger = l }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) { r.sleep = sleep }
}

// NewRetrier returns a Retrier. Zero policy fields take the defaults.
func NewRetrier(p Provider, policy RetryPolicy, opts ...RetrierOption) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.Delay <= 0 {
		policy.Delay = DefaultRetryPolicy.Delay
	}
	if policy.Factor < 1 {
		policy.Factor = DefaultRetryPolicy.Factor
	}
	r := &Retrier{
		provider: p,
		policy:   policy,
		logger:   logging.Discard(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Provider returns the wrapped provider.
func (r *Retrier) Provider() Provider { return r.provider }

// Generate calls the provider until it succeeds, fails with a
// non-retryable error, or runs out of attempts. sink may be nil.
func (r *Retrier) Generate(ctx context.Context, req Request, sink ProgressSink) (*Response, error) {
	delay := r.policy.Delay
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := r.provider.Generate(ctx, req)
		r.logger.Debug("remote call",
			"provider", r.provider.Name(),
			"attempt", attempt,
			"elapsed", time.Since(start).Round(time.Millisecond),
			"ok", err == nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == r.policy.MaxAttempts || !IsRetryable(err) {
			break
		}

		event := RetryEvent{
			Attempt:     attempt,
			MaxAttempts: r.policy.MaxAttempts,
			Delay:       delay,
			Reason:      retryReason(err),
		}
		r.logger.Warn("retrying remote call", "attempt", attempt, "max", r.policy.MaxAttempts, "delay", delay, "err", err)
		if sink != nil {
			sink.OnRetry(event)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = time.Duration(float64(delay) * r.policy.Factor)
	}

	return nil, lastErr
}

func retryReason(err error) string {
	var te *TransportError
	if stderrors.As(err, &te) {
		return "request failed"
	}
	return "API busy"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
