package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Fantasim/nanas/internal/config"
)

// Guard wraps calls to one collaborator with a token-bucket limiter, a
// circuit breaker and a single retry of transient failures.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *CircuitBreaker
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewGuard creates a guard allowing rps calls per second to the named collaborator.
func NewGuard(name string, rps int) *Guard {
	cb := NewCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerCooldown)
	cb.name = name

	slog.Debug("upstream guard created", "upstream", name, "rps", rps)
	return &Guard{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: cb,
		sleep:   sleepCtx,
	}
}

// Do executes fn unless the circuit is open. A transient failure (429, 5xx)
// is retried once after its Retry-After hint or UpstreamRetryDelay. Only the
// final outcome counts against the breaker. A cancelled call does not count
// and hands a half-open probe back to the next caller.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !g.breaker.Allow() {
		slog.Debug("upstream circuit open, skipping", "upstream", g.name)
		return fmt.Errorf("%s: %w", g.name, config.ErrCircuitOpen)
	}

	err := g.attempt(ctx, fn)
	if delay, ok := retryDelay(err); ok {
		slog.Info("retrying transient upstream failure", "upstream", g.name, "delay", delay, "error", err)
		if serr := g.sleep(ctx, delay); serr != nil {
			g.breaker.Release()
			return serr
		}
		err = g.attempt(ctx, fn)
	}

	switch {
	case err == nil:
		g.breaker.RecordSuccess()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		g.breaker.Release()
	default:
		g.breaker.RecordFailure()
	}
	return err
}

func (g *Guard) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		slog.Warn("upstream rate limiter wait cancelled", "upstream", g.name, "error", err)
		return fmt.Errorf("%s rate limiter wait: %w", g.name, err)
	}
	return fn(ctx)
}

// Breaker exposes the guard's circuit breaker for health reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

func retryDelay(err error) (time.Duration, bool) {
	var te *config.TransientError
	if !errors.As(err, &te) {
		return 0, false
	}
	switch {
	case te.RetryAfter > config.UpstreamMaxRetryWait:
		return 0, false
	case te.RetryAfter > 0:
		return te.RetryAfter, true
	default:
		return config.UpstreamRetryDelay, true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CheckStatus turns a non-200 response into an error. 429 and 5xx are
// transient; 429 carries the Retry-After hint.
func CheckStatus(name string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("upstream rate limited", "upstream", name)
		return &config.TransientError{
			Err:        fmt.Errorf("%s: %w", name, config.ErrProviderRateLimit),
			RetryAfter: ParseRetryAfter(resp.Header),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		slog.Warn("upstream server error", "upstream", name, "status", resp.StatusCode)
		return config.NewTransientError(fmt.Errorf("%s: HTTP %d", name, resp.StatusCode))
	default:
		slog.Warn("upstream non-200 response", "upstream", name, "status", resp.StatusCode)
		return fmt.Errorf("%s: HTTP %d", name, resp.StatusCode)
	}
}

// ParseRetryAfter reads the Retry-After header in seconds or HTTP-date form.
// Returns 0 when missing, unparseable, or in the past.
func ParseRetryAfter(header http.Header) time.Duration {
	val := header.Get("Retry-After")
	if val == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	slog.Debug("unparseable Retry-After header", "value", val)
	return 0
}
