package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-proxy/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
// Attempt k waits InitialInterval*2^k plus up to JitterFraction of that.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration // 0 = uncapped
	JitterFraction  float64
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client         *http.Client
	Backoff        BackoffConfig
	AttemptTimeout time.Duration
	Limiter        *rate.Limiter // optional
}

var (
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// maxErrorBody bounds how much of an upstream error body is kept as detail.
const maxErrorBody = 4 << 10

type attemptKind int

const (
	attemptSuccess attemptKind = iota
	attemptClientError
	attemptTransient
)

// attemptResult is the tagged outcome of a single HTTP attempt.
type attemptResult struct {
	kind   attemptKind
	status int
	body   []byte
	err    error
}

// doRequestWithResilience executes the request with bounded retries,
// exponential backoff with jitter, and a circuit breaker. 2xx bodies are
// returned; 4xx fail at once with the upstream status; 5xx and network
// errors are retried and end in a 503 UpstreamError when attempts run out.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 1 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var lastErr error

	for attempt := 0; attempt < cfg.Backoff.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait canceled: %w", err)
			}
		}

		var res attemptResult
		_, err := cb.Execute(func() (interface{}, error) {
			res = doAttempt(ctx, cfg, buildRequest)
			if res.kind == attemptTransient {
				return nil, res.err
			}
			return nil, nil
		})

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, weather.NewUnavailableError("records service unavailable", fmt.Errorf("%w: %v", errCircuitOpen, err))
		}

		switch res.kind {
		case attemptSuccess:
			return res.body, nil
		case attemptClientError:
			return nil, &weather.UpstreamError{
				StatusCode: res.status,
				Detail:     string(res.body),
			}
		}

		// A caller cancellation is not an upstream failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = res.err
		if attempt == cfg.Backoff.MaxRetries-1 {
			break
		}

		timer := time.NewTimer(backoffDelay(cfg.Backoff, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}
	}

	return nil, weather.NewUnavailableError("records service unavailable", lastErr)
}

// doAttempt issues one request under the per-attempt timeout and classifies it.
func doAttempt(
	ctx context.Context,
	cfg HTTPClientConfig,
	buildRequest func(ctx context.Context) (*http.Request, error),
) attemptResult {
	if cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
	}

	req, err := buildRequest(ctx)
	if err != nil {
		// A request that cannot be built will not get better on retry.
		return attemptResult{kind: attemptClientError, status: http.StatusBadRequest, body: []byte(err.Error())}
	}

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return attemptResult{kind: attemptTransient, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return attemptResult{kind: attemptTransient, err: fmt.Errorf("read body: %w", err)}
		}
		return attemptResult{kind: attemptSuccess, status: resp.StatusCode, body: body}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return attemptResult{kind: attemptClientError, status: resp.StatusCode, body: body}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return attemptResult{
			kind:   attemptTransient,
			status: resp.StatusCode,
			err:    fmt.Errorf("%w: %d: %s", errServerError, resp.StatusCode, body),
		}
	}
}

// backoffDelay returns the wait before the attempt following attempt k (0-based).
func backoffDelay(cfg BackoffConfig, k int) time.Duration {
	base := float64(cfg.InitialInterval) * math.Pow(2, float64(k))
	if cfg.MaxInterval > 0 && base > float64(cfg.MaxInterval) {
		base = float64(cfg.MaxInterval)
	}
	jitter := 0.0
	if cfg.JitterFraction > 0 {
		jitter = base * cfg.JitterFraction * rand.Float64()
	}
	return time.Duration(base + jitter)
}

// newCircuitBreaker trips only on transient failures; client errors are
// reported to the breaker as successes.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})
}
