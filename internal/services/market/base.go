// Package market talks to public token market APIs and builds fallback series.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	xhttp "TokenScope/pkg/http"
)

var errClientNotInitialized = errors.New("market http client not initialized")

const maxResponseBytes = 2 << 20

// HTTPServiceBase is the shared foundation for market HTTP clients. It paces
// requests with a token bucket and trips a circuit breaker on repeated failures.
type HTTPServiceBase struct {
	name     string
	baseURL  string
	client   *xhttp.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	attempts int
	backoff  time.Duration
}

type BaseOption func(*HTTPServiceBase)

// WithRate sets the sustained request rate and burst.
func WithRate(rps float64, burst int) BaseOption {
	return func(b *HTTPServiceBase) {
		if rps > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithRetry sets how many attempts a GET makes and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) BaseOption {
	return func(b *HTTPServiceBase) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if backoff > 0 {
			b.backoff = backoff
		}
	}
}

// WithBreaker overrides the consecutive failure count that opens the breaker
// and how long it stays open.
func WithBreaker(failures uint32, open time.Duration) BaseOption {
	return func(b *HTTPServiceBase) {
		b.breaker = newBreaker(b.name, failures, open)
	}
}

func NewHTTPServiceBase(name, baseURL string, timeout time.Duration, opts ...BaseOption) *HTTPServiceBase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := &HTTPServiceBase{
		name:     name,
		baseURL:  baseURL,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("tokenscope/"+name), xhttp.WithMaxBody(maxResponseBytes)),
		limiter:  rate.NewLimiter(rate.Limit(5), 5),
		attempts: 3,
		backoff:  50 * time.Millisecond,
	}
	b.breaker = newBreaker(name, 5, 30*time.Second)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newBreaker(name string, failures uint32, open time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		// an unknown token is an answer, not an outage
		IsSuccessful: func(err error) bool {
			return err == nil || xhttp.IsPermanent(err)
		},
	})
}

// GetJSON issues a GET to path under baseURL and decodes the JSON body into dest.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return errClientNotInitialized
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", path, err)
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:      xhttp.MethodGet,
			URL:         b.baseURL + path,
			Headers:     map[string]string{"Accept": "application/json"},
			QueryParams: query,
		}, dest)
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

// GetJSONWithRetry retries transient failures with linear backoff. An open
// breaker and permanent 4xx answers are not retried.
func (b *HTTPServiceBase) GetJSONWithRetry(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	var err error
	for i := 1; i <= b.attempts; i++ {
		err = b.GetJSON(ctx, path, query, dest)
		if err == nil || xhttp.IsPermanent(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return err
		}
		if i == b.attempts {
			break
		}
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// BreakerState reports the circuit breaker state, for health output.
func (b *HTTPServiceBase) BreakerState() string { return b.breaker.State().String() }
