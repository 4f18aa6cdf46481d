// Package external holds the clients for third-party HTTP APIs (current
// weather, IP geolocation). Outbound calls go through BaseClient, which adds
// circuit breaking, optional retries, trace propagation, gzip decoding and
// error mapping onto the types.AppError taxonomy.
package external

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker/v2"

	"skycast/internal/types"
)

// maxErrorBodyBytes bounds how much of a failed response body is kept in the
// error message.
const maxErrorBodyBytes = 512

// RetryPolicy configures the retry behavior for the BaseClient.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns defaults for idempotent lookups that tolerate
// a short delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    250 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// NoRetryPolicy performs exactly one attempt.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

// BaseClient wraps an *http.Client and a circuit breaker. Provider clients
// hold a BaseClient to inherit this behavior.
type BaseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	userAgent   string
	sleepFn     func(time.Duration)
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep function used between retries. Tests use
// it to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient with its own circuit breaker named
// breakerName.
func NewBaseClient(
	httpClient *http.Client,
	breakerName string,
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	return NewBaseClientWithBreaker(httpClient, NewBreaker(breakerName), retryPolicy, userAgent, opts...)
}

// NewBreaker returns the breaker for lookups that may be skipped while an
// upstream is down: open after more than five consecutive failures,
// half-open after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewPassThroughBreaker returns a breaker that counts outcomes but never
// opens. Clients whose every call must reach the upstream (the weather fetch
// reports each HTTP status to the caller) use it instead of NewBreaker.
func NewPassThroughBreaker(name string) *gobreaker.CircuitBreaker[*http.Response] {
	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		ReadyToTrip: func(gobreaker.Counts) bool {
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. Tests use it to shrink thresholds; the weather client uses it to
// install a breaker that never opens.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	retryPolicy RetryPolicy,
	userAgent string,
	opts ...BaseClientOption,
) *BaseClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	bc := &BaseClient{
		client:      httpClient,
		breaker:     breaker,
		retryPolicy: retryPolicy,
		userAgent:   userAgent,
		sleepFn:     time.Sleep,
	}

	for _, opt := range opts {
		opt(bc)
	}

	return bc
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent and Accept-Encoding headers
//  3. Circuit breaker wrapping
//  4. Retry on 429/5xx while the policy allows (respecting Retry-After)
//  5. Error mapping to types.AppError
//
// 2xx-4xx responses (other than 429) are returned as-is; the caller closes
// the body and handles non-2xx statuses. A 429/5xx that is not retried away
// becomes an ErrCodeUpstreamHTTPStatus error carrying the status; transport
// failures and an open breaker become ErrCodeUpstreamNetwork.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	// The request id doubles as the trace id so upstream logs can be joined
	// with ours.
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	// Setting Accept-Encoding explicitly disables net/http's transparent
	// decompression, which is why ReadBody inflates gzip itself.
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	// Snapshot the request body so it can be replayed on retries.
	// GET requests have no body and skip this.
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				"failed to read request body for retry support",
				err,
			)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	maxAttempts := 1 + c.retryPolicy.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		// 429 and 5xx count as breaker failures but still hand back the
		// response so its status and Retry-After survive to mapError.
		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})

		if err == nil {
			return resp, nil
		}

		// Only the final response is kept for error mapping; earlier ones are
		// closed so their connections return to the pool.
		lastErr = err
		lastResp = nil
		if resp != nil {
			if attempt < maxAttempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		// An open breaker will reject the retry too.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		// Cancelled or timed out: the caller has stopped waiting.
		if req.Context().Err() != nil {
			break
		}

		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	return nil, c.mapError(lastResp, lastErr)
}

// computeBackoff determines the wait before the next attempt. Retry-After
// wins when present; otherwise exponential backoff with jitter clamped to
// [MinWait, MaxWait].
func (c *BaseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	// Retry-After is either delay-seconds or an HTTP date.
	if resp != nil {
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retryPolicy.MaxWait)
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retryPolicy.MinWait
				}
				return min(wait, c.retryPolicy.MaxWait)
			}
		}
	}

	// Jitter spreads retries from concurrent callers: a random wait in
	// [MinWait, min(MaxWait, MinWait*2^attempt)].
	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retryPolicy.MaxWait))

	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

// mapError translates the final failure into an AppError. resp, when non-nil,
// is the last 429/5xx response; its body is consumed and closed here.
func (c *BaseClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamNetwork,
			"circuit breaker is open; upstream treated as unreachable",
			err,
		)
	}

	// A retried-out 429/5xx keeps its status so callers can report it.
	if resp != nil {
		defer resp.Body.Close()
		return types.NewHTTPStatusError(resp.StatusCode, ErrorBody(resp))
	}

	// Transport failure: DNS, refused connection, timeout or cancellation.
	return types.NewAppError(types.ErrCodeUpstreamNetwork, "upstream request failed", err)
}

// ReadBody reads the whole response body, transparently inflating it when the
// server answered with Content-Encoding: gzip.
func ReadBody(resp *http.Response) ([]byte, error) {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.ReadAll(resp.Body)
	}

	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("opening gzip body: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating gzip body: %w", err)
	}
	return data, nil
}

// ErrorBody returns a bounded, trimmed copy of a failed response body for
// inclusion in error messages. Read failures yield "".
func ErrorBody(resp *http.Response) string {
	data, err := ReadBody(resp)
	if err != nil {
		return ""
	}
	if len(data) > maxErrorBodyBytes {
		data = data[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(data))
}
