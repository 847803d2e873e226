package http

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"

	DefaultRetryInterval    = 500 * time.Millisecond
	DefaultRetryMaxInterval = 10 * time.Second
)

// DefaultRetryStatusCodes are the responses treated as transient.
var DefaultRetryStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Backoff computes the pause before retry number attempt, starting at 0.
type Backoff interface {
	Delay(attempt int) time.Duration
}

type FixedBackoff struct {
	Interval time.Duration
}

func (b FixedBackoff) Delay(int) time.Duration {
	return b.Interval
}

// ExponentialBackoff doubles Initial on every attempt up to Max. With Jitter
// the delay is drawn uniformly from the upper half of that value.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter {
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}

// NewBackoff builds a backoff strategy by name.
func NewBackoff(kind string, interval, maxInterval time.Duration, jitter bool) (Backoff, error) {
	switch strings.ToLower(kind) {
	case BackoffFixed, "constant":
		return FixedBackoff{Interval: interval}, nil
	case BackoffExponential, "":
		return ExponentialBackoff{Initial: interval, Max: maxInterval, Jitter: jitter}, nil
	default:
		return nil, fmt.Errorf("unknown backoff strategy %q, use %s or %s", kind, BackoffFixed, BackoffExponential)
	}
}

// RetryPolicy bounds how a request is retried. MaxRetries counts the
// attempts after the first one.
type RetryPolicy struct {
	MaxRetries  int
	Backoff     Backoff
	StatusCodes []int
	MaxInterval time.Duration
}

// NoRetry sends every request exactly once.
var NoRetry = RetryPolicy{}

func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:  maxRetries,
		Backoff:     ExponentialBackoff{Initial: DefaultRetryInterval, Max: DefaultRetryMaxInterval, Jitter: true},
		StatusCodes: DefaultRetryStatusCodes,
		MaxInterval: DefaultRetryMaxInterval,
	}
}

// ShouldRetry reports whether the outcome of an attempt is transient.
// Cancellation of the caller's context is never retried.
func (p RetryPolicy) ShouldRetry(ctx context.Context, resp *Response, err error) bool {
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return false
		}
		return true
	}
	return resp != nil && slices.Contains(p.StatusCodes, resp.StatusCode)
}

// Wait returns the pause before retry number attempt. A Retry-After header
// on 429 and 503 responses takes precedence, capped by MaxInterval.
func (p RetryPolicy) Wait(attempt int, resp *Response) time.Duration {
	var d time.Duration
	if p.Backoff != nil {
		d = p.Backoff.Delay(attempt)
	}
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if after, ok := parseRetryAfter(resp.Header("Retry-After"), time.Now()); ok {
			d = after
		}
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
