package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// Fetcher makes HTTP requests with the configured retry policy
type Fetcher struct {
	client  *http.Client
	cfg     *config.AppConfig // Retry settings
	log     *logrus.Entry
	metrics *metrics.Metrics
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithMetrics counts retries on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchWithRetry performs req under ctx, retrying network errors, 5xx and 429 with
// exponential backoff and jitter. A 429 carrying Retry-After waits that long instead
// (still capped by max_retry_delay).
//
// On 2xx the response is returned and the caller must close its body. Other 4xx and
// unexpected statuses are not retried: the response is returned together with an error
// and the caller must still close the body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response
	var retryAfter time.Duration

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("%w: context done after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context done before first attempt: %w", ctx.Err())
		default:
		}

		if attempt > 0 {
			delay := f.backoff(attempt, retryAfter)
			retryAfter = 0
			f.metrics.IncRetry()
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				reqLog.Warnf("Context cancelled during retry sleep: %v", ctx.Err())
				return nil, fmt.Errorf("%w: context done during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))

		if lastErr != nil {
			drainAndClose(currentResp)
			currentResp = nil
			// Context errors are not retried
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request: %v", lastErr)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", lastErr)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Fetched")
			return currentResp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrServerHTTPError, currentResp.Status)
			drainAndClose(currentResp)
			currentResp = nil
			continue

		case statusCode == http.StatusTooManyRequests:
			retryAfter = parseRetryAfter(currentResp.Header.Get("Retry-After"), time.Now())
			resLog.WithField("retry_after", retryAfter).Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, currentResp.Status)
			drainAndClose(currentResp)
			currentResp = nil
			continue

		case statusCode >= 400 && statusCode < 500:
			resLog.Warn("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, currentResp.Status)

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return currentResp, fmt.Errorf("%w: status %s", utils.ErrOtherHTTPError, currentResp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// backoff returns the delay before the given retry attempt (1-based):
// initial * 2^(attempt-1), capped at max, with +/-10% jitter.
func (f *Fetcher) backoff(attempt int, retryAfter time.Duration) time.Duration {
	maxDelay := f.cfg.MaxRetryDelay
	if retryAfter > 0 {
		if maxDelay > 0 && retryAfter > maxDelay {
			return maxDelay
		}
		return retryAfter
	}

	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (maxDelay > 0 && delay > maxDelay) {
		delay = maxDelay
	}
	if delay/5 > 0 {
		delay += time.Duration(rand.Int63n(int64(delay/5))) - delay/10
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// parseRetryAfter reads a Retry-After value given either as delta seconds or an HTTP date.
// Returns 0 when the header is absent or unusable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
