package posenet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"signframes/internal/pose"
	"signframes/internal/services"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryAttempts  = 4
)

// HTTPConfig captures the settings required to talk to a pose service.
type HTTPConfig struct {
	URL            string
	TimeoutSeconds int
	Tuning         Tuning
}

// HTTPEstimator posts frames to a pose service and decodes the JSON reply.
type HTTPEstimator struct {
	cfg        HTTPConfig
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// HTTPOption customizes the estimator.
type HTTPOption func(*HTTPEstimator)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEstimator) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 4).
func WithRetryMaxAttempts(attempts int) HTTPOption {
	return func(e *HTTPEstimator) {
		e.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) HTTPOption {
	return func(e *HTTPEstimator) {
		e.retryBaseDelay = baseDelay
		e.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) HTTPOption {
	return func(e *HTTPEstimator) {
		e.sleeper = sleeper
	}
}

// NewHTTPEstimator constructs an estimator for the service at cfg.URL.
func NewHTTPEstimator(cfg HTTPConfig, opts ...HTTPOption) *HTTPEstimator {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.URL = strings.TrimSpace(cfg.URL)
	est := &HTTPEstimator{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(est)
	}
	return est
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("pose request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Estimate implements Estimator.
func (e *HTTPEstimator) Estimate(ctx context.Context, imagePath string) (pose.RawPose, error) {
	if e.cfg.URL == "" {
		return pose.RawPose{}, services.Wrap(services.ErrConfiguration, "posenet", "estimate", "pose url not configured", nil)
	}
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return pose.RawPose{}, services.Wrap(services.ErrNotFound, "posenet", "read frame", imagePath, err)
	}
	endpoint, err := e.endpoint()
	if err != nil {
		return pose.RawPose{}, services.Wrap(services.ErrConfiguration, "posenet", "build url", e.cfg.URL, err)
	}

	attempts := e.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := e.sendOnce(ctx, endpoint, image)
		if err == nil {
			return raw, nil
		}
		delay, retry := e.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return pose.RawPose{}, ctxErr
			}
			if attempt > 1 {
				return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "estimate",
					fmt.Sprintf("%s: failed after %d attempts", imagePath, attempt), err)
			}
			return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "estimate", imagePath, err)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return pose.RawPose{}, err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return pose.RawPose{}, services.Wrap(services.ErrExternalTool, "posenet", "estimate",
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (e *HTTPEstimator) endpoint() (string, error) {
	parsed, err := url.Parse(e.cfg.URL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	for key, value := range e.cfg.Tuning.query() {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (e *HTTPEstimator) sendOnce(ctx context.Context, endpoint string, image []byte) (pose.RawPose, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return pose.RawPose{}, fmt.Errorf("pose request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return pose.RawPose{}, fmt.Errorf("pose request: http error (timeout=%s): %w", e.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pose.RawPose{}, fmt.Errorf("pose request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return pose.RawPose{}, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter,
		}
	}
	return decodePose(body)
}

func (e *HTTPEstimator) retryAttempts() int {
	if e.retryMaxAttempts <= 0 {
		return 1
	}
	return e.retryMaxAttempts
}

func (e *HTTPEstimator) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return e.capDelay(statusErr.RetryAfter), true
			}
			return e.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return e.backoffDelay(attempt), true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Connection refused while the service restarts.
		return e.backoffDelay(attempt), true
	}
	return 0, false
}

func (e *HTTPEstimator) backoffDelay(attempt int) time.Duration {
	base := e.retryBaseDelay
	maxDelay := e.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if base <= 0 {
		return 0
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return e.capDelay(delay)
}

func (e *HTTPEstimator) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := e.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	return min(delay, maxDelay)
}

func (e *HTTPEstimator) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
