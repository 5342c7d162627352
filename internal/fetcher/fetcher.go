package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/limiter"
)

const (
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
	maxBodyBytes   = 10 << 20
)

var (
	errInvalidRequest = errors.New("invalid request")

	// ErrServerStatus is returned when the last attempt answered with a 5xx status.
	// The captured Result is returned alongside it.
	ErrServerStatus = errors.New("server error status")
)

// Result contains the HTTP response data.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	FinalURL   string
	Duration   time.Duration
}

// ContentType returns the media type of the response without parameters.
func (r Result) ContentType() string {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(raw, ";")[0]))
	}

	return mediaType
}

// IsHTML reports whether the response declares an HTML payload.
// A missing Content-Type is treated as HTML.
func (r Result) IsHTML() bool {
	contentType := r.ContentType()

	return contentType == "" || contentType == "text/html" || contentType == "application/xhtml+xml"
}

// IsRedirect reports whether the response is a 3xx status.
func (r Result) IsRedirect() bool {
	return r.StatusCode >= http.StatusMultipleChoices && r.StatusCode < http.StatusBadRequest
}

// Location returns the redirect target resolved against the requested URL.
func (r Result) Location(requested string) string {
	location := strings.TrimSpace(r.Header.Get("Location"))
	if location == "" {
		return ""
	}

	base, err := url.Parse(requested)
	if err != nil {
		return location
	}

	target, err := base.Parse(location)
	if err != nil {
		return location
	}

	return target.String()
}

// Fetcher performs HTTP requests with retries and rate limiting.
type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	userAgent  string
	waiter     limiter.Waiter
	retries    int
	retryDelay time.Duration
	clock      limiter.Timer
}

// New creates a Fetcher with the provided configuration.
// waiter may be nil when requests are not rate limited.
func New(
	client *http.Client,
	timeout time.Duration,
	userAgent string,
	waiter limiter.Waiter,
	retries int,
	retryDelay time.Duration,
	clock limiter.Timer,
) *Fetcher {
	if retryDelay <= 0 {
		retryDelay = baseRetryDelay
	}

	if retries < 0 {
		retries = 0
	}

	if clock == nil {
		clock = limiter.NewClock()
	}

	return &Fetcher{
		client:     client,
		timeout:    timeout,
		userAgent:  userAgent,
		waiter:     waiter,
		retries:    retries,
		retryDelay: retryDelay,
		clock:      clock,
	}
}

// NoRedirectClient returns a copy of client that hands 3xx responses back to
// the caller instead of following them.
func NoRedirectClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	clone := *client
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &clone
}

// Fetch performs a GET request with retries for temporary failures (network errors, 429, 5xx).
// Statuses below 500 are returned without error so redirects and client errors stay observable.
// It returns the result from the last attempt.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	attempts := f.retries + 1
	var lastResult Result
	var lastErr error

	for attempt := range attempts {
		result, err := f.fetchOnce(ctx, rawURL)
		lastResult = result
		lastErr = err

		if err == nil && !isRetryableStatus(result.StatusCode) {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}

			return result, nil
		}

		retry, retryErr := f.shouldRetry(ctx, attempt, attempts, result, err)
		if !retry {
			return result, retryErr
		}
	}

	return lastResult, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (Result, error) {
	if f.waiter != nil {
		if err := f.waiter.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	return f.doRequest(ctx, rawURL)
}

func (f *Fetcher) shouldRetry(
	ctx context.Context,
	attempt int,
	attempts int,
	result Result,
	err error,
) (bool, error) {
	if ctx.Err() != nil {
		return false, coalesceError(err, ctx.Err())
	}

	if !isRetryable(result.StatusCode, err) || attempt == attempts-1 {
		return false, errorForStatus(err, result.StatusCode)
	}

	sleepDelay := f.retryDelayFor(attempt + 1)

	err = f.clock.Sleep(ctx, sleepDelay)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (f *Fetcher) doRequest(ctx context.Context, rawURL string) (Result, error) {
	requestCtx := ctx
	var cancel context.CancelFunc
	if f.timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, f.timeout)
	}
	if cancel != nil {
		defer cancel()
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if parsedURL.Path == "" {
		parsedURL.Path = "/"
	}

	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", errInvalidRequest, err)
	}

	if f.userAgent != "" {
		request.Header.Set("User-Agent", f.userAgent)
	}

	started := f.clock.Now()

	response, err := f.client.Do(request)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	result := Result{
		StatusCode: response.StatusCode,
		Header:     response.Header,
		FinalURL:   parsedURL.String(),
	}
	if response.Request != nil && response.Request.URL != nil {
		result.FinalURL = response.Request.URL.String()
	}
	if result.Header == nil {
		result.Header = http.Header{}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	result.Duration = limiter.Elapsed(f.clock, started)
	if err != nil {
		return result, fmt.Errorf("read body: %w", err)
	}

	result.Body = body

	return result, nil
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

func isRetryable(statusCode int, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}

	return isRetryableStatus(statusCode)
}

func isRetryableError(err error) bool {
	if isContextCanceled(err) {
		return false
	}

	if errors.Is(err, errInvalidRequest) {
		return false
	}

	if isEOFLike(err) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRetryableURLError(urlErr)
	}

	// Non-url errors are retryable only if they look like a temporary transport/network issue.
	return isNetError(err)
}

func isRetryableURLError(urlErr *url.Error) bool {
	if urlErr == nil {
		return false
	}

	err := urlErr.Err
	for err != nil {
		if isContextCanceled(err) {
			return false
		}

		if errors.Is(err, errInvalidRequest) {
			return false
		}

		if isEOFLike(err) {
			return true
		}

		var inner *url.Error
		if errors.As(err, &inner) {
			err = inner.Err

			continue
		}

		return isNetError(err)
	}

	return false
}

func isContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isNetError(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr)
}

func isEOFLike(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func errorForStatus(err error, statusCode int) error {
	if err != nil {
		return err
	}

	if statusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrServerStatus, StatusText(statusCode))
	}

	return nil
}

// StatusText returns the canonical text for statusCode, falling back to a
// numeric description for unregistered codes.
func StatusText(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return fmt.Sprintf("http status %d", statusCode)
	}

	return text
}

func coalesceError(primary, fallback error) error {
	if primary != nil {
		return primary
	}

	return fallback
}

func (f *Fetcher) retryDelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := f.retryDelay
	for i := 1; i < attempt; i++ {
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}

		delay *= 2
	}

	if delay > maxRetryDelay {
		return maxRetryDelay
	}

	return delay
}
