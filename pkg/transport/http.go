package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// MaxResponseSize bounds metadata response body reads.
	MaxResponseSize int64 = 1 << 20

	defaultRequestTimeout = 5 * time.Second
	defaultRateLimit      = rate.Limit(50)
	defaultRateBurst      = 10
)

// HTTP is the production Transport. Requests are issued against BaseURL
// and paced by a token bucket, since metadata services throttle callers.
type HTTP struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient sets the HTTP client used for requests.
func WithClient(c *http.Client) Option {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithRateLimit sets the request rate and burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(h *HTTP) {
		h.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewHTTP creates an HTTP transport for the service at baseURL
// (e.g. "http://169.254.169.254").
func NewHTTP(baseURL string, opts ...Option) *HTTP {
	h := &HTTP{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
		limiter: rate.NewLimiter(defaultRateLimit, defaultRateBurst),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Probe dials address with a deadline of timeout. The Go dialer performs a
// non-blocking connect and waits for writability through the runtime
// poller, so an unroutable address costs at most timeout.
func (h *HTTP) Probe(ctx context.Context, address string, timeout time.Duration) bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	probeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		probeTotal.WithLabelValues("unreachable").Inc()
		slog.Debug("metadata address unreachable",
			slog.String("address", address),
			slog.Duration("timeout", timeout),
			slog.String("error", err.Error()))
		return false
	}
	if cerr := conn.Close(); cerr != nil {
		slog.Debug("failed to close probe connection", slog.String("error", cerr.Error()))
	}
	probeTotal.WithLabelValues("reachable").Inc()
	return true
}

// Get issues a GET for path relative to the base URL.
func (h *HTTP) Get(ctx context.Context, path string) ([]byte, int, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		requestTotal.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("failed to get %s: %w", path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("failed to close response body", slog.String("error", cerr.Error()))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestTotal.WithLabelValues("error").Inc()
		return nil, resp.StatusCode, fmt.Errorf("failed to read %s: %w", path, err)
	}

	requestTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return body, resp.StatusCode, nil
}
