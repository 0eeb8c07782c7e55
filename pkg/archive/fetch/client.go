package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tendant/archive-dump/pkg/archive"
)

const (
	DefaultHost = "archive.cnx.org"

	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 8 * time.Second

	uncollatedQuery = "as_collated=0"
)

// Client talks to the content API of one archive host.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration

	retry *retryablehttp.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client requests are sent with.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for host. A bare host name is reached over
// https; a value with a scheme is used as the base URL as-is.
func NewClient(host string, opts ...Option) *Client {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultHost
	}
	base := host
	if !strings.Contains(host, "://") {
		base = "https://" + host
	}
	c := &Client{
		baseURL:          strings.TrimRight(base, "/"),
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		logger:           slog.Default(),
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.retry = &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		Logger:       c.logger,
		RetryWaitMin: c.retryBaseDelay,
		RetryWaitMax: c.retryMaxDelay,
		RetryMax:     c.retryAttempts() - 1,
		CheckRetry:   checkRetry,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: c.giveUp,
	}
	return c
}

// BaseURL returns the scheme and host requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response is a fetched body. Non-2xx responses are returned as-is.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get fetches url and reads the whole body. Network failures and gateway
// errors are retried with backoff; the final response is returned whatever
// its status.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &archive.FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// GetRequired is Get for a representation the export cannot do without: a
// non-2xx status becomes a *archive.FetchError.
func (c *Client) GetRequired(ctx context.Context, url string) (*Response, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &archive.FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &archive.FetchError{URL: url, Err: err}
	}
	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, &archive.FetchError{URL: url, Err: err}
	}
	return resp, nil
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

// giveUp runs once retries are exhausted or a failure is not retryable. A
// gateway error response is handed back as-is.
func (c *Client) giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if err == nil && resp != nil {
		return resp, nil
	}
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		err = errors.New("unknown retry failure")
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// checkRetry retries network failures and gateway errors. Anything else,
// including other 5xx statuses, is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryableError(err), nil
	}
	return retryableStatus(resp.StatusCode), nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
