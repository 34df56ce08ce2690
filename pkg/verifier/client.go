// Package verifier wraps the email verification provider.
package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/coeus-crm/leadgen-cli/internal/resilience"
)

// Default base URL for the verification API.
const defaultBaseURL = "https://api.millionverifier.com"

// Results reported by the provider.
const (
	ResultDeliverable   = "deliverable"
	ResultRisky         = "risky"
	ResultOK            = "ok"
	ResultUndeliverable = "undeliverable"
	ResultUnknown       = "unknown"
	ResultInvalid       = "invalid"
	ResultError         = "error"
)

// Client defines the email verification operations.
type Client interface {
	Verify(ctx context.Context, email string) (*Verification, error)
}

// Verification is the provider's verdict for a single address. Raw keeps the
// full provider payload for auditing.
type Verification struct {
	Email  string          `json:"email"`
	Result string          `json:"result"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Deliverable reports whether the address is safe enough to mail.
func (v *Verification) Deliverable() bool {
	switch v.Result {
	case ResultDeliverable, ResultRisky, ResultOK:
		return true
	}
	return false
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("verifier: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (5 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy for transient provider failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	http    *http.Client
}

// NewClient creates a new email verification client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(5, 5),
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Verify(ctx context.Context, email string) (*Verification, error) {
	if email == "" {
		return nil, eris.New("verifier: empty email")
	}

	cfg := c.retry
	cfg.ShouldRetry = retryableError
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("verifier", "verify")
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Verification, error) {
		return c.verifyOnce(ctx, email)
	})
}

// retryableError treats provider 5xx/429 responses and transport failures as
// transient.
func retryableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func (c *httpClient) verifyOnce(ctx context.Context, email string) (*Verification, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "verifier: rate limit")
		}
	}

	q := url.Values{}
	q.Set("api", c.apiKey)
	q.Set("email", email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "verifier: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("verifier: verify %s", email))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "verifier: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "verifier: decode response")
	}
	if parsed.Result == "" {
		parsed.Result = ResultUnknown
	}

	return &Verification{
		Email:  email,
		Result: parsed.Result,
		Raw:    json.RawMessage(body),
	}, nil
}
