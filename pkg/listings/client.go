// Package listings wraps the business-listings scraping provider: submit a
// search run, poll its status, fetch the resulting records.
package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/coeus-crm/leadgen-cli/internal/resilience"
)

// Default base URL for the listings provider API.
const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the provider.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Client defines the listings provider operations.
type Client interface {
	SubmitSearch(ctx context.Context, req SearchRequest) (*RunHandle, error)
	PollStatus(ctx context.Context, runID string) (*RunStatus, error)
	FetchResults(ctx context.Context, resultsID string) ([]map[string]any, error)
}

// SearchRequest describes a listings search to submit.
type SearchRequest struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// RunHandle identifies a submitted search run.
type RunHandle struct {
	ID string `json:"id"`
}

// RunStatus is the state of a submitted run. ResultsID is set once the run
// has succeeded.
type RunStatus struct {
	Status    string `json:"status"`
	ResultsID string `json:"resultsId,omitempty"`
}

// Terminal reports whether the status will not change with further polling.
func (s *RunStatus) Terminal() bool {
	return s.Status == StatusSucceeded || s.Status == StatusFailed
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("listings: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRetry overrides the retry policy for transient GET failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
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

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a new listings provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(5, 1),
		http: &http.Client{
			Timeout: 60 * time.Second,
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

func (c *httpClient) SubmitSearch(ctx context.Context, req SearchRequest) (*RunHandle, error) {
	var resp RunHandle
	if err := c.post(ctx, "/runs", req, &resp); err != nil {
		return nil, eris.Wrap(err, "listings: submit search")
	}
	return &resp, nil
}

func (c *httpClient) PollStatus(ctx context.Context, runID string) (*RunStatus, error) {
	var resp RunStatus
	if err := c.get(ctx, fmt.Sprintf("/runs/%s", runID), &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("listings: get run status %s", runID))
	}
	return &resp, nil
}

func (c *httpClient) FetchResults(ctx context.Context, resultsID string) ([]map[string]any, error) {
	var records []map[string]any
	if err := c.get(ctx, fmt.Sprintf("/datasets/%s/items", resultsID), &records); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("listings: fetch results %s", resultsID))
	}
	return records, nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

// get retries transient failures; GET endpoints are idempotent. Submission
// goes through post exactly once so a run is never created twice.
func (c *httpClient) get(ctx context.Context, path string, out any) error {
	cfg := c.retry
	cfg.ShouldRetry = retryableError
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("listings", "get")
	}
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return eris.Wrap(err, "create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		return c.do(req, out)
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

func (c *httpClient) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
