// Package outreach wraps the cold-email campaign provider: enroll a lead in
// a campaign sequence, pause and resume enrollments.
package outreach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the outreach provider API.
const defaultBaseURL = "https://api.instantly.ai/api/v2"

// Client defines the outreach provider operations.
type Client interface {
	Enroll(ctx context.Context, campaignID string, lead Lead, variables map[string]string) (*Enrollment, error)
	Pause(ctx context.Context, enrollmentID string) error
	Resume(ctx context.Context, enrollmentID string) error
}

// Lead is the minimal identity the provider needs to personalize a sequence.
type Lead struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// Enrollment is the provider handle for a lead inside a campaign.
type Enrollment struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Email      string `json:"email"`
	Simulated  bool   `json:"-"`
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("outreach: HTTP %d: %s", e.StatusCode, e.Body)
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

type httpClient struct {
	apiKey  string
	baseURL string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a new outreach provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(5, 5),
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

func (c *httpClient) Enroll(ctx context.Context, campaignID string, lead Lead, variables map[string]string) (*Enrollment, error) {
	if lead.Email == "" {
		return nil, eris.New("outreach: lead has no email")
	}

	body := struct {
		CampaignID  string            `json:"campaign_id"`
		Email       string            `json:"email"`
		FirstName   string            `json:"first_name,omitempty"`
		CompanyName string            `json:"company_name,omitempty"`
		Variables   map[string]string `json:"custom_variables,omitempty"`
	}{
		CampaignID:  campaignID,
		Email:       lead.Email,
		FirstName:   lead.FirstName,
		CompanyName: lead.CompanyName,
		Variables:   variables,
	}

	var resp Enrollment
	if err := c.post(ctx, "/leads", body, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("outreach: enroll %s in %s", lead.Email, campaignID))
	}
	return &resp, nil
}

func (c *httpClient) Pause(ctx context.Context, enrollmentID string) error {
	if err := c.post(ctx, fmt.Sprintf("/leads/%s/pause", enrollmentID), struct{}{}, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("outreach: pause %s", enrollmentID))
	}
	return nil
}

func (c *httpClient) Resume(ctx context.Context, enrollmentID string) error {
	if err := c.post(ctx, fmt.Sprintf("/leads/%s/resume", enrollmentID), struct{}{}, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("outreach: resume %s", enrollmentID))
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit")
		}
	}

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
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return eris.Wrap(err, "decode response")
		}
	}
	return nil
}
