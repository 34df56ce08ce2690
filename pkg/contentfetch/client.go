// Package contentfetch extracts readable text from a business website via a
// reader-proxy API. It fetches a bounded set of pages per site, favoring the
// pages most likely to carry contact information.
package contentfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Default base URL for the reader proxy.
const defaultBaseURL = "https://r.jina.ai"

// defaultMaxPages bounds a FetchPages call when the caller passes 0.
const defaultMaxPages = 3

// Sub-paths tried after the landing page, in priority order. Contact-like
// pages first since they are the reason the site is being fetched at all.
var candidatePaths = []string{
	"/contacto",
	"/contact",
	"/quienes-somos",
	"/sobre-nosotros",
	"/about",
	"/equipo",
	"/team",
}

// Client defines the content fetch operations.
type Client interface {
	// FetchPages returns the extracted text of up to maxPages pages of the
	// site, landing page first. Individual page failures are skipped; an
	// error is returned only when no page could be fetched.
	FetchPages(ctx context.Context, siteURL string, maxPages int) ([]string, error)
}

// readResponse is the reader proxy's JSON envelope.
type readResponse struct {
	Code int `json:"code"`
	Data struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"data"`
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default reader proxy URL.
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

// WithMaxPages overrides the page cap applied when FetchPages is called
// with maxPages <= 0.
func WithMaxPages(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithRateLimit overrides the default request rate (2 req/s).
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
	apiKey   string
	baseURL  string
	maxPages int
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a new content fetch client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		maxPages: defaultMaxPages,
		limiter:  rate.NewLimiter(2, 1),
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

func (c *httpClient) FetchPages(ctx context.Context, siteURL string, maxPages int) ([]string, error) {
	if siteURL == "" {
		return nil, eris.New("contentfetch: empty site URL")
	}
	if maxPages <= 0 {
		maxPages = c.maxPages
	}

	base := strings.TrimRight(siteURL, "/")
	targets := make([]string, 0, len(candidatePaths)+1)
	targets = append(targets, base)
	for _, p := range candidatePaths {
		targets = append(targets, base+p)
	}

	var texts []string
	var lastErr error
	for _, target := range targets {
		if len(texts) >= maxPages {
			break
		}
		if ctx.Err() != nil {
			break
		}

		text, err := c.readPage(ctx, target)
		if err != nil {
			lastErr = err
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		texts = append(texts, text)
	}

	if len(texts) == 0 {
		if lastErr != nil {
			return nil, eris.Wrap(lastErr, fmt.Sprintf("contentfetch: fetch %s", siteURL))
		}
		return nil, eris.Errorf("contentfetch: no readable content at %s", siteURL)
	}
	return texts, nil
}

func (c *httpClient) readPage(ctx context.Context, pageURL string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+pageURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", "markdown")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var parsed readResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "decode response")
	}
	return parsed.Data.Content, nil
}
