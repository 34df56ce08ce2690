package verifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-crm/leadgen-cli/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-api-key", WithBaseURL(srv.URL), WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1}))
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name            string
		handler         http.HandlerFunc
		wantResult      string
		wantDeliverable bool
		wantErr         bool
	}{
		{
			name: "deliverable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v3/", r.URL.Path)
				assert.Equal(t, "test-api-key", r.URL.Query().Get("api"))
				assert.Equal(t, "info@clinic.es", r.URL.Query().Get("email"))
				w.Write([]byte(`{"email":"info@clinic.es","result":"deliverable","quality":"good"}`))
			},
			wantResult:      ResultDeliverable,
			wantDeliverable: true,
		},
		{
			name: "ok counts as deliverable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"ok"}`))
			},
			wantResult:      ResultOK,
			wantDeliverable: true,
		},
		{
			name: "risky counts as deliverable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"risky"}`))
			},
			wantResult:      ResultRisky,
			wantDeliverable: true,
		},
		{
			name: "undeliverable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"undeliverable"}`))
			},
			wantResult: ResultUndeliverable,
		},
		{
			name: "missing result becomes unknown",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"credits":0}`))
			},
			wantResult: ResultUnknown,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"boom"}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			got, err := c.Verify(context.Background(), "info@clinic.es")

			if tt.wantErr {
				require.Error(t, err)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "info@clinic.es", got.Email)
			assert.Equal(t, tt.wantResult, got.Result)
			assert.Equal(t, tt.wantDeliverable, got.Deliverable())
			assert.NotEmpty(t, got.Raw)
		})
	}
}

func TestVerify_EmptyEmail(t *testing.T) {
	c := NewClient("k")
	_, err := c.Verify(context.Background(), "")
	require.Error(t, err)
}

func TestVerify_RetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"result":"deliverable"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}))

	got, err := c.Verify(context.Background(), "info@clinic.es")
	require.NoError(t, err)
	assert.Equal(t, ResultDeliverable, got.Result)
	assert.Equal(t, 2, calls)
}

func TestVerify_DoesNotRetryClientError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}))

	_, err := c.Verify(context.Background(), "info@clinic.es")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
