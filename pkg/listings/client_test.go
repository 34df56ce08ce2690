package listings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/coeus-crm/leadgen-cli/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL), WithRateLimit(1000))
	return srv, c
}

func TestSubmitSearch(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantID     string
		wantErr    bool
		wantAPIErr bool
		wantStatus int
	}{
		{
			name: "happy path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/runs", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req SearchRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "dentista", req.Query)
				assert.Equal(t, "Madrid, ES", req.Location)
				assert.Equal(t, 50, req.Limit)

				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(RunHandle{ID: "run-123"})
			},
			wantID: "run-123",
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Unauthorized"}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 401,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.SubmitSearch(context.Background(), SearchRequest{
				Query:    "dentista",
				Location: "Madrid, ES",
				Limit:    50,
			})

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantAPIErr {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, resp.ID)
		})
	}
}

func TestPollStatus(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		wantStatus   string
		wantResults  string
		wantTerminal bool
		wantErr      bool
	}{
		{
			name: "succeeded",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/runs/run-123", r.URL.Path)
				json.NewEncoder(w).Encode(RunStatus{Status: StatusSucceeded, ResultsID: "ds-9"})
			},
			wantStatus:   StatusSucceeded,
			wantResults:  "ds-9",
			wantTerminal: true,
		},
		{
			name: "still running",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(RunStatus{Status: StatusRunning})
			},
			wantStatus: StatusRunning,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"run not found"}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			status, err := c.PollStatus(context.Background(), "run-123")

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantResults, status.ResultsID)
			assert.Equal(t, tt.wantTerminal, status.Terminal())
		})
	}
}

func TestFetchResults(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/datasets/ds-9/items", r.URL.Path)
		w.Write([]byte(`[
			{"title":"Clinica Dental Sol","phone":"+34 612 345 678","city":"Madrid"},
			{"title":"Fisioterapia Luna","website":"https://luna.es"}
		]`))
	})

	records, err := c.FetchResults(context.Background(), "ds-9")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Clinica Dental Sol", records[0]["title"])
	assert.Equal(t, "https://luna.es", records[1]["website"])
}

func TestFetchResults_RetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"title":"Clinica Dental Sol"}]`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("k", WithBaseURL(srv.URL),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}))

	records, err := c.FetchResults(context.Background(), "ds-9")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}

func TestWithRateLimit(t *testing.T) {
	c := NewClient("k").(*httpClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, rate.Limit(5), c.limiter.Limit())

	off := NewClient("k", WithRateLimit(0)).(*httpClient)
	assert.Nil(t, off.limiter)
}

func TestFetchResults_MalformedJSON(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"`))
	})

	_, err := c.FetchResults(context.Background(), "ds-bad")
	require.Error(t, err)
}
