package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: request canceled while waiting" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"marked transient", NewTransientError(errors.New("503 from provider"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("boom"), 502), "verifier: verify"), true},
		{"network timeout", timeoutError{}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset by peer string", errors.New("read tcp: connection reset by peer"), true},
		{"dns failure string", errors.New("lookup api.example.es: no such host"), true},
		{"plain provider rejection", errors.New("email address invalid"), false},
		{"context canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("upstream down")
	te := NewTransientError(inner, 503)

	assert.Equal(t, "upstream down", te.Error())
	assert.True(t, errors.Is(te, inner))
	assert.Equal(t, 503, te.StatusCode)
}
