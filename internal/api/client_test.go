package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/pkg/core"
)

func newTestClient(url string, maxFailures uint32) *Client {
	return New(config.APIConfig{
		ServerURL: url,
		APIKey:    "secret123",
		Timeout:   2 * time.Second,
		Breaker:   config.BreakerConfig{MaxFailures: maxFailures, OpenTimeout: time.Minute},
	}, nil)
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := newTestClient("http://localhost:3000/", 0)
	assert.Equal(t, "http://localhost:3000", c.baseURL)
	assert.Equal(t, "secret123", c.apiKey)
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}

func TestNew_DefaultTimeout(t *testing.T) {
	c := New(config.APIConfig{ServerURL: "http://localhost:3000"}, nil)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		assert.Equal(t, "Bearer secret123", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	require.NoError(t, newTestClient(server.URL, 0).Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient(url, 0).Healthcheck(context.Background())
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestStatusError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"bad request", http.StatusBadRequest, `{"error":"lat out of range","field":"lat"}`, core.ErrValidation},
		{"unprocessable", http.StatusUnprocessableEntity, ``, core.ErrValidation},
		{"not found", http.StatusNotFound, `{"error":"no such file"}`, core.ErrNotFound},
		{"conflict", http.StatusConflict, `{"children":[4,5]}`, core.ErrConflict},
		{"server error", http.StatusInternalServerError, `oops`, core.ErrTransport},
		{"bad gateway", http.StatusBadGateway, ``, core.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := statusError("op", tt.status, []byte(tt.body), 7)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestStatusError_Details(t *testing.T) {
	var ve *core.ValidationError
	require.True(t, errors.As(statusError("op", http.StatusBadRequest, []byte(`{"error":"out of range","field":"lat","value":"91"}`), 0), &ve))
	assert.Equal(t, "lat", ve.Field)
	assert.Equal(t, "91", ve.Value)
	assert.Equal(t, "out of range", ve.Reason)

	var ce *core.ConflictError
	require.True(t, errors.As(statusError("op", http.StatusConflict, []byte(`{"children":[4,5]}`), 3), &ce))
	assert.Equal(t, uint(3), ce.ID)
	assert.Equal(t, []uint{4, 5}, ce.Children)
}

func TestBreaker_OpensAfterTransportFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, c.Healthcheck(ctx), core.ErrTransport)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	err := c.Healthcheck(ctx)
	assert.ErrorIs(t, err, core.ErrTransport)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestBreaker_IgnoresDomainErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, c.Healthcheck(context.Background()), core.ErrValidation)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}
