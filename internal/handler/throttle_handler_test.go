package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DTADMI/velvet-galaxy-sub002/internal/ratelimit"
	"github.com/DTADMI/velvet-galaxy-sub002/internal/service"
)

// stubHealth reports a fixed per-dependency state.
type stubHealth struct {
	results map[string]error
}

func (s *stubHealth) HealthCheck(ctx context.Context) map[string]error {
	return s.results
}

func newTestServer(t *testing.T) *httptest.Server {
	return newTestServerWithHealth(t, &stubHealth{results: map[string]error{
		"record_store": nil,
		"limiter":      nil,
	}})
}

func newTestServerWithHealth(t *testing.T, health DependencyHealth) *httptest.Server {
	t.Helper()

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), zap.NewNop())
	svc := service.NewThrottleService(limiter, nil, 0, zap.NewNop())
	t.Cleanup(svc.Close)

	h := NewThrottleHandler(svc, zap.NewNop())
	hh := NewHealthHandler(health, zap.NewNop())
	srv := httptest.NewServer(NewRouter(h, hh, zap.NewNop(), false))
	t.Cleanup(srv.Close)
	return srv
}

func postCheck(t *testing.T, srv *httptest.Server, userID, action string) (*http.Response, Response) {
	t.Helper()

	body, err := json.Marshal(CheckRequest{UserID: userID, Action: action})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/throttle/check", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func checkData(t *testing.T, envelope Response) CheckResponse {
	t.Helper()

	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var data CheckResponse
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestCheckEndpointAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := postCheck(t, srv, "u1", "post_create")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, envelope.Success)

	data := checkData(t, envelope)
	assert.True(t, data.Allowed)
	assert.Equal(t, 9, data.Remaining)
	assert.False(t, data.ResetAt.IsZero())
}

func TestCheckEndpointDeniedIs429(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp, _ := postCheck(t, srv, "u1", "auth_signup")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, envelope := postCheck(t, srv, "u1", "auth_signup")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Contains(t, envelope.Message, "rate limit exceeded")

	data := checkData(t, envelope)
	assert.False(t, data.Allowed)
	assert.Equal(t, 0, data.Remaining)
}

func TestCheckEndpointUnknownActionAllowed(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 100; i++ {
		resp, envelope := postCheck(t, srv, "u1", "event_rsvp")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data := checkData(t, envelope)
		require.True(t, data.Allowed)
		require.Equal(t, ratelimit.UnlimitedRemaining, data.Remaining)
	}
}

func TestCheckEndpointValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, envelope := postCheck(t, srv, "", "like")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, envelope.Success)

	resp, _ = postCheck(t, srv, "u1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckEndpointMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/throttle/check", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCleanupEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/throttle/cleanup", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, "cleanup completed", envelope.Message)
}

func TestLimitsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/throttle/limits")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var entries []LimitEntry
	require.NoError(t, json.Unmarshal(raw, &entries))

	require.Len(t, entries, 7)
	byAction := make(map[string]LimitEntry, len(entries))
	for _, e := range entries {
		byAction[e.Action] = e
	}
	assert.Equal(t, 50, byAction["like"].MaxRequests)
	assert.Equal(t, int64(60000), byAction["like"].WindowMs)
	assert.Equal(t, 3, byAction["auth_signup"].MaxRequests)
	assert.Equal(t, int64(3600000), byAction["auth_signup"].WindowMs)
}

func getHealth(t *testing.T, srv *httptest.Server) (*http.Response, HealthResponse) {
	t.Helper()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestHealthEndpointHealthy(t *testing.T) {
	srv := newTestServer(t)

	resp, body := getHealth(t, srv)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Dependencies["record_store"])
}

func TestHealthEndpointDegradedOnAdvisoryFailure(t *testing.T) {
	srv := newTestServerWithHealth(t, &stubHealth{results: map[string]error{
		"scylla":       nil,
		"record_store": nil,
		"limiter":      nil,
		"kafka":        errors.New("dial tcp: connection refused"),
		"clickhouse":   errors.New("ping failed"),
	}})

	resp, body := getHealth(t, srv)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Dependencies["scylla"])
	assert.Contains(t, body.Dependencies["kafka"], "connection refused")
}

func TestHealthEndpointUnhealthyOnStoreFailure(t *testing.T) {
	srv := newTestServerWithHealth(t, &stubHealth{results: map[string]error{
		"scylla":       errors.New("no hosts available"),
		"record_store": nil,
		"limiter":      nil,
		"kafka":        errors.New("dial tcp: connection refused"),
	}})

	resp, body := getHealth(t, srv)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Dependencies["scylla"], "no hosts available")
}

func TestUnknownRouteIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/nope", srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
