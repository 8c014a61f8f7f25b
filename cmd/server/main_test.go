package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
	"subclipper/internal/handlers"
	"subclipper/internal/middleware"
	"subclipper/internal/models"
	"subclipper/internal/pipeline"
	"subclipper/internal/test"
)

type stubRunner struct {
	calls int
}

func (s *stubRunner) Run(ctx context.Context, caller *models.User, in pipeline.Input) (*pipeline.Result, error) {
	s.calls++
	return &pipeline.Result{SubClipID: 1}, nil
}

func newTestRouter(runner *stubRunner) http.Handler {
	h := handlers.New(runner, "https://api.example", "https://site.example")
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(0), 1)
	return newRouter(h, limiter, "https://app.example, https://web.telegram.org")
}

func TestHealthRoute(t *testing.T) {
	test.NewMockDB(t)
	rr := httptest.NewRecorder()
	newTestRouter(&stubRunner{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSubClipRoutesRequireAuth(t *testing.T) {
	runner := &stubRunner{}
	router := newTestRouter(runner)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/api/subclips", strings.NewReader(`{}`))
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, method)
	}
	assert.Equal(t, 0, runner.calls)
}

func TestCORSPreflight(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/subclips", nil)
	req.Header.Set("Origin", "https://web.telegram.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	newTestRouter(&stubRunner{}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://web.telegram.org", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitOrigins(" https://a.example,,https://b.example "))
	assert.Nil(t, splitOrigins(""))
}
