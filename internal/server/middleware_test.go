package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poe2openai/internal/admission"
	"poe2openai/internal/config"
	"poe2openai/internal/core"
	"poe2openai/internal/metrics"

	"github.com/gin-gonic/gin"
)

func newTestServerForMiddleware(cfg config.ServerConfig) *Server {
	gin.SetMode(gin.TestMode)
	return &Server{
		config:    cfg,
		logger:    &core.NopLogger{},
		gate:      admission.New(),
		collector: metrics.NewCollector(),
	}
}

func TestCorsMiddleware_SetsHeaders(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handler := s.corsMiddleware()
	handler(c)
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected Access-Control-Allow-Origin '*', got '%s'", origin)
	}
	if c.IsAborted() {
		t.Error("GET should not abort")
	}
}

func TestCorsMiddleware_ConfiguredOrigin(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{CORSAllowOrigin: "https://chat.example.com"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	s.corsMiddleware()(c)
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "https://chat.example.com" {
		t.Errorf("expected configured origin, got '%s'", origin)
	}
}

func TestCorsMiddleware_OptionsRequest(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	handler := s.corsMiddleware()
	handler(c)
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS should return 204, got %d", w.Code)
	}
	if !c.IsAborted() {
		t.Error("OPTIONS should abort (skip handler)")
	}
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	s.requestIDMiddleware()(c)

	id := c.GetString(ctxKeyRequestID)
	if id == "" {
		t.Fatal("request id should be generated")
	}
	if got := w.Header().Get(core.HeaderRequestID); got != id {
		t.Errorf("response header should echo generated id, got %q want %q", got, id)
	}
}

func TestRequestIDMiddleware_KeepsClientID(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	c.Request.Header.Set(core.HeaderRequestID, "client-req-1")
	s.requestIDMiddleware()(c)

	if id := c.GetString(ctxKeyRequestID); id != "client-req-1" {
		t.Errorf("client request id should be kept, got %q", id)
	}
}

func TestAdmissionMiddleware_DelaysSecondRequest(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{RateLimit: 80 * time.Millisecond})

	run := func() *gin.Context {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
		s.admissionMiddleware()(c)
		return c
	}

	if c := run(); c.IsAborted() {
		t.Fatal("first request should be admitted")
	}

	start := time.Now()
	if c := run(); c.IsAborted() {
		t.Fatal("second request should be delayed, not rejected")
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("second request should wait for the interval, waited %s", elapsed)
	}
}

func TestAdmissionMiddleware_CancelledWhileWaiting(t *testing.T) {
	s := newTestServerForMiddleware(config.ServerConfig{RateLimit: time.Second})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	s.admissionMiddleware()(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil).WithContext(ctx)
	s.admissionMiddleware()(c)

	if !c.IsAborted() {
		t.Fatal("cancelled request should abort")
	}
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("cancelled request should return 503, got %d", w.Code)
	}
}

func TestMaxBodySize_ChatRejectsOversizedBody(t *testing.T) {
	poe := newFakePoe(t)
	server := newTestServerWith(t, poe, "api_token: pk-test\n", func(cfg *config.ServerConfig) {
		cfg.MaxRequestSize = 64
	})

	body := `{"model":"gpt-4o","messages":[{"role":"user","content":"` + strings.Repeat("x", 256) + `"}]}`
	w := serve(server, http.MethodPost, "/v1/chat/completions", strings.NewReader(body), map[string]string{"Content-Type": "application/json"})

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body should return 413, got %d: %s", w.Code, w.Body.String())
	}
	if poe.chatCalls.Load() != 0 {
		t.Error("oversized body should not reach upstream")
	}
}

func TestIsTrackedRoute(t *testing.T) {
	tests := []struct {
		route string
		want  bool
	}{
		{core.PathV1Models, true},
		{core.PathModels, true},
		{core.PathRawModels, true},
		{"/v1/chat/completions", true},
		{"/chat/completions", true},
		{"/health", false},
		{"/metrics", false},
		{"unmatched", false},
	}
	for _, tt := range tests {
		if got := isTrackedRoute(tt.route); got != tt.want {
			t.Errorf("isTrackedRoute(%q) = %v, want %v", tt.route, got, tt.want)
		}
	}
}
