package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(5, time.Second)
	defer rl.close()

	for i := 0; i < 5; i++ {
		if !rl.allow("192.168.1.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if rl.allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}
	if !rl.allow("192.168.1.2") {
		t.Error("Request from different IP should be allowed")
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)
	defer rl.close()

	rl.allow("192.168.1.1")
	rl.allow("192.168.1.1")
	if rl.allow("192.168.1.1") {
		t.Error("Third request should be denied")
	}

	time.Sleep(110 * time.Millisecond)

	if !rl.allow("192.168.1.1") {
		t.Error("Request after window should be allowed")
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := newRateLimiter(2, time.Second)
	defer rl.close()

	rl.allow("10.0.0.1")
	rl.evictIdle(time.Now().Add(time.Hour))

	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("expected idle visitor to be evicted, have %d", n)
	}
}

func TestEndpointRateLimiter(t *testing.T) {
	erl := NewEndpointRateLimiter(EndpointRateLimitConfig{
		APIRate:      5,
		APIWindow:    time.Minute,
		UploadRate:   1,
		UploadWindow: time.Hour,
		WriteRate:    2,
		WriteWindow:  time.Minute,
	})
	defer erl.Close()

	handler := erl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	send := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	if w := send(http.MethodPost, "/upload_image"); w.Code != http.StatusOK {
		t.Fatalf("first upload: %d", w.Code)
	}
	w := send(http.MethodPost, "/upload_video")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload: expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit-Type"); got != "upload" {
		t.Errorf("limit type = %q, want upload", got)
	}
	if !strings.Contains(w.Body.String(), "rate limit exceeded") {
		t.Errorf("unexpected body %q", w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// reads still pass; two API requests were spent above
	if w := send(http.MethodGet, "/news"); w.Code != http.StatusOK {
		t.Errorf("read after upload limit: %d", w.Code)
	}
	if w := send(http.MethodDelete, "/news/0"); w.Code != http.StatusOK {
		t.Errorf("write: %d", w.Code)
	}
	// fifth API request, which also hits the write budget of 2
	if w := send(http.MethodPut, "/news/0"); w.Code != http.StatusOK {
		t.Errorf("second write: %d", w.Code)
	}
	// the API budget of 5 is now spent
	w = send(http.MethodGet, "/news")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("X-RateLimit-Limit-Type") != "api" {
		t.Errorf("expected api limit, got %d %q", w.Code, w.Header().Get("X-RateLimit-Limit-Type"))
	}
}

func TestLimitCategory(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/upload_video", "upload"},
		{http.MethodPost, "/upload_image", "upload"},
		{http.MethodGet, "/videos", "api"},
		{http.MethodHead, "/images/a.png", "api"},
		{http.MethodOptions, "/news", "api"},
		{http.MethodPost, "/news", "write"},
		{http.MethodDelete, "/delete_video/x", "write"},
		{http.MethodDelete, "/images/a.png", "write"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if got := limitCategory(req); got != tt.want {
			t.Errorf("%s %s = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		expected   string
	}{
		{"RemoteAddr only", "192.168.1.1:12345", "", "", "192.168.1.1"},
		{"IPv6 RemoteAddr", "[::1]:8000", "", "", "::1"},
		{"X-Forwarded-For single IP", "127.0.0.1:12345", "203.0.113.1", "", "203.0.113.1"},
		{"X-Forwarded-For multiple IPs", "127.0.0.1:12345", "203.0.113.1, 198.51.100.1", "", "203.0.113.1"},
		{"X-Real-IP", "127.0.0.1:12345", "", "203.0.113.5", "203.0.113.5"},
		{"X-Forwarded-For takes precedence", "127.0.0.1:12345", "203.0.113.1", "203.0.113.5", "203.0.113.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.expected {
				t.Errorf("got %q, expected %q", got, tt.expected)
			}
		})
	}
}
