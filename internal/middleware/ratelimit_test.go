package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestLimiterHandler(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, http.Handler) {
	t.Helper()
	rl := NewRateLimiter(cfg)
	t.Cleanup(rl.Stop)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return rl, handler
}

func requestFrom(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	_, handler := newTestLimiterHandler(t, RateLimiterConfig{
		Rate:    2,
		Burst:   5,
		IdleTTL: time.Minute,
	})

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		if w := requestFrom(handler, "198.51.100.1:1000"); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WhenLimitExceeded(t *testing.T) {
	_, handler := newTestLimiterHandler(t, RateLimiterConfig{
		Rate:    1,
		Burst:   2,
		IdleTTL: time.Minute,
	})

	for i := 0; i < 2; i++ {
		requestFrom(handler, "198.51.100.2:1000")
	}

	w := requestFrom(handler, "198.51.100.2:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	retrySeconds, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retrySeconds < 1 {
		t.Errorf("Retry-After = %q, want a positive number of seconds", w.Header().Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != "RATE_LIMITED" || body.Category != "system" {
		t.Errorf("body = %+v, want RATE_LIMITED/system", body)
	}
}

func TestRateLimitMiddleware_IsolatesClientIPs(t *testing.T) {
	rl, handler := newTestLimiterHandler(t, RateLimiterConfig{
		Rate:    1,
		Burst:   1,
		IdleTTL: time.Minute,
	})

	if w := requestFrom(handler, "198.51.100.3:1000"); w.Code != http.StatusOK {
		t.Errorf("client A first: status = %d", w.Code)
	}
	// 同じIPは別ポートからでも同じリミッターを使う
	if w := requestFrom(handler, "198.51.100.3:2000"); w.Code != http.StatusTooManyRequests {
		t.Errorf("client A second: status = %d, want 429", w.Code)
	}
	if w := requestFrom(handler, "198.51.100.4:1000"); w.Code != http.StatusOK {
		t.Errorf("client B: status = %d, want 200", w.Code)
	}
	if rl.Clients() != 2 {
		t.Errorf("Clients() = %d, want 2", rl.Clients())
	}
}

func TestRateLimiter_SweepRemovesIdleClients(t *testing.T) {
	rl, handler := newTestLimiterHandler(t, RateLimiterConfig{
		Rate:    1,
		Burst:   1,
		IdleTTL: time.Hour,
	})

	requestFrom(handler, "198.51.100.5:1000")
	requestFrom(handler, "198.51.100.6:1000")

	// 片方の最終アクセス時刻を期限切れにする
	rl.mu.Lock()
	rl.visitors["198.51.100.5"].seen = time.Now().Add(-2 * time.Hour)
	rl.mu.Unlock()

	rl.sweep()

	if rl.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", rl.Clients())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120)
	if cfg.Rate != rate.Limit(2) {
		t.Errorf("Rate = %v, want 2", cfg.Rate)
	}
	if cfg.Burst != 120 {
		t.Errorf("Burst = %d, want 120", cfg.Burst)
	}

	if got := RateLimiterConfigPerMinute(0); got.Burst != 1 {
		t.Errorf("0以下は1に丸める: Burst = %d", got.Burst)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{0, "1"},
		{300 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{30 * time.Second, "30"},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.wait); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %q, want %q", tt.wait, got, tt.want)
		}
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfigPerMinute(60))
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
