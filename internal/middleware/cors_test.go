package middleware

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func serveCORS(t *testing.T, allowed, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	handler := NewCORSMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/articles", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called
}

func TestCORSMiddleware_許可オリジン(t *testing.T) {
	w, called := serveCORS(t, "http://localhost:3000", http.MethodGet, "http://localhost:3000", false)

	if !called {
		t.Error("next handler should be called for GET request")
	}
	// 公開APIのためcredentialsは許可しない
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want empty", got)
	}
	if got := w.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}

	tests := []struct {
		header string
		want   string
	}{
		{"Access-Control-Allow-Origin", "http://localhost:3000"},
		{"Access-Control-Allow-Methods", "GET, OPTIONS"},
		{"Access-Control-Allow-Headers", "Content-Type"},
		{"Access-Control-Max-Age", "86400"},
	}
	for _, tt := range tests {
		if got := w.Header().Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestCORSMiddleware_複数オリジンから一致したものを返す(t *testing.T) {
	w, _ := serveCORS(t, "https://shop.example.com, https://admin.example.com/", http.MethodGet, "https://admin.example.com", false)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "https://admin.example.com")
	}
}

func TestCORSMiddleware_未許可オリジンにはヘッダーを付けない(t *testing.T) {
	w, called := serveCORS(t, "https://shop.example.com", http.MethodGet, "https://evil.example", false)

	if !called {
		t.Error("non-CORS handling should still pass the request through")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestCORSMiddleware_ワイルドカード(t *testing.T) {
	w, _ := serveCORS(t, "*", http.MethodGet, "https://anywhere.example", false)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCORSMiddleware_プリフライトは204(t *testing.T) {
	w, called := serveCORS(t, "http://localhost:3000", http.MethodOptions, "http://localhost:3000", true)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if called {
		t.Error("next handler should not be called for OPTIONS preflight")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestCORSMiddleware_プリフライトでないOPTIONSは通す(t *testing.T) {
	_, called := serveCORS(t, "http://localhost:3000", http.MethodOptions, "", false)

	if !called {
		t.Error("plain OPTIONS without Access-Control-Request-Method should reach the router")
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	got := ParseAllowedOrigins(" https://a.example/ ,, https://b.example ")
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseAllowedOrigins = %v, want %v", got, want)
	}
	if got := ParseAllowedOrigins(""); got != nil {
		t.Errorf("ParseAllowedOrigins(\"\") = %v, want nil", got)
	}
}
