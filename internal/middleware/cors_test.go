package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(opts CORSOptions) (http.Handler, *bool) {
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return CORS(opts)(next), &reached
}

func TestCORSWildcardOrigin(t *testing.T) {
	h, _ := corsHandler(CORSOptions{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://widgets.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://widgets.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard match must not allow credentials")
	}
}

func TestCORSExplicitOriginAllowsCredentials(t *testing.T) {
	h, _ := corsHandler(CORSOptions{AllowedOrigins: []string{"https://chat.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://chat.example.com" {
		t.Errorf("expected origin echoed, got %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("explicit origin should allow credentials")
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	h, reached := corsHandler(CORSOptions{AllowedOrigins: []string{"https://chat.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin must not receive CORS headers")
	}
	if !*reached {
		t.Error("non-preflight request should still reach the handler")
	}
}

func TestCORSPreflightStopsAtMiddleware(t *testing.T) {
	h, reached := corsHandler(CORSOptions{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://widgets.example.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if *reached {
		t.Error("preflight request must not reach the handler")
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("unexpected allowed methods %q", got)
	}
}
