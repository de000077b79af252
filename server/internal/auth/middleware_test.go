package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		key    string
		header string
		query  string
		want   int
	}{
		{"mode none passes", "none", "secret", "", "", http.StatusNoContent},
		{"empty key passes", "apikey", "", "", "", http.StatusNoContent},
		{"correct header", "apikey", "secret", "secret", "", http.StatusNoContent},
		{"correct query param", "apikey", "secret", "", "secret", http.StatusNoContent},
		{"wrong header", "apikey", "secret", "nope", "", http.StatusUnauthorized},
		{"missing key", "apikey", "secret", "", "", http.StatusUnauthorized},
		{"header wins over query", "apikey", "secret", "nope", "secret", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := APIKeyMiddleware(tc.mode, "x-api-key", tc.key)(okHandler())

			target := "/api/v1/health"
			if tc.query != "" {
				target += "?" + QueryParam + "=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("X-Api-Key", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status: got %d, want %d", rr.Code, tc.want)
			}
			if rr.Code == http.StatusUnauthorized {
				if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type: got %q, want application/json", ct)
				}
				if !strings.Contains(rr.Body.String(), `"error"`) {
					t.Errorf("body: got %q, want JSON error", rr.Body.String())
				}
			}
		})
	}
}

func TestAPIKeyMiddleware_CustomHeader(t *testing.T) {
	h := APIKeyMiddleware("apikey", "x-steward-token", "tok")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Steward-Token", "tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
}
