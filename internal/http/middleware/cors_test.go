package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
		wantHandler bool
	}{
		{"listed origin", []string{"https://portal.example"}, http.MethodGet, "https://portal.example", false, "https://portal.example", http.StatusOK, true},
		{"listed with trailing slash", []string{"https://portal.example/"}, http.MethodGet, "https://portal.example", false, "https://portal.example", http.StatusOK, true},
		{"unknown origin", []string{"https://portal.example"}, http.MethodGet, "https://evil.example", false, "", http.StatusOK, true},
		{"wildcard", []string{"*"}, http.MethodGet, "https://any.example", false, "https://any.example", http.StatusOK, true},
		{"no origin", []string{"*"}, http.MethodGet, "", false, "", http.StatusOK, true},
		{"preflight", []string{"https://portal.example"}, http.MethodOptions, "https://portal.example", true, "https://portal.example", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			req := httptest.NewRequest(tt.method, "/doctors/doc-1/availability", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler(&called)).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if called != tt.wantHandler {
				t.Fatalf("handler called = %v, want %v", called, tt.wantHandler)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("expected allow origin %q, got %q", tt.wantOrigin, got)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Expose-Headers") == "" {
				t.Fatalf("expected exposed headers")
			}
		})
	}
}
