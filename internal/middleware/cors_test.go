package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		method         string
		wantStatus     int
		wantHeader     string
	}{
		{
			name:          "no origins configured blocks all",
			requestOrigin: "https://hr.example.com",
			method:        http.MethodGet,
			wantStatus:    http.StatusOK,
		},
		{
			name:           "allowed origin gets header",
			allowedOrigins: []string{"https://hr.example.com"},
			requestOrigin:  "https://hr.example.com",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://hr.example.com",
		},
		{
			name:           "disallowed origin blocked on preflight",
			allowedOrigins: []string{"https://hr.example.com"},
			requestOrigin:  "https://evil.com",
			method:         http.MethodOptions,
			wantStatus:     http.StatusForbidden,
		},
		{
			name:           "preflight returns no content",
			allowedOrigins: []string{"https://hr.example.com"},
			requestOrigin:  "https://hr.example.com",
			method:         http.MethodOptions,
			wantStatus:     http.StatusNoContent,
			wantHeader:     "https://hr.example.com",
		},
		{
			name:           "case insensitive origin match",
			allowedOrigins: []string{"HTTPS://HR.EXAMPLE.COM"},
			requestOrigin:  "https://hr.example.com",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://hr.example.com",
		},
		{
			name:           "subdomain pattern matches",
			allowedOrigins: []string{"*.example.com"},
			requestOrigin:  "https://payroll.example.com",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
			wantHeader:     "https://payroll.example.com",
		},
		{
			name:           "subdomain pattern rejects lookalike",
			allowedOrigins: []string{"*.example.com"},
			requestOrigin:  "https://notexample.com",
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
		},
		{
			name:           "no origin header skips CORS",
			allowedOrigins: []string{"https://hr.example.com"},
			method:         http.MethodGet,
			wantStatus:     http.StatusOK,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := CORS(DefaultCORSConfig(tt.allowedOrigins))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/attendance", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}
}

func TestCORSPreflightHeaders(t *testing.T) {
	t.Parallel()

	handler := CORS(DefaultCORSConfig([]string{"https://hr.example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/attendance/by-date", nil)
	req.Header.Set("Origin", "https://hr.example.com")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Access-Control-Allow-Headers not set on preflight")
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("credentials must never be allowed, got %q", got)
	}
}
