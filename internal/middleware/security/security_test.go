package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing basic headers: %v", rec.Header())
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "https://unpkg.com") {
		t.Errorf("CSP should allow htmx: %q", rec.Header().Get("Content-Security-Policy"))
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Errorf("unexpected HSTS %q", rec.Header().Get("Strict-Transport-Security"))
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores XFF", "203.0.113.5:4000", "1.1.1.1", "", "203.0.113.5"},
		{"trusted proxy uses first XFF", "10.0.0.2:4000", "198.51.100.7, 10.0.0.2", "", "198.51.100.7"},
		{"trusted proxy falls back to X-Real-IP", "127.0.0.1:4000", "garbage", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy without headers", "192.168.1.1:80", "", "", "192.168.1.1"},
		{"unparseable remote", "pipe", "", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	flagged := 0
	d := NewDetector(func(*http.Request) { flagged++ })
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for _, path := range []string{"/.env", "/static/../../etc/passwd", "/wp-admin/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/calendar?year=2025&month=9", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("normal request rejected: %d", rec.Code)
	}
	if flagged != 3 {
		t.Errorf("expected 3 flagged requests, got %d", flagged)
	}
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("unexpected Cache-Control %q", rec.Header().Get("Cache-Control"))
	}
}
