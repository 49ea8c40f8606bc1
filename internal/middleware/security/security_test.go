package security

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"famfin/internal/log"
)

func newDetector(buf *bytes.Buffer) *Detector {
	return NewDetector(log.New(log.Config{Output: buf}))
}

func TestInspect(t *testing.T) {
	d := newDetector(&bytes.Buffer{})
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/transactions?month=2024-06", "curl/8.0", false},
		{"path traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"sql in query", http.MethodGet, "/api/goals?q=1%20union%20select", "", true},
		{"plus encoded sql", http.MethodGet, "/api/goals?q=1+UNION+SELECT", "", true},
		{"encoded script tag", http.MethodGet, "/api/goals?q=%3Cscript%3Ealert(1)", "", true},
		{"encoded month", http.MethodGet, "/api/dashboard?month=2024%2D06", "", false},
		{"scanner agent", http.MethodGet, "/healthz", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/api/x?q=" + strings.Repeat("a", 2100), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.agent != "" {
				r.Header.Set("User-Agent", tt.agent)
			}
			if got := d.Inspect(r) != ""; got != tt.want {
				t.Errorf("Inspect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddlewareBlocks(t *testing.T) {
	var buf bytes.Buffer
	d := newDetector(&buf)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if m := d.GetMetrics(); m.BlockedRequests != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if !strings.Contains(buf.String(), "component=security") {
		t.Errorf("block not logged: %s", buf.String())
	}
}

func TestExtractClientIP(t *testing.T) {
	d := newDetector(&bytes.Buffer{})
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.9:5000", "", "", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.9:5000", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.7", "198.51.100.7"},
		{"trusted proxy garbage", "127.0.0.1:80", "nonsense", "", "127.0.0.1"},
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
				t.Errorf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}

	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected error for bad CIDR")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	for _, k := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
		if rec.Header().Get(k) == "" {
			t.Errorf("missing header %s", k)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	r.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}
