package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"famfin/internal/log"

	"github.com/google/uuid"
)

// HeaderRequestID is read from incoming requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware assigns request ids, logs completed requests and keeps counters.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.StructuredLogger
	metrics   metrics
}

type metrics struct {
	total       atomic.Int64
	clientErrs  atomic.Int64
	serverErrs  atomic.Int64
	durationSum atomic.Int64
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests     int64 `json:"total_requests"`
	ClientErrors      int64 `json:"client_errors"`
	ServerErrors      int64 `json:"server_errors"`
	AverageDurationUS int64 `json:"average_duration_us"`
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    log.NewStructuredLogger(logger.WithComponent(log.ComponentTrace)),
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		m.metrics.total.Add(1)
		m.metrics.durationSum.Add(elapsed.Microseconds())
		switch {
		case rw.statusCode >= 500:
			m.metrics.serverErrs.Add(1)
		case rw.statusCode >= 400:
			m.metrics.clientErrs.Add(1)
		}

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		m.logger.LogHTTPEnd(ctx, r, requestID, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestIDFromRequest is GetRequestID for log.Middleware.
func RequestIDFromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	out := Metrics{
		TotalRequests: m.metrics.total.Load(),
		ClientErrors:  m.metrics.clientErrs.Load(),
		ServerErrors:  m.metrics.serverErrs.Load(),
	}
	if out.TotalRequests > 0 {
		out.AverageDurationUS = m.metrics.durationSum.Load() / out.TotalRequests
	}
	return out
}
