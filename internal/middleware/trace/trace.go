package trace

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	applog "smartplates/internal/log"
)

type ContextKey string

const RequestIDKey ContextKey = "request_id"

// HeaderRequestID is echoed on every response and honoured on requests.
const HeaderRequestID = "X-Request-ID"

// Observer receives the outcome of every request.
type Observer interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Middleware assigns request ids, logs completion and reports to an Observer.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	observer  Observer
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string, observer Observer) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		observer:  observer,
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	structured := applog.NewStructuredLogger(m.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = applog.NewContext(ctx, m.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		structured.LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
		if m.observer != nil {
			m.observer.ObserveHTTP(r.Method, r.Pattern, rw.statusCode, elapsed)
		}
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

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
