package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yangsenessa/univoice-dapp/pkg/logger"
)

const traceKey contextKey = "trace_id"

// Tracing tags every request with a trace id and logs its outcome.
type Tracing struct {
	log *logger.Logger
}

// NewTracing creates the tracing middleware.
func NewTracing(log *logger.Logger) *Tracing {
	if log == nil {
		log = logger.NewDefault("http")
	}
	return &Tracing{log: log}
}

// Handler threads the trace id through context, response header and the
// request log line.
func (t *Tracing) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), traceKey, traceID)
		w.Header().Set("X-Trace-ID", traceID)

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		t.log.WithFields(map[string]interface{}{
			"trace_id": traceID,
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.status,
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}

// TraceID returns the request's trace id, or empty.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey).(string); ok {
		return id
	}
	return ""
}
