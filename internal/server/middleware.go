package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	verrors "github.com/matzehuels/viewgraph/pkg/errors"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

// Middlewares defines the default middleware chain, outermost first.
func Middlewares(s *Server) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// RequestID must run first so every later log line carries the id.
		RequestID(s.logger),
		s.instrument,
		s.recoverer,
	}
}

// RequestID assigns each request an id, reusing a well-formed incoming
// X-Request-ID, and attaches a logger carrying it to the context.
func RequestID(base *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			ctx = context.WithValue(ctx, loggerKey, base.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext returns the id assigned by [RequestID].
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func loggerFromRequest(r *http.Request, fallback *log.Logger) *log.Logger {
	if l, ok := r.Context().Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return fallback
}

// instrument logs one line per request and records HTTP metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		s.metrics.OnRequest(r.Context(), r.Method, r.Host, r.URL.Path)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		duration := time.Since(start)
		if status == 0 {
			// Abandoned request: nothing was written.
			s.metrics.OnError(r.Context(), r.Method, r.Host, route, r.Context().Err())
		} else {
			s.metrics.OnResponse(r.Context(), r.Method, r.Host, route, status, duration)
		}

		loggerFromRequest(r, s.logger).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", duration.Round(time.Microsecond))
	})
}

// recoverer turns a handler panic into a 500 response. The server keeps
// serving other requests.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			loggerFromRequest(r, s.logger).Error("panic in handler",
				"panic", rec,
				"stack", string(debug.Stack()))
			s.writeError(w, r, verrors.New(verrors.ErrCodeInternal, "%s", fmt.Sprint(rec)))
		}()
		next.ServeHTTP(w, r)
	})
}

// routePattern returns the matched chi pattern, keeping metric label
// cardinality bounded for unknown paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
