// Package middleware wraps API routes with request tracing, metrics, rate
// limiting, timeouts and bearer authentication.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
)

const HeaderRequestID = "X-Request-ID"

type Middleware func(http.Handler) http.Handler

// Chain wraps h so the first middleware runs first.
func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

type Verifier interface {
	Verify(token string) (*auth.Principal, error)
}

type RequestObserver interface {
	ObserveRequest(route string, code int, duration time.Duration)
}

type loggerKey struct{}

// Logger returns the request scoped logger, or fallback when there is none.
func Logger(ctx context.Context, fallback *log.Entry) *log.Entry {
	if l, ok := ctx.Value(loggerKey{}).(*log.Entry); ok {
		return l
	}
	return fallback
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) code() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(map[string]string{"message": msg})
}

// RequestID tags the request with an id, taken from the client when it sent
// one, and writes an access log line once it is served.
func RequestID(l *log.Entry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			rw.Header().Set(HeaderRequestID, id)
			rl := l.WithFields(log.Fields{"request_id": id, "method": r.Method, "path": r.URL.Path})
			rec := &statusRecorder{ResponseWriter: rw}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey{}, rl)))

			rl.WithFields(log.Fields{"status": rec.code(), "duration": time.Since(start)}).Info("request served")
		})
	}
}

// Metrics reports every request under the route pattern.
func Metrics(o RequestObserver, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: rw}
			start := time.Now()
			next.ServeHTTP(rec, r)
			o.ObserveRequest(route, rec.code(), time.Since(start))
		})
	}
}

// RateLimit rejects requests over the limiter budget with 429.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeError(rw, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// Timeout bounds the request context. Remote calls and copy polling stop
// when it expires.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(rw, r.WithContext(ctx))
		})
	}
}

// CheckAuth requires a valid bearer token and stores its principal in the
// request context.
func CheckAuth(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				writeError(rw, http.StatusUnauthorized, auth.ErrMissingToken.Error())
				return
			}
			p, err := v.Verify(strings.TrimSpace(token))
			if err != nil {
				Logger(r.Context(), log.NewEntry(log.StandardLogger())).WithError(err).Info("rejected token")
				writeError(rw, http.StatusUnauthorized, "you are not authorized for this action")
				return
			}
			next.ServeHTTP(rw, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
