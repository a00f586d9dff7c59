package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"guckelsberg/internal/metrics"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxRoom
)

// maxTrackedLimiters bounds the per-requester limiter table.
const maxTrackedLimiters = 10000

// statusRecorder captures the response code for metrics and access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// handle registers h under pattern with identity, rate limiting, metrics and access logging.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			metrics.IncHTTP(name, strconv.Itoa(rec.status))
			s.logger.Debug().
				Str("request_id", requestID(r.Context())).
				Str("handler", name).
				Int("status", rec.status).
				Dur("took", time.Since(start)).
				Msg("request")
		}()

		room := strings.TrimSpace(r.Header.Get(s.cfg.IdentityHeader))
		if room == "" {
			writeError(rec, http.StatusUnauthorized, "missing "+s.cfg.IdentityHeader+" header")
			return
		}
		if !s.limiter.allow(room) {
			writeError(rec, http.StatusTooManyRequests, "too many requests")
			return
		}
		h(rec, r.WithContext(context.WithValue(r.Context(), ctxRoom, room)))
	})
}

func (s *HTTPServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

// withAPIKey rejects requests without the shared key. An empty key disables the check.
func (s *HTTPServer) withAPIKey(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	want := []byte(s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("X-API-Key"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func roomFrom(r *http.Request) string {
	room, _ := r.Context().Value(ctxRoom).(string)
	return room
}

// limiterSet keeps one token bucket per requester.
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLimiterSet(perSecond float64, burst int) *limiterSet {
	if perSecond <= 0 {
		return &limiterSet{limit: rate.Inf}
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *limiterSet) allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedLimiters {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
