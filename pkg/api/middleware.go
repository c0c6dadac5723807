package api

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"money-ledger/pkg/logging"

	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// httpMetrics counts requests per route template.
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(namespace string) *httpMetrics {
	return &httpMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (m *httpMetrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(srw, r)

		endpoint := getEndpoint(r)
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(srw.statusCode)).Inc()
		m.duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// statusResponseWriter captures the status code
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// getEndpoint returns the route template so ids don't explode label cardinality.
func getEndpoint(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return tpl
}

type ownerKey struct{}

// ownerFrom returns the owner id stored by requireOwner.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + OwnerHeader + " header", Kind: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, owner)
		ctx = logging.WithContext(ctx, s.logger.ForOwner(owner))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(ownerFrom(r.Context())) {
			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.retryAfter()))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiterIdle is how long an owner's bucket survives without requests.
const limiterIdle = 10 * time.Minute

// ownerLimiter keeps one token bucket per owner, evicting idle ones.
type ownerLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *gocache.Cache
}

func newOwnerLimiter(limit rate.Limit, burst int) *ownerLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(float64(limit))))
	}
	return &ownerLimiter{
		limit:    limit,
		burst:    burst,
		limiters: gocache.New(limiterIdle, limiterIdle),
	}
}

func (l *ownerLimiter) allow(owner string) bool {
	if l.limit <= 0 {
		return true
	}
	return l.get(owner).Allow()
}

func (l *ownerLimiter) get(owner string) *rate.Limiter {
	if v, ok := l.limiters.Get(owner); ok {
		lim := v.(*rate.Limiter)
		l.limiters.SetDefault(owner, lim)
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(owner, lim, gocache.DefaultExpiration); err != nil {
		// lost the race to another request for the same owner
		if v, ok := l.limiters.Get(owner); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// retryAfter is the whole seconds until one token refills.
func (l *ownerLimiter) retryAfter() int {
	if l.limit <= 0 {
		return 0
	}
	return int(math.Max(1, math.Ceil(1/float64(l.limit))))
}
