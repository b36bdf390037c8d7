package httppresentation

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harborline/storefront/internal/pkg/logging"
)

// Metrics are the HTTP server vectors, constructed and registered in main
// and injected here so middleware never instantiates collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec   // http_requests_total{method,route,status}
	Durations *prometheus.HistogramVec // http_request_duration_seconds{method,route}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withTrace opens a server span for the request using OTel W3C propagation.
func withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("storefront.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := tracer.Start(parentCtx,
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAccessLog writes one access log line after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logging.FromContext(r.Context()).Info("http_access",
			zap.String("method", r.Method),
			zap.String("route", routePattern(r)),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if h.metrics == nil {
			return
		}
		route := routePattern(r)
		if h.metrics.Requests != nil {
			h.metrics.Requests.WithLabelValues(r.Method, route, strconv.Itoa(lrw.status)).Inc()
		}
		if h.metrics.Durations != nil {
			h.metrics.Durations.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		}
	})
}

// routePattern returns the chi route template for low-cardinality labels.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
