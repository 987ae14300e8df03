package observability

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	otelmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperiot_assistant_http_requests_total",
			Help: "Total requests by service, endpoint, method, and status.",
		},
		[]string{"service", "endpoint", "method", "status"},
	)
	toolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperiot_assistant_tool_calls_total",
			Help: "Tool and hook invocations by name and outcome.",
		},
		[]string{"tool", "outcome"},
	)
	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperiot_upstream_requests_total",
			Help: "Requests sent to the HyperIoT platform by operation and status.",
		},
		[]string{"op", "status"},
	)
	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperiot_upstream_request_duration_seconds",
			Help:    "Latency of requests sent to the HyperIoT platform.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(requestCounter, toolCalls, upstreamRequests, upstreamLatency)
}

// ObserveToolCall counts one tool or hook invocation.
func ObserveToolCall(tool, outcome string) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
}

// ObserveUpstream records one request to the HyperIoT platform.
func ObserveUpstream(op, status string, elapsed time.Duration) {
	upstreamRequests.WithLabelValues(op, status).Inc()
	upstreamLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetupObservability installs the global meter and tracer providers. Spans
// are exported over OTLP/HTTP only when otlpEndpoint is set.
func SetupObservability(serviceName, otlpEndpoint string) (shutdown func(), promHandler http.Handler, tracer oteltrace.Tracer, err error) {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	otel.SetTextMapPropagator(propagator)

	promExporter, err := otelprom.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	meterProvider := otelmetric.NewMeterProvider(otelmetric.WithReader(promExporter))
	otel.SetMeterProvider(meterProvider)

	res, err := resource.New(context.Background(), resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create otel resource: %w", err)
	}

	var tp *trace.TracerProvider
	if otlpEndpoint != "" {
		exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpointURL(otlpEndpoint))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		tp = trace.NewTracerProvider(trace.WithBatcher(exp), trace.WithResource(res))
	} else {
		tp = trace.NewTracerProvider(trace.WithResource(res))
	}
	otel.SetTracerProvider(tp)

	shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
	}
	return shutdown, promhttp.Handler(), otel.Tracer(serviceName), nil
}

func MetricsAndTracingMiddleware(tracer oteltrace.Tracer, serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			method := r.Method
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			ctx, span := tracer.Start(ctx, method+" "+r.URL.Path)
			span.SetAttributes(
				attribute.String("http.method", method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("service.name", serviceName),
			)
			if rid := middleware.GetReqID(ctx); rid != "" {
				span.SetAttributes(attribute.String("http.request_id", rid))
			}
			w.Header().Set("Trace-ID", span.SpanContext().TraceID().String())

			next.ServeHTTP(rw, r.WithContext(ctx))

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					endpoint = pattern
				}
			}
			span.SetAttributes(attribute.Int("http.status_code", rw.status))
			requestCounter.WithLabelValues(serviceName, endpoint, method, strconv.Itoa(rw.status)).Inc()
			span.End()
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
