package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace        = "htmlslim"
	promRouteSubsystem   = "route"
	promFilterSubsystem  = "filter"
	promBackendSubsystem = "backend"
	promServeSubsystem   = "serve"
	promCustomSubsystem  = "custom"
)

// Options for initializing the Prometheus metrics backend.
type Options struct {
	// Prefix overrides the default metric namespace.
	Prefix string

	// HistogramBuckets, when set, overrides the default histogram
	// buckets of the duration metrics.
	HistogramBuckets []float64

	// EnableRuntimeMetrics adds the Go runtime collector.
	EnableRuntimeMetrics bool
}

// Prometheus implements the Prometheus metrics backend.
type Prometheus struct {
	serveM           *prometheus.HistogramVec
	serveCounterM    *prometheus.CounterVec
	filterRequestM   *prometheus.HistogramVec
	filterResponseM  *prometheus.HistogramVec
	backendM         *prometheus.HistogramVec
	backendErrorsM   *prometheus.CounterVec
	routeErrorsM     prometheus.Counter
	customHistogramM *prometheus.HistogramVec
	customCounterM   *prometheus.CounterVec

	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metrics backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	if len(opts.HistogramBuckets) == 0 {
		opts.HistogramBuckets = prometheus.DefBuckets
	}

	serve := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of serving a request.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"route", "host", "method", "code"})

	serveCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promServeSubsystem,
		Name:      "requests_total",
		Help:      "The total of requests served.",
	}, []string{"route", "code"})

	filterRequest := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promFilterSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration in seconds of a filter on the request path.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"filter"})

	filterResponse := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promFilterSubsystem,
		Name:      "response_duration_seconds",
		Help:      "Duration in seconds of a filter on the response path.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"filter"})

	backend := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promBackendSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of a backend roundtrip.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"route"})

	backendErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promBackendSubsystem,
		Name:      "error_total",
		Help:      "The total of failed backend roundtrips.",
	}, []string{"route"})

	routeErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promRouteSubsystem,
		Name:      "error_total",
		Help:      "The total of requests without a matching route.",
	})

	customHistogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promCustomSubsystem,
		Name:      "duration_seconds",
		Help:      "Duration in seconds of custom measurements.",
		Buckets:   opts.HistogramBuckets,
	}, []string{"key"})

	customCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promCustomSubsystem,
		Name:      "total",
		Help:      "Total of the custom counters.",
	}, []string{"key"})

	p := &Prometheus{
		serveM:           serve,
		serveCounterM:    serveCounter,
		filterRequestM:   filterRequest,
		filterResponseM:  filterResponse,
		backendM:         backend,
		backendErrorsM:   backendErrors,
		routeErrorsM:     routeErrors,
		customHistogramM: customHistogram,
		customCounterM:   customCounter,
		registry:         prometheus.NewRegistry(),
	}

	p.registry.MustRegister(
		serve,
		serveCounter,
		filterRequest,
		filterResponse,
		backend,
		backendErrors,
		routeErrors,
		customHistogram,
		customCounter,
	)

	if opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewGoCollector())
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return p
}

// CreateHandler returns the http.Handler serving the collected metrics.
func (p *Prometheus) CreateHandler() http.Handler {
	if p.handler == nil {
		p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	}

	return p.handler
}

func (p *Prometheus) MeasureSince(key string, start time.Time) {
	p.customHistogramM.WithLabelValues(key).Observe(time.Since(start).Seconds())
}

func (p *Prometheus) IncCounter(key string) {
	p.customCounterM.WithLabelValues(key).Inc()
}

func (p *Prometheus) IncCounterBy(key string, value int64) {
	p.customCounterM.WithLabelValues(key).Add(float64(value))
}

func (p *Prometheus) IncFloatCounterBy(key string, value float64) {
	p.customCounterM.WithLabelValues(key).Add(value)
}

func (p *Prometheus) MeasureServe(route, host, method string, code int, start time.Time) {
	codeText := strconv.Itoa(code)
	p.serveM.WithLabelValues(route, host, method, codeText).Observe(time.Since(start).Seconds())
	p.serveCounterM.WithLabelValues(route, codeText).Inc()
}

func (p *Prometheus) MeasureFilterRequest(filterName string, start time.Time) {
	p.filterRequestM.WithLabelValues(filterName).Observe(time.Since(start).Seconds())
}

func (p *Prometheus) MeasureFilterResponse(filterName string, start time.Time) {
	p.filterResponseM.WithLabelValues(filterName).Observe(time.Since(start).Seconds())
}

func (p *Prometheus) MeasureBackend(route string, start time.Time) {
	p.backendM.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

func (p *Prometheus) IncErrorsBackend(route string) {
	p.backendErrorsM.WithLabelValues(route).Inc()
}

func (p *Prometheus) IncRoutingFailures() {
	p.routeErrorsM.Inc()
}
