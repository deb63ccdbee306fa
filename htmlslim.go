/*
Package htmlslim provides an HTTP reverse proxy that applies filters to the
proxied traffic, with its flagship filter, stripNewlines(), removing the
newline characters from HTML response bodies while leaving preformatted
content untouched.

The proxy serves the routes of a YAML route table. Each route matches
requests by an optional host and a path prefix, and forwards them to its
backend, applying the declared filters on the request and the response.

The simplest way to run the proxy is the htmlslim command:

	htmlslim -address :9090 -routes-file routes.yaml

or embedded, with the Run function:

	log.Fatal(htmlslim.Run(htmlslim.Options{
		Address:    ":9090",
		RoutesFile: "routes.yaml",
	}))

Custom filters can be registered through the Options, implementing the
filters.Spec interface.
*/
package htmlslim

import (
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/filters/builtin"
	"github.com/htmlslim/htmlslim/logging"
	"github.com/htmlslim/htmlslim/metrics"
	"github.com/htmlslim/htmlslim/proxy"
	"github.com/htmlslim/htmlslim/routedef"
	"github.com/htmlslim/htmlslim/routing"
)

// Options to start the proxy.
type Options struct {
	// Address to listen on. Defaults to :9090.
	Address string

	// RoutesFile is the path of the YAML route table to serve.
	RoutesFile string

	// Routes can be used to pass in route definitions directly, in
	// addition to the ones loaded from the RoutesFile.
	Routes []*routedef.Route

	// CustomFilters are registered in addition to the builtin filters.
	CustomFilters []filters.Spec

	// Insecure, when true, the proxy skips the verification of the TLS
	// certificates of the backends.
	Insecure bool

	// ProxyPreserveHost, when true, the outgoing requests use the Host
	// header of the incoming request instead of the backend host.
	ProxyPreserveHost bool

	// RemoveHopHeaders enables the removal of the hop-by-hop headers
	// from the forwarded requests.
	RemoveHopHeaders bool

	// ResponseHeaderTimeout of the backend roundtrips.
	ResponseHeaderTimeout time.Duration

	// IdleConnsPerHost of the backend connection pool.
	IdleConnsPerHost int

	// FlushInterval of the streamed responses. A negative value flushes
	// after every write to the client.
	FlushInterval time.Duration

	// ReadTimeoutServer and WriteTimeoutServer of the listener.
	ReadTimeoutServer  time.Duration
	WriteTimeoutServer time.Duration

	// ApplicationLogOutput is the path of the output file of the
	// application log. When empty, the log is written to stderr.
	ApplicationLogOutput string

	// ApplicationLogPrefix is prepended to the application log entries.
	ApplicationLogPrefix string

	// ApplicationLogJSONEnabled switches the application log entries to
	// the JSON format.
	ApplicationLogJSONEnabled bool

	// AccessLogOutput is the path of the output file of the access log.
	// When empty, the access log is written to stderr.
	AccessLogOutput string

	// AccessLogDisabled turns off the access log.
	AccessLogDisabled bool

	// AccessLogJSONEnabled switches the access log entries to the JSON
	// format instead of the Apache combined format.
	AccessLogJSONEnabled bool

	// MetricsListener is the address of the /metrics endpoint. Empty
	// disables the endpoint.
	MetricsListener string

	// MetricsPrefix of the exposed metric names.
	MetricsPrefix string

	// EnableRuntimeMetrics exposes the Go runtime metrics, too.
	EnableRuntimeMetrics bool
}

func loadRoutes(o Options) ([]*routedef.Route, error) {
	routes := o.Routes
	if o.RoutesFile != "" {
		fileRoutes, err := routedef.LoadFile(o.RoutesFile)
		if err != nil {
			return nil, err
		}

		routes = append(routes, fileRoutes...)
	}

	if len(routes) == 0 {
		return nil, errors.New("no routes specified")
	}

	return routes, nil
}

func logOutput(path string) (io.Writer, error) {
	if path == "" {
		return nil, nil
	}

	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func initLog(o Options) error {
	appLog, err := logOutput(o.ApplicationLogOutput)
	if err != nil {
		return err
	}

	accessLog, err := logOutput(o.AccessLogOutput)
	if err != nil {
		return err
	}

	logging.Init(logging.Options{
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogOutput:      appLog,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
		AccessLogOutput:           accessLog,
		AccessLogDisabled:         o.AccessLogDisabled,
		AccessLogJSONEnabled:      o.AccessLogJSONEnabled,
	})

	return nil
}

func initMetrics(o Options) metrics.Metrics {
	if o.MetricsListener == "" {
		return metrics.Default
	}

	m := metrics.NewPrometheus(metrics.Options{
		Prefix:               o.MetricsPrefix,
		EnableRuntimeMetrics: o.EnableRuntimeMetrics,
	})

	go func() {
		log := logging.New()
		log.Infof("metrics listener on %s", o.MetricsListener)
		if err := http.ListenAndServe(o.MetricsListener, metrics.NewHandler(m)); err != nil {
			log.Errorf("metrics listener failed: %v", err)
		}
	}()

	return m
}

func proxyFlags(o Options) proxy.Flags {
	var flags proxy.Flags
	if o.Insecure {
		flags |= proxy.Insecure
	}

	if o.ProxyPreserveHost {
		flags |= proxy.PreserveHost
	}

	if o.RemoveHopHeaders {
		flags |= proxy.HopHeadersRemoval
	}

	return flags
}

// Run starts the proxy with the given options and blocks serving it.
func Run(o Options) error {
	if o.Address == "" {
		o.Address = ":9090"
	}

	if err := initLog(o); err != nil {
		return err
	}

	routes, err := loadRoutes(o)
	if err != nil {
		return err
	}

	registry := builtin.MakeRegistry()
	for _, f := range o.CustomFilters {
		registry.Register(f)
	}

	rt := routing.New(routing.Options{
		FilterRegistry: registry,
		Routes:         routes,
	})

	m := initMetrics(o)

	p := proxy.WithParams(proxy.Params{
		Routing:               rt,
		Flags:                 proxyFlags(o),
		ResponseHeaderTimeout: o.ResponseHeaderTimeout,
		IdleConnsPerHost:      o.IdleConnsPerHost,
		FlushInterval:         o.FlushInterval,
		Metrics:               m,
		AccessLogDisabled:     o.AccessLogDisabled,
	})
	defer p.Close()

	log := logging.New()
	log.Infof("listening on %s", o.Address)

	server := &http.Server{
		Addr:         o.Address,
		Handler:      p,
		ReadTimeout:  o.ReadTimeoutServer,
		WriteTimeout: o.WriteTimeoutServer,
	}

	return server.ListenAndServe()
}
