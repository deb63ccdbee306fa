/*
Package proxy implements the HTTP host of the filters: a reverse proxy that
matches the incoming requests to the compiled routes, applies the filters of
the matched route, and streams the backend response back to the client.

The filter chain is constructed per route during routing compilation and
passed in at setup time, the proxy itself holds no mutable global chain. The
request methods of the filters are applied in declaration order before the
backend roundtrip, the response methods in reverse order after it.
*/
package proxy

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/htmlslim/htmlslim/logging"
	"github.com/htmlslim/htmlslim/metrics"
	"github.com/htmlslim/htmlslim/routing"
)

const (
	proxyBufferSize = 8192
	unknownRouteID  = "_unknownroute_"

	// DefaultIdleConnsPerHost is the default value set for
	// http.Transport.MaxIdleConnsPerHost.
	DefaultIdleConnsPerHost = 64

	// DefaultResponseHeaderTimeout, the default response header timeout
	DefaultResponseHeaderTimeout = 60 * time.Second
)

// Flags control the behavior of the proxy.
type Flags uint

const (
	FlagsNone Flags = 0

	// Insecure causes the proxy to ignore the verification of
	// the TLS certificates of the backend services.
	Insecure Flags = 1 << iota

	// PreserveOriginal indicates that filters require the
	// preserved original metadata of the request and the response.
	PreserveOriginal

	// PreserveHost indicates whether the outgoing request to the
	// backend should use by default the 'Host' header of the incoming
	// request, or the host part of the backend address, in case filters
	// don't change it.
	PreserveHost

	// HopHeadersRemoval indicates whether the Hop Headers should be removed
	// in compliance with RFC 2616
	HopHeadersRemoval
)

func (f Flags) Insecure() bool          { return f&Insecure != 0 }
func (f Flags) PreserveOriginal() bool  { return f&PreserveOriginal != 0 }
func (f Flags) PreserveHost() bool      { return f&PreserveHost != 0 }
func (f Flags) HopHeadersRemoval() bool { return f&HopHeadersRemoval != 0 }

// Params are the initialization options of the proxy.
type Params struct {
	// The routing to be used by the proxy.
	Routing *routing.Routing

	// Flags to control the proxy behavior.
	Flags Flags

	// The timeout to wait for the response headers of a backend
	// roundtrip. Defaults to 60s.
	ResponseHeaderTimeout time.Duration

	// Sets the value of http.Transport.MaxIdleConnsPerHost. Defaults
	// to 64.
	IdleConnsPerHost int

	// When set, the proxy flushes the streamed response to the client
	// at this interval. A negative value flushes after every write.
	FlushInterval time.Duration

	// Metrics collector. Defaults to the noop implementation.
	Metrics metrics.Metrics

	// Log is used for reporting filter panics and streaming errors.
	// When nil, the default logger is used.
	Log logging.Logger

	// When set, no access log entries are written.
	AccessLogDisabled bool
}

// Proxy instances implement the http.Handler interface.
type Proxy struct {
	routing           *routing.Routing
	roundTripper      *http.Transport
	flags             Flags
	metrics           metrics.Metrics
	log               logging.Logger
	flushInterval     time.Duration
	accessLogDisabled bool
}

type proxyError struct {
	err  error
	code int
}

func (e *proxyError) Error() string {
	return fmt.Sprintf("proxy error: %d: %v", e.code, e.err)
}

func (e *proxyError) Unwrap() error { return e.err }

// headers that are dedicated to a single transport connection and must not
// be forwarded, RFC 2616, section 13.5.1
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeader(to, from http.Header) {
	for k, v := range from {
		to[http.CanonicalHeaderKey(k)] = v
	}
}

func cloneHeader(h http.Header) http.Header {
	hh := make(http.Header)
	copyHeader(hh, h)
	return hh
}

func removeHopHeaders(h http.Header) {
	for _, hh := range hopHeaders {
		h.Del(hh)
	}
}

// New creates a proxy with the provided routing and flags, using the
// defaults for the rest of the parameters.
func New(r *routing.Routing, flags Flags) *Proxy {
	return WithParams(Params{Routing: r, Flags: flags})
}

// WithParams creates a proxy with the provided parameters.
func WithParams(p Params) *Proxy {
	if p.IdleConnsPerHost <= 0 {
		p.IdleConnsPerHost = DefaultIdleConnsPerHost
	}

	if p.ResponseHeaderTimeout <= 0 {
		p.ResponseHeaderTimeout = DefaultResponseHeaderTimeout
	}

	if p.Metrics == nil {
		p.Metrics = metrics.Default
	}

	if p.Log == nil {
		p.Log = logging.New()
	}

	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: p.ResponseHeaderTimeout,
		MaxIdleConnsPerHost:   p.IdleConnsPerHost,
	}

	if p.Flags.Insecure() {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Proxy{
		routing:           p.Routing,
		roundTripper:      tr,
		flags:             p.Flags,
		metrics:           p.Metrics,
		log:               p.Log,
		flushInterval:     p.FlushInterval,
		accessLogDisabled: p.AccessLogDisabled,
	}
}

// maps an incoming request to an outgoing backend request
func mapRequest(r *http.Request, rt *routing.Route, host string, removeHop bool) (*http.Request, error) {
	u := cloneURL(r.URL)
	u.Scheme = rt.Scheme
	u.Host = rt.BackendHost

	body := r.Body
	if r.ContentLength == 0 {
		body = nil
	}

	rr, err := http.NewRequestWithContext(r.Context(), r.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	rr.ContentLength = r.ContentLength
	rr.Header = cloneHeader(r.Header)
	if removeHop {
		removeHopHeaders(rr.Header)
	}

	rr.Host = host

	// x-forwarded-for the way the stdlib reverse proxy does it
	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		if prior := rr.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}

		rr.Header.Set("X-Forwarded-For", clientIP)
	}

	return rr, nil
}

func tryCatch(p func(), onErr func(err interface{}, stack string)) {
	defer func() {
		if err := recover(); err != nil {
			buf := make([]byte, 1024)
			l := runtime.Stack(buf, false)
			onErr(err, string(buf[:l]))
		}
	}()

	p()
}

// applies filters to a request
func (p *Proxy) applyFiltersToRequest(f []*routing.RouteFilter, ctx *context) []*routing.RouteFilter {
	applied := make([]*routing.RouteFilter, 0, len(f))
	for _, fi := range f {
		start := time.Now()
		tryCatch(func() {
			fi.Request(ctx)
			p.metrics.MeasureFilterRequest(fi.Name, start)
		}, func(err interface{}, stack string) {
			p.log.Errorf("error while processing filter during request: %s: %v (%s)", fi.Name, err, stack)
		})

		applied = append(applied, fi)
		if ctx.shunted() {
			break
		}
	}

	return applied
}

// applies filters to a response in reverse order
func (p *Proxy) applyFiltersToResponse(f []*routing.RouteFilter, ctx *context) {
	last := len(f) - 1
	for i := range f {
		fi := f[last-i]
		start := time.Now()
		tryCatch(func() {
			fi.Response(ctx)
			p.metrics.MeasureFilterResponse(fi.Name, start)
		}, func(err interface{}, stack string) {
			p.log.Errorf("error while processing filters during response: %s: %v (%s)", fi.Name, err, stack)
		})
	}
}

// addBranding sets the Server header if the backend or a filter did not
func addBranding(headerMap http.Header) {
	if headerMap.Get("Server") == "" {
		headerMap.Set("Server", "htmlslim")
	}
}

func (p *Proxy) makeBackendRequest(ctx *context) (*http.Response, error) {
	req, err := mapRequest(ctx.request, ctx.route, ctx.outgoingHost, p.flags.HopHeadersRemoval())
	if err != nil {
		return nil, &proxyError{err: err, code: http.StatusInternalServerError}
	}

	start := time.Now()
	rsp, err := p.roundTripper.RoundTrip(req)
	if err != nil {
		p.metrics.IncErrorsBackend(ctx.routeId())
		return nil, &proxyError{err: err, code: http.StatusBadGateway}
	}

	p.metrics.MeasureBackend(ctx.routeId(), start)
	return rsp, nil
}

// send a premature error response
func (p *Proxy) sendError(c *context, code int) {
	addBranding(c.responseWriter.Header())
	http.Error(c.responseWriter, http.StatusText(code), code)
	p.metrics.MeasureServe(
		c.routeId(),
		c.request.Host,
		c.request.Method,
		code,
		c.startServe,
	)
}

// copyStream writes the body to the client, flushing at most once per
// flush interval. A non-positive interval flushes after every write.
func copyStream(to flushWriter, from io.Reader, flushInterval time.Duration) (int64, error) {
	b := make([]byte, proxyBufferSize)

	var count int64
	lastFlush := time.Now()
	for {
		l, rerr := from.Read(b)
		if rerr != nil && rerr != io.EOF {
			return count, rerr
		}

		if l > 0 {
			n, werr := to.Write(b[:l])
			count += int64(n)
			if werr != nil {
				return count, werr
			}

			if flushInterval <= 0 || time.Since(lastFlush) >= flushInterval {
				to.Flush()
				lastFlush = time.Now()
			}
		}

		if rerr == io.EOF {
			to.Flush()
			return count, nil
		}
	}
}

type flushWriter interface {
	io.Writer
	Flush()
}

type unbufferedWriter struct {
	w io.Writer
}

func (uw unbufferedWriter) Write(p []byte) (int, error) { return uw.w.Write(p) }
func (uw unbufferedWriter) Flush()                      {}

func (p *Proxy) serveResponse(ctx *context) {
	copyHeader(ctx.responseWriter.Header(), ctx.response.Header)
	addBranding(ctx.responseWriter.Header())
	ctx.responseWriter.WriteHeader(ctx.response.StatusCode)

	var fw flushWriter
	if f, ok := ctx.responseWriter.(http.Flusher); ok {
		fw = struct {
			io.Writer
			http.Flusher
		}{ctx.responseWriter, f}
	} else {
		fw = unbufferedWriter{ctx.responseWriter}
	}

	n, err := copyStream(fw, ctx.response.Body, p.flushInterval)
	if err != nil {
		p.log.Errorf("error while copying the response stream: %v", err)
	}

	p.logAccess(ctx, ctx.response.StatusCode, n)
	p.metrics.MeasureServe(
		ctx.routeId(),
		ctx.request.Host,
		ctx.request.Method,
		ctx.response.StatusCode,
		ctx.startServe,
	)
}

func (p *Proxy) logAccess(ctx *context, code int, size int64) {
	if p.accessLogDisabled {
		return
	}

	logging.LogAccess(&logging.AccessEntry{
		Request:      ctx.request,
		StatusCode:   code,
		ResponseSize: size,
		Duration:     time.Since(ctx.startServe),
		RequestTime:  ctx.startServe,
	})
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := newContext(w, r, p.metrics, p.flags.PreserveOriginal())

	rt := p.routing.Route(r)
	if rt == nil {
		p.metrics.IncRoutingFailures()
		p.log.Debugf("no route found for %s %s", r.Method, r.URL.Path)
		p.sendError(ctx, http.StatusNotFound)
		p.logAccess(ctx, http.StatusNotFound, 0)
		return
	}

	ctx.applyRoute(rt, p.flags.PreserveHost())

	processedFilters := p.applyFiltersToRequest(rt.Filters, ctx)
	if !ctx.shunted() {
		rsp, err := p.makeBackendRequest(ctx)
		if err != nil {
			code := http.StatusInternalServerError
			var perr *proxyError
			if errors.As(err, &perr) {
				code = perr.code
			}

			p.log.Errorf("error while proxying, route %s: %v", ctx.routeId(), err)
			p.sendError(ctx, code)
			p.logAccess(ctx, code, 0)
			return
		}

		ctx.setResponse(rsp, p.flags.PreserveOriginal())
	}

	ctx.ensureDefaultResponse()
	p.applyFiltersToResponse(processedFilters, ctx)
	defer ctx.response.Body.Close()
	p.serveResponse(ctx)
}

// Close causes the proxy to stop closing idle
// connections and, currently, has no other effect.
func (p *Proxy) Close() error {
	p.roundTripper.CloseIdleConnections()
	return nil
}
