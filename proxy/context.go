package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/routing"
	"github.com/sirupsen/logrus"
)

type context struct {
	responseWriter     http.ResponseWriter
	request            *http.Request
	response           *http.Response
	route              *routing.Route
	deprecatedServed   bool
	servedWithResponse bool // to support the deprecated way independently
	stateBag           map[string]interface{}
	originalRequest    *http.Request
	originalResponse   *http.Response
	outgoingHost       string
	metrics            filters.Metrics
	startServe         time.Time
}

type ctxLogger struct {
	routeId string
}

func defaultBody() io.ReadCloser {
	return io.NopCloser(&bytes.Buffer{})
}

func defaultResponse(r *http.Request) *http.Response {
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     make(http.Header),
		Body:       defaultBody(),
		Request:    r,
	}
}

func cloneURL(u *url.URL) *url.URL {
	uc := *u
	return &uc
}

func cloneRequestMetadata(r *http.Request) *http.Request {
	return &http.Request{
		Method:           r.Method,
		URL:              cloneURL(r.URL),
		Proto:            r.Proto,
		ProtoMajor:       r.ProtoMajor,
		ProtoMinor:       r.ProtoMinor,
		Header:           cloneHeader(r.Header),
		Trailer:          cloneHeader(r.Trailer),
		Body:             defaultBody(),
		ContentLength:    r.ContentLength,
		TransferEncoding: r.TransferEncoding,
		Close:            r.Close,
		Host:             r.Host,
		RemoteAddr:       r.RemoteAddr,
		RequestURI:       r.RequestURI,
		TLS:              r.TLS,
	}
}

func cloneResponseMetadata(r *http.Response) *http.Response {
	return &http.Response{
		Status:           r.Status,
		StatusCode:       r.StatusCode,
		Proto:            r.Proto,
		ProtoMajor:       r.ProtoMajor,
		ProtoMinor:       r.ProtoMinor,
		Header:           cloneHeader(r.Header),
		Trailer:          cloneHeader(r.Trailer),
		Body:             defaultBody(),
		ContentLength:    r.ContentLength,
		TransferEncoding: r.TransferEncoding,
		Close:            r.Close,
		Request:          r.Request,
		TLS:              r.TLS,
	}
}

func newContext(w http.ResponseWriter, r *http.Request, m filters.Metrics, preserveOriginal bool) *context {
	c := &context{
		responseWriter: w,
		request:        r,
		stateBag:       make(map[string]interface{}),
		outgoingHost:   r.Host,
		metrics:        m,
		startServe:     time.Now(),
	}

	if preserveOriginal {
		c.originalRequest = cloneRequestMetadata(r)
	}

	return c
}

func (c *context) applyRoute(route *routing.Route, preserveHost bool) {
	c.route = route
	if !preserveHost {
		c.outgoingHost = route.BackendHost
	}
}

func (c *context) ensureDefaultResponse() {
	if c.response == nil {
		c.response = defaultResponse(c.request)
		return
	}

	if c.response.Header == nil {
		c.response.Header = make(http.Header)
	}

	if c.response.Body == nil {
		c.response.Body = defaultBody()
	}
}

func (c *context) shunted() bool {
	return c.deprecatedServed || c.servedWithResponse
}

func (c *context) setResponse(r *http.Response, preserveOriginal bool) {
	c.response = r
	if preserveOriginal {
		c.originalResponse = cloneResponseMetadata(r)
	}
}

func (c *context) routeId() string {
	if c.route == nil {
		return unknownRouteID
	}

	return c.route.Id
}

func (c *context) ResponseWriter() http.ResponseWriter { return c.responseWriter }
func (c *context) Request() *http.Request              { return c.request }
func (c *context) Response() *http.Response            { return c.response }
func (c *context) MarkServed()                         { c.deprecatedServed = true }
func (c *context) Served() bool                        { return c.shunted() }
func (c *context) StateBag() map[string]interface{}    { return c.stateBag }
func (c *context) OriginalRequest() *http.Request      { return c.originalRequest }
func (c *context) OriginalResponse() *http.Response    { return c.originalResponse }
func (c *context) OutgoingHost() string                { return c.outgoingHost }
func (c *context) SetOutgoingHost(h string)            { c.outgoingHost = h }
func (c *context) Metrics() filters.Metrics            { return c.metrics }

func (c *context) BackendUrl() string {
	if c.route == nil {
		return ""
	}

	return c.route.Backend
}

func (c *context) Logger() filters.FilterContextLogger {
	return &ctxLogger{routeId: c.routeId()}
}

func (c *context) Serve(r *http.Response) {
	r.Request = c.Request()

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	if r.Body == nil {
		r.Body = defaultBody()
	}

	c.servedWithResponse = true
	c.response = r
}

func (l *ctxLogger) Debugf(f string, a ...interface{}) {
	logrus.WithField("route", l.routeId).Debugf(f, a...)
}

func (l *ctxLogger) Infof(f string, a ...interface{}) {
	logrus.WithField("route", l.routeId).Infof(f, a...)
}

func (l *ctxLogger) Warnf(f string, a ...interface{}) {
	logrus.WithField("route", l.routeId).Warnf(f, a...)
}

func (l *ctxLogger) Errorf(f string, a ...interface{}) {
	logrus.WithField("route", l.routeId).Errorf(f, a...)
}
