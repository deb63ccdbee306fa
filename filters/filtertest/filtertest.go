/*
Package filtertest implements mock versions of the Filter, Spec and
FilterContext interfaces used during tests.
*/
package filtertest

import (
	"net/http"
	"time"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/sirupsen/logrus"
)

// Filter is a noop filter, used to verify the name and the args in the route.
type Filter struct {
	FilterName string
	Args       []interface{}
}

// Context is a mock implementation of the FilterContext interface.
type Context struct {
	FResponseWriter http.ResponseWriter
	FRequest        *http.Request
	FResponse       *http.Response
	FServed         bool
	FStateBag       map[string]interface{}
	FBackendUrl     string
	FOutgoingHost   string
	FMetrics        filters.Metrics
}

// Metrics is a noop metrics implementation that counts the custom values,
// keeping the totals per key.
type Metrics struct {
	Counters map[string]int64
}

func (f *Filter) Name() string                       { return f.FilterName }
func (f *Filter) Request(ctx filters.FilterContext)  {}
func (f *Filter) Response(ctx filters.FilterContext) {}

func (f *Filter) CreateFilter(config []interface{}) (filters.Filter, error) {
	return &Filter{f.FilterName, config}, nil
}

func (fc *Context) ResponseWriter() http.ResponseWriter { return fc.FResponseWriter }
func (fc *Context) Request() *http.Request              { return fc.FRequest }
func (fc *Context) Response() *http.Response            { return fc.FResponse }
func (fc *Context) OriginalRequest() *http.Request      { return nil }
func (fc *Context) OriginalResponse() *http.Response    { return nil }
func (fc *Context) MarkServed()                         { fc.FServed = true }
func (fc *Context) Served() bool                        { return fc.FServed }
func (fc *Context) StateBag() map[string]interface{}    { return fc.FStateBag }
func (fc *Context) BackendUrl() string                  { return fc.FBackendUrl }
func (fc *Context) OutgoingHost() string                { return fc.FOutgoingHost }
func (fc *Context) SetOutgoingHost(h string)            { fc.FOutgoingHost = h }

func (fc *Context) Serve(rsp *http.Response) {
	fc.FServed = true
	fc.FResponse = rsp
}

func (fc *Context) Metrics() filters.Metrics {
	if fc.FMetrics == nil {
		fc.FMetrics = &Metrics{}
	}

	return fc.FMetrics
}

func (fc *Context) Logger() filters.FilterContextLogger {
	return logrus.StandardLogger()
}

func (m *Metrics) MeasureSince(string, time.Time) {}

func (m *Metrics) IncCounter(key string) { m.IncCounterBy(key, 1) }

func (m *Metrics) IncCounterBy(key string, value int64) {
	if m.Counters == nil {
		m.Counters = make(map[string]int64)
	}

	m.Counters[key] += value
}

func (m *Metrics) IncFloatCounterBy(key string, value float64) {
	m.IncCounterBy(key, int64(value))
}
