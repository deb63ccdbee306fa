/*
Package metrics implements collection of the proxy and filter measurements,
exposed in Prometheus format on a dedicated listener.
*/
package metrics

import (
	"net/http"
	"time"
)

// Metrics collects the measurements of the proxy: the time serving requests
// and running filters, the backend roundtrips and their failures, and the
// custom values recorded by filters.
type Metrics interface {
	// MeasureSince adds a value to a timer with a custom key.
	MeasureSince(key string, start time.Time)

	// IncCounter increments a custom counter identified by its key.
	IncCounter(key string)

	// IncCounterBy increments a custom counter identified by its key by a
	// certain value.
	IncCounterBy(key string, value int64)

	// IncFloatCounterBy increments a custom counter identified by its key
	// by a certain float value.
	IncFloatCounterBy(key string, value float64)

	// MeasureServe records the full time of serving one request on a
	// route.
	MeasureServe(route, host, method string, code int, start time.Time)

	// MeasureFilterRequest records the time one filter spent on the
	// request path.
	MeasureFilterRequest(filterName string, start time.Time)

	// MeasureFilterResponse records the time one filter spent on the
	// response path.
	MeasureFilterResponse(filterName string, start time.Time)

	// MeasureBackend records the backend roundtrip time of a route.
	MeasureBackend(route string, start time.Time)

	// IncErrorsBackend counts the failed backend roundtrips of a route.
	IncErrorsBackend(route string)

	// IncRoutingFailures counts the requests no route matched.
	IncRoutingFailures()
}

// Void is a noop implementation of the Metrics interface, used when metrics
// collection is disabled.
type Void struct{}

// Default is the fallback metrics implementation used when none is
// configured.
var Default Metrics = Void{}

func (Void) MeasureSince(string, time.Time)                      {}
func (Void) IncCounter(string)                                   {}
func (Void) IncCounterBy(string, int64)                          {}
func (Void) IncFloatCounterBy(string, float64)                   {}
func (Void) MeasureServe(string, string, string, int, time.Time) {}
func (Void) MeasureFilterRequest(string, time.Time)              {}
func (Void) MeasureFilterResponse(string, time.Time)             {}
func (Void) MeasureBackend(string, time.Time)                    {}
func (Void) IncErrorsBackend(string)                             {}
func (Void) IncRoutingFailures()                                 {}

// NewHandler returns an http.Handler exposing the metrics of the Prometheus
// backend on the /metrics path.
func NewHandler(p *Prometheus) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.CreateHandler())
	return mux
}
