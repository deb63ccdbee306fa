package filters

import (
	"errors"
	"net/http"
	"time"
)

// FilterContext object providing state and information that is unique to a request.
type FilterContext interface {
	// The response writer object belonging to the incoming request. Used only
	// with filters that handle the requests themselves.
	ResponseWriter() http.ResponseWriter

	// The incoming request object. It is forwarded to the route endpoint
	// with its properties changed by the filters.
	Request() *http.Request

	// The response object. It is returned to the client with its
	// properties changed by the filters.
	Response() *http.Response

	// The copy (deep) of the original incoming request or nil if the
	// implementation does not provide it.
	OriginalRequest() *http.Request

	// The copy (deep) of the original incoming response or nil if the
	// implementation does not provide it.
	OriginalResponse() *http.Response

	// This method is deprecated. A FilterContext implementation should flag this state
	// internally.
	MarkServed()

	// This method returns true if the response was already served by any of the filters
	// in a route.
	Served() bool

	// Serve a request with the provided response. It can be used by filters that handle the
	// requests themselves. FilterContext implementations should flag this state and prevent
	// the request from being forwarded to the backend.
	Serve(*http.Response)

	// Provide the wanted state bag that is shared by all filters of a route during
	// the processing of one request.
	StateBag() map[string]interface{}

	// Returns the backend url specified in the route or an empty
	// value in case it's a shunt.
	BackendUrl() string

	// Returns the host that will be set for the outgoing proxy request as the
	// 'Host' header.
	OutgoingHost() string

	// Allows explicitly setting the Host header to be sent to the backend, overriding the
	// strategy used by the implementation, which can be either the Host header from the
	// incoming request or the host fragment of the backend url.
	SetOutgoingHost(string)

	// Metrics provides options to measure custom metrics from within
	// the filters.
	Metrics() Metrics

	// Logger provides a logging facility scoped to the route being processed.
	Logger() FilterContextLogger
}

// Metrics provides the possibility to use custom metrics from filter implementations.
// The custom metrics are exposed through the common metrics endpoint of the proxy,
// keyed in the custom subsystem.
type Metrics interface {
	// MeasureSince adds values to a timer with a custom key.
	MeasureSince(key string, start time.Time)

	// IncCounter increments a custom counter identified by its key.
	IncCounter(key string)

	// IncCounterBy increments a custom counter identified by its key by a certain value.
	IncCounterBy(key string, value int64)

	// IncFloatCounterBy increments a custom counter identified by its key by a certain
	// float (decimal) value. Not all Metrics implementations support float counters.
	// In that case, the value is rounded to the nearest integer.
	IncFloatCounterBy(key string, value float64)
}

// FilterContextLogger is the logger attached to the filter context, prefixing
// the entries with the id of the route being processed.
type FilterContextLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Filters are created by the Spec components, optionally using filter
// specific settings. When implementing filters, it needs to be taken
// into consideration that filter instances are route specific and not
// request specific, so any state stored with a filter is shared between
// all requests matching the route and can cause concurrency issues.
type Filter interface {
	// The Request method is called while processing the incoming request.
	Request(FilterContext)

	// The Response method is called while processing the response to be
	// returned.
	Response(FilterContext)
}

// Spec objects are specifications for filters. When initializing the routes,
// the Filter instances are created using the Spec objects found in the
// registry.
type Spec interface {
	// Name gives the name of the Spec. It is used to identify filters in a route definition.
	Name() string

	// CreateFilter creates a Filter instance. Called with the parameters in the route
	// definition while initializing a route.
	CreateFilter(config []interface{}) (Filter, error)
}

// Registry used to lookup Spec objects while initializing routes.
type Registry map[string]Spec

// Register adds a filter specification to the registry.
func (r Registry) Register(s Spec) {
	r[s.Name()] = s
}

// Names of the filters provided by this repository.
const (
	StripNewlinesName        = "stripNewlines"
	SetRequestHeaderName     = "setRequestHeader"
	SetResponseHeaderName    = "setResponseHeader"
	AppendRequestHeaderName  = "appendRequestHeader"
	AppendResponseHeaderName = "appendResponseHeader"
	DropRequestHeaderName    = "dropRequestHeader"
	DropResponseHeaderName   = "dropResponseHeader"
	StatusName               = "status"
	CompressName             = "compress"
	DecompressName           = "decompress"
)

// Error used in case of invalid filter parameters.
var ErrInvalidFilterParameters = errors.New("invalid filter parameters")
