/*
Package routing compiles route definitions into executable routes, with the
filter instances created from a filter registry, and matches incoming
requests to them.

Matching is intentionally simple: an optional exact host and a path prefix,
the longest matching prefix winning. Invalid route definitions don't fail
the whole route table, they are logged and skipped, so a typo in one route
doesn't take the proxy down.
*/
package routing

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/logging"
	"github.com/htmlslim/htmlslim/routedef"
)

// Options for initializing the routing.
type Options struct {
	// FilterRegistry holds the filter specs used to create the filter
	// instances of the routes.
	FilterRegistry filters.Registry

	// Routes are the definitions to compile.
	Routes []*routedef.Route

	// Log is used to report invalid route definitions. When nil, the
	// default logger is used.
	Log logging.Logger
}

// RouteFilter is a filter instance with the name it was created from.
type RouteFilter struct {
	filters.Filter
	Name string
}

// Route is a compiled route, ready to be used by the proxy.
type Route struct {
	// Id of the route definition.
	Id string

	// Host and Path of the route definition.
	Host string
	Path string

	// Backend address, with the parsed Scheme and BackendHost used for
	// the outgoing requests.
	Backend     string
	Scheme      string
	BackendHost string

	// Filters of the route, in declaration order.
	Filters []*RouteFilter
}

// Routing matches requests to compiled routes.
type Routing struct {
	routes []*Route
}

func compileRoute(def *routedef.Route, fr filters.Registry) (*Route, error) {
	u, err := url.Parse(def.Backend)
	if err != nil {
		return nil, fmt.Errorf("invalid backend %q: %w", def.Backend, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend %q: scheme and host required", def.Backend)
	}

	r := &Route{
		Id:          def.Id,
		Host:        def.Host,
		Path:        def.Path,
		Backend:     def.Backend,
		Scheme:      u.Scheme,
		BackendHost: u.Host,
	}

	for _, fdef := range def.Filters {
		spec, ok := fr[fdef.Name]
		if !ok {
			return nil, fmt.Errorf("filter not found: %s", fdef.Name)
		}

		f, err := spec.CreateFilter(fdef.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to create filter %s: %w", fdef, err)
		}

		r.Filters = append(r.Filters, &RouteFilter{Filter: f, Name: fdef.Name})
	}

	return r, nil
}

// New compiles the route definitions in the options. Definitions that fail
// to compile are logged and skipped.
func New(o Options) *Routing {
	l := o.Log
	if l == nil {
		l = logging.New()
	}

	r := &Routing{}
	for _, def := range o.Routes {
		route, err := compileRoute(def, o.FilterRegistry)
		if err != nil {
			l.Errorf("skipping route %s: %v", def.Id, err)
			continue
		}

		r.routes = append(r.routes, route)
	}

	// longest prefix wins, host-bound routes before catch-all ones
	sort.SliceStable(r.routes, func(i, j int) bool {
		ri, rj := r.routes[i], r.routes[j]
		if len(ri.Path) != len(rj.Path) {
			return len(ri.Path) > len(rj.Path)
		}

		return ri.Host != "" && rj.Host == ""
	})

	return r
}

func stripHostPort(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		return host[:i]
	}

	return host
}

func matches(r *Route, req *http.Request) bool {
	if r.Host != "" && r.Host != stripHostPort(req.Host) {
		return false
	}

	return strings.HasPrefix(req.URL.Path, r.Path)
}

// Route returns the compiled route matching the request, or nil.
func (r *Routing) Route(req *http.Request) *Route {
	for _, route := range r.routes {
		if matches(route, req) {
			return route
		}
	}

	return nil
}
