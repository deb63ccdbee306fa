/*
Package routedef contains the definition model of the routes served by the
proxy, and parsing of route tables from YAML documents.

A route maps requests, matched by an optional host and a path prefix, to a
backend, with an ordered list of filter declarations applied on the way. The
filter declarations use a function call notation, with string and number
arguments:

	routes:
	  - id: site
	    path: /
	    filters:
	      - decompress()
	      - stripNewlines()
	      - setResponseHeader("X-Slim", "true")
	    backend: "http://127.0.0.1:9090"
*/
package routedef

import (
	"errors"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Filter is the declaration of a filter in a route: the name of a registered
// filter specification and the arguments to create the instance with.
type Filter struct {
	Name string
	Args []interface{}
}

// Route is the definition of one route, before the filter instances are
// created and the backend address is validated.
type Route struct {
	// Id identifies the route in logs and metrics. Required.
	Id string

	// Host, when set, limits the route to requests with this Host header.
	Host string

	// Path is the path prefix the route matches. Empty means every path.
	Path string

	// Filters are applied in order on the request path and in reverse
	// order on the response path.
	Filters []*Filter

	// Backend is the scheme and host to forward the matched requests to.
	// Required.
	Backend string
}

type yamlRoute struct {
	Id      string   `yaml:"id"`
	Host    string   `yaml:"host"`
	Path    string   `yaml:"path"`
	Filters []string `yaml:"filters"`
	Backend string   `yaml:"backend"`
}

type yamlDocument struct {
	Routes []*yamlRoute `yaml:"routes"`
}

func (f *Filter) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		switch v := a.(type) {
		case string:
			args[i] = fmt.Sprintf("%q", v)
		default:
			args[i] = fmt.Sprint(v)
		}
	}

	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

func convertRoute(y *yamlRoute) (*Route, error) {
	if y.Id == "" {
		return nil, errors.New("route without id")
	}

	if y.Backend == "" {
		return nil, fmt.Errorf("route %s: missing backend", y.Id)
	}

	r := &Route{
		Id:      y.Id,
		Host:    y.Host,
		Path:    y.Path,
		Backend: y.Backend,
	}

	for _, expr := range y.Filters {
		f, err := ParseFilter(expr)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", y.Id, err)
		}

		r.Filters = append(r.Filters, f)
	}

	return r, nil
}

// Parse reads a YAML route table.
func Parse(doc []byte) ([]*Route, error) {
	var y yamlDocument
	if err := yaml.UnmarshalStrict(doc, &y); err != nil {
		return nil, err
	}

	routes := make([]*Route, 0, len(y.Routes))
	for _, yr := range y.Routes {
		r, err := convertRoute(yr)
		if err != nil {
			return nil, err
		}

		routes = append(routes, r)
	}

	return routes, nil
}

// LoadFile reads a YAML route table from a file.
func LoadFile(path string) ([]*Route, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(doc)
}
