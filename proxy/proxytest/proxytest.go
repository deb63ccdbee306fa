// Package proxytest provides a proxy wired to a static route table and
// served by an httptest server, for filter end-to-end tests.
package proxytest

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/metrics"
	"github.com/htmlslim/htmlslim/proxy"
	"github.com/htmlslim/htmlslim/routedef"
	"github.com/htmlslim/htmlslim/routing"
)

type TestProxy struct {
	URL string

	proxy  *proxy.Proxy
	server *httptest.Server
}

type TestClient struct {
	*http.Client
}

// WithParams creates a started test proxy over the given routes, with
// control over the proxy parameters.
func WithParams(fr filters.Registry, p proxy.Params, routes ...*routedef.Route) *TestProxy {
	rt := routing.New(routing.Options{
		FilterRegistry: fr,
		Routes:         routes,
	})

	if p.Metrics == nil {
		p.Metrics = metrics.Void{}
	}

	p.Routing = rt
	pr := proxy.WithParams(p)
	tsp := httptest.NewServer(pr)

	return &TestProxy{
		URL:    tsp.URL,
		proxy:  pr,
		server: tsp,
	}
}

// New creates a started test proxy over the given routes with the default
// proxy parameters.
func New(fr filters.Registry, routes ...*routedef.Route) *TestProxy {
	return WithParams(fr, proxy.Params{}, routes...)
}

func (p *TestProxy) Client() *TestClient {
	return &TestClient{p.server.Client()}
}

func (p *TestProxy) Close() error {
	p.server.Close()
	return p.proxy.Close()
}

// GetBody issues a GET to the specified URL, reads and closes response body
// and returns response, response body bytes and error if any.
func (c *TestClient) GetBody(url string) (rsp *http.Response, body []byte, err error) {
	rsp, err = c.Get(url)
	if err != nil {
		return
	}
	defer rsp.Body.Close()

	body, err = io.ReadAll(rsp.Body)
	return
}
