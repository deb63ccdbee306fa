package proxy_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/filters/builtin"
	"github.com/htmlslim/htmlslim/proxy"
	"github.com/htmlslim/htmlslim/proxy/proxytest"
	"github.com/htmlslim/htmlslim/routedef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startProxy(t *testing.T, backend string, filters ...*routedef.Filter) *proxytest.TestProxy {
	t.Helper()
	p := proxytest.WithParams(builtin.MakeRegistry(), proxy.Params{AccessLogDisabled: true},
		&routedef.Route{
			Id:      "test",
			Path:    "/",
			Filters: filters,
			Backend: backend,
		})
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProxyForwards(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foo/bar", r.URL.Path)
		assert.Equal(t, "baz=qux", r.URL.RawQuery)
		assert.NotEmpty(t, r.Header.Get("X-Forwarded-For"))
		w.Write([]byte("backend response"))
	}))
	defer backend.Close()

	p := startProxy(t, backend.URL)
	rsp, body, err := p.Client().GetBody(p.URL + "/foo/bar?baz=qux")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "backend response", string(body))
	assert.NotEmpty(t, rsp.Header.Get("Server"))
}

func TestProxyAppliesFilters(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "request-value", r.Header.Get("X-Test-Request"))
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	p := startProxy(t, backend.URL,
		&routedef.Filter{
			Name: filters.SetRequestHeaderName,
			Args: []interface{}{"X-Test-Request", "request-value"},
		},
		&routedef.Filter{
			Name: filters.SetResponseHeaderName,
			Args: []interface{}{"X-Test-Response", "response-value"},
		})

	rsp, _, err := p.Client().GetBody(p.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, "response-value", rsp.Header.Get("X-Test-Response"))
}

func TestProxyStatusFilter(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	p := startProxy(t, backend.URL, &routedef.Filter{
		Name: filters.StatusName,
		Args: []interface{}{http.StatusTeapot},
	})

	rsp, _, err := p.Client().GetBody(p.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, rsp.StatusCode)
}

func TestProxyRouteNotFound(t *testing.T) {
	p := proxytest.WithParams(builtin.MakeRegistry(), proxy.Params{AccessLogDisabled: true},
		&routedef.Route{
			Id:      "api",
			Path:    "/api",
			Backend: "http://127.0.0.1:9090",
		})
	defer p.Close()

	rsp, _, err := p.Client().GetBody(p.URL + "/other")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rsp.StatusCode)
}

func TestProxyBackendUnavailable(t *testing.T) {
	// an address nothing listens on
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	backend.Close()

	p := startProxy(t, backend.URL)
	rsp, _, err := p.Client().GetBody(p.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, rsp.StatusCode)
}

func TestProxyRemovesHopHeaders(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Proxy-Authorization"))
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	p := proxytest.WithParams(builtin.MakeRegistry(),
		proxy.Params{Flags: proxy.HopHeadersRemoval, AccessLogDisabled: true},
		&routedef.Route{Id: "test", Path: "/", Backend: backend.URL})
	defer p.Close()

	req, err := http.NewRequest("GET", p.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Proxy-Authorization", "secret")

	rsp, err := p.Client().Do(req)
	require.NoError(t, err)
	defer rsp.Body.Close()
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
}

type panicFilter struct{}

func (panicFilter) Name() string                                       { return "panic" }
func (panicFilter) CreateFilter([]interface{}) (filters.Filter, error) { return panicFilter{}, nil }
func (panicFilter) Request(filters.FilterContext)                      { panic("filter panic") }
func (panicFilter) Response(filters.FilterContext)                     { panic("filter panic") }

func TestProxyIsolatesFilterPanics(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("survived"))
	}))
	defer backend.Close()

	fr := builtin.MakeRegistry()
	fr.Register(panicFilter{})

	p := proxytest.WithParams(fr, proxy.Params{AccessLogDisabled: true},
		&routedef.Route{
			Id:      "test",
			Path:    "/",
			Filters: []*routedef.Filter{{Name: "panic"}},
			Backend: backend.URL,
		})
	defer p.Close()

	rsp, body, err := p.Client().GetBody(p.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Equal(t, "survived", string(body))
}
