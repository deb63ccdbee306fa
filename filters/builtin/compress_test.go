package builtin

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/filters/filtertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compressTestContent = "hello, hello, hello, hello, compressible content"

func compressContext(acceptEncoding, contentType string) *filtertest.Context {
	req, _ := http.NewRequest("GET", "https://www.example.org/", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	return &filtertest.Context{
		FRequest: req,
		FResponse: &http.Response{
			StatusCode:    http.StatusOK,
			Header:        http.Header{"Content-Type": []string{contentType}},
			Body:          io.NopCloser(strings.NewReader(compressTestContent)),
			ContentLength: int64(len(compressTestContent)),
		},
		FStateBag: make(map[string]interface{}),
	}
}

func decode(t *testing.T, enc string, r io.Reader) string {
	t.Helper()

	var d io.Reader
	switch enc {
	case "gzip":
		gr, err := gzip.NewReader(r)
		require.NoError(t, err)
		d = gr
	case "br":
		d = brotli.NewReader(r)
	case "deflate":
		d = flate.NewReader(r)
	default:
		t.Fatalf("unexpected encoding: %s", enc)
	}

	b, err := io.ReadAll(d)
	require.NoError(t, err)
	return string(b)
}

func TestCompressCreateFilter(t *testing.T) {
	spec := NewCompress()

	f, err := spec.CreateFilter(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultCompressMIME, f.(*compress).mime)

	f, err = spec.CreateFilter([]interface{}{"application/xml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"application/xml"}, f.(*compress).mime)

	f, err = spec.CreateFilter([]interface{}{"...", "application/xml"})
	require.NoError(t, err)
	assert.Equal(t, append(defaultCompressMIME, "application/xml"), f.(*compress).mime)

	_, err = spec.CreateFilter([]interface{}{42})
	assert.ErrorIs(t, err, filters.ErrInvalidFilterParameters)
}

func TestCompressResponse(t *testing.T) {
	for _, enc := range []string{"gzip", "deflate", "br"} {
		t.Run(enc, func(t *testing.T) {
			f, err := NewCompress().CreateFilter(nil)
			require.NoError(t, err)

			ctx := compressContext(enc, "text/html")
			f.Response(ctx)

			rsp := ctx.FResponse
			assert.Equal(t, enc, rsp.Header.Get("Content-Encoding"))
			assert.Equal(t, []string{"Accept-Encoding"}, rsp.Header["Vary"])
			assert.Empty(t, rsp.Header.Get("Content-Length"))
			assert.Equal(t, compressTestContent, decode(t, enc, rsp.Body))
		})
	}
}

func TestCompressSelectsByQValue(t *testing.T) {
	f, err := NewCompress().CreateFilter(nil)
	require.NoError(t, err)

	ctx := compressContext("gzip;q=0.5, br;q=0.9, deflate;q=0.1", "text/html")
	f.Response(ctx)

	rsp := ctx.FResponse
	assert.Equal(t, "br", rsp.Header.Get("Content-Encoding"))
	assert.Equal(t, compressTestContent, decode(t, "br", rsp.Body))
}

func TestCompressSkipped(t *testing.T) {
	for _, test := range []struct {
		name  string
		ctx   *filtertest.Context
		setup func(*http.Response)
	}{{
		name: "no accept encoding",
		ctx:  compressContext("", "text/html"),
	}, {
		name: "unsupported accept encoding",
		ctx:  compressContext("sdch", "text/html"),
	}, {
		name: "unsupported content type",
		ctx:  compressContext("gzip", "image/png"),
	}, {
		name: "already encoded",
		ctx:  compressContext("gzip", "text/html"),
		setup: func(rsp *http.Response) {
			rsp.Header.Set("Content-Encoding", "br")
		},
	}, {
		name: "no transform",
		ctx:  compressContext("gzip", "text/html"),
		setup: func(rsp *http.Response) {
			rsp.Header.Set("Cache-Control", "public, No-Transform")
		},
	}} {
		t.Run(test.name, func(t *testing.T) {
			f, err := NewCompress().CreateFilter(nil)
			require.NoError(t, err)

			if test.setup != nil {
				test.setup(test.ctx.FResponse)
			}

			before := test.ctx.FResponse.Header.Get("Content-Encoding")
			f.Response(test.ctx)

			rsp := test.ctx.FResponse
			assert.Equal(t, before, rsp.Header.Get("Content-Encoding"))

			b, err := io.ReadAll(rsp.Body)
			require.NoError(t, err)
			assert.Equal(t, compressTestContent, string(b))
		})
	}
}
