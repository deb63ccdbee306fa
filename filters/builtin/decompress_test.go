package builtin

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/filters/filtertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipContent(t *testing.T, content string) []byte {
	t.Helper()
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

func brotliContent(t *testing.T, content string) []byte {
	t.Helper()
	var b bytes.Buffer
	w := brotli.NewWriter(&b)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return b.Bytes()
}

func decompressContext(encoding string, body []byte) *filtertest.Context {
	req, _ := http.NewRequest("GET", "https://www.example.org/", nil)
	return &filtertest.Context{
		FRequest: req,
		FResponse: &http.Response{
			StatusCode: http.StatusOK,
			Header: http.Header{
				"Content-Type":     []string{"text/html"},
				"Content-Encoding": []string{encoding},
			},
			Body:          io.NopCloser(bytes.NewReader(body)),
			ContentLength: int64(len(body)),
		},
		FStateBag: make(map[string]interface{}),
	}
}

func newDecompressFilter(t *testing.T) filters.Filter {
	t.Helper()
	f, err := NewDecompress().CreateFilter(nil)
	require.NoError(t, err)
	return f
}

func TestDecompressResponse(t *testing.T) {
	const content = "<html>\ncompressed content\n</html>"

	for _, test := range []struct {
		encoding string
		body     []byte
	}{
		{"gzip", nil},
		{"br", nil},
	} {
		t.Run(test.encoding, func(t *testing.T) {
			var body []byte
			switch test.encoding {
			case "gzip":
				body = gzipContent(t, content)
			case "br":
				body = brotliContent(t, content)
			}

			ctx := decompressContext(test.encoding, body)
			newDecompressFilter(t).Response(ctx)

			rsp := ctx.FResponse
			assert.Empty(t, rsp.Header.Get("Content-Encoding"))
			assert.Empty(t, rsp.Header.Get("Content-Length"))
			assert.Equal(t, int64(-1), rsp.ContentLength)

			b, err := io.ReadAll(rsp.Body)
			require.NoError(t, err)
			require.NoError(t, rsp.Body.Close())
			assert.Equal(t, content, string(b))
			assert.Empty(t, ctx.FStateBag)
		})
	}
}

func TestDecompressStackedEncodings(t *testing.T) {
	const content = "twice encoded"

	body := brotliContent(t, string(gzipContent(t, content)))
	ctx := decompressContext("gzip, br", body)
	newDecompressFilter(t).Response(ctx)

	b, err := io.ReadAll(ctx.FResponse.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(b))
}

func TestDecompressNotEncoded(t *testing.T) {
	const content = "plain content"

	ctx := decompressContext("", []byte(content))
	ctx.FResponse.Header.Del("Content-Encoding")
	newDecompressFilter(t).Response(ctx)

	b, err := io.ReadAll(ctx.FResponse.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(b))
	assert.Equal(t, int64(len(content)), ctx.FResponse.ContentLength)
}

func TestDecompressUnsupportedEncoding(t *testing.T) {
	ctx := decompressContext("sdch", []byte("opaque"))
	newDecompressFilter(t).Response(ctx)

	assert.Equal(t, true, ctx.FStateBag[DecompressionNotPossible])
	assert.Equal(t, "sdch", ctx.FResponse.Header.Get("Content-Encoding"))

	b, err := io.ReadAll(ctx.FResponse.Body)
	require.NoError(t, err)
	assert.Equal(t, "opaque", string(b))
}

func TestDecompressThenStrip(t *testing.T) {
	const (
		content  = "<html>\r\n<body>\n<pre>\nkeep\n</pre>\n</body>\n</html>"
		stripped = "<html><body><pre>\nkeep\n</pre></body></html>"
	)

	ctx := decompressContext("gzip", gzipContent(t, content))
	newDecompressFilter(t).Response(ctx)

	strip, err := MakeRegistry()[filters.StripNewlinesName].CreateFilter(nil)
	require.NoError(t, err)
	strip.Response(ctx)

	b, err := io.ReadAll(ctx.FResponse.Body)
	require.NoError(t, err)
	require.NoError(t, ctx.FResponse.Body.Close())
	assert.Equal(t, stripped, string(b))
}
