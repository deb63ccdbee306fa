package builtin

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/htmlslim/htmlslim/filters"
)

const (
	// DecompressionNotPossible is the state-bag key to indicate
	// to the subsequent filters during response processing that the
	// content is compressed, but decompression was not possible, e.g.
	// because the encoding is not supported.
	DecompressionNotPossible = "filter::decompress::not-possible"

	// DecompressionError is the state-bag key to indicate to the
	// subsequent filters during response processing that the
	// decompression of the content was attempted but failed. The
	// response body may have been sniffed, and therefore it was
	// discarded.
	DecompressionError = "filter::decompress::error"
)

type decodedBody struct {
	original io.Closer
	decoder  io.ReadCloser
}

type decodingError struct {
	decoder  error
	original error
}

type decompress struct{}

// workaround to give the brotli reader a Close method
type brotliWrapper struct {
	brotli.Reader
}

func (brotliWrapper) Close() error { return nil }

func newDecoder(enc string, original io.Reader) (io.ReadCloser, error) {
	switch enc {
	case "gzip":
		return gzip.NewReader(original)
	case "br":
		w := new(brotliWrapper)
		if err := w.Reset(original); err != nil {
			return nil, err
		}

		return w, nil
	default:
		return flate.NewReader(original), nil
	}
}

func newDecodedBody(original io.ReadCloser, encs []string) (io.ReadCloser, error) {
	if len(encs) == 0 {
		return original, nil
	}

	last := len(encs) - 1
	enc := encs[last]
	encs = encs[:last]

	decoder, err := newDecoder(enc, original)
	if err != nil {
		return nil, err
	}

	return newDecodedBody(decodedBody{original: original, decoder: decoder}, encs)
}

func (b decodedBody) Read(p []byte) (int, error) {
	return b.decoder.Read(p)
}

func (b decodedBody) Close() error {
	derr := b.decoder.Close()
	oerr := b.original.Close()
	if derr == nil && oerr == nil {
		return nil
	}

	return decodingError{decoder: derr, original: oerr}
}

func (e decodingError) Error() string {
	switch {
	case e.decoder == nil:
		return e.original.Error()
	case e.original == nil:
		return e.decoder.Error()
	default:
		return fmt.Sprintf("%v; %v", e.decoder, e.original)
	}
}

// NewDecompress creates a filter specification for the decompress() filter.
// The filter attempts to decompress the response body, if it was compressed
// with any of deflate, gzip or br.
//
// One use is in front of stripNewlines(): backends sending compressed HTML
// would otherwise pass the stripping untouched, while the
// decompress() -> stripNewlines() combination edits them, optionally
// followed by compress() to re-encode the result.
//
// If decompression is not possible, but the body is compressed, then it
// indicates it with the "filter::decompress::not-possible" key in the
// state-bag. If the decompression was attempted and failed to get
// initialized, it indicates it in addition with the
// "filter::decompress::error" state-bag key, storing the error. Due to the
// streaming, decompression may fail after all the filters were processed.
//
// The filter does not need any parameters.
func NewDecompress() filters.Spec {
	return decompress{}
}

func (d decompress) Name() string { return filters.DecompressName }

func (d decompress) CreateFilter([]interface{}) (filters.Filter, error) {
	return d, nil
}

func (d decompress) Request(filters.FilterContext) {}

func getEncodings(header string) []string {
	var encs []string
	for _, e := range strings.Split(header, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			encs = append(encs, e)
		}
	}

	return encs
}

func encodingsSupported(encs []string) bool {
	for _, e := range encs {
		if !stringsContain(supportedEncodings, e) {
			return false
		}
	}

	return true
}

func (d decompress) Response(ctx filters.FilterContext) {
	rsp := ctx.Response()

	encs := getEncodings(rsp.Header.Get("Content-Encoding"))
	if len(encs) == 0 {
		return
	}

	if !encodingsSupported(encs) {
		ctx.StateBag()[DecompressionNotPossible] = true
		return
	}

	rsp.Header.Del("Content-Encoding")
	rsp.Header.Del("Vary")
	rsp.Header.Del("Content-Length")
	rsp.ContentLength = -1

	b, err := newDecodedBody(rsp.Body, encs)
	if err != nil {
		// the decoder may have already sniffed from the response body
		rsp.Body.Close()
		rsp.Body = http.NoBody

		sb := ctx.StateBag()
		sb[DecompressionNotPossible] = true
		sb[DecompressionError] = err

		ctx.Logger().Errorf("error while initializing decompression: %v", err)
		return
	}

	rsp.Body = b
}
