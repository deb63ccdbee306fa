package builtin

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/htmlslim/htmlslim/filters"
)

const bufferSize = 8192

type encoding struct {
	name string
	q    float32
}

type encodings []*encoding

type compress struct {
	mime []string
}

var (
	supportedEncodings  = []string{"gzip", "deflate", "br"}
	unsupportedEncoding = errors.New("unsupported encoding")
)

var defaultCompressMIME = []string{
	"text/plain",
	"text/html",
	"application/json",
	"application/javascript",
	"application/x-javascript",
	"text/javascript",
	"text/css",
	"image/svg+xml",
	"application/octet-stream",
}

func (e encodings) Len() int           { return len(e) }
func (e encodings) Less(i, j int) bool { return e[i].q > e[j].q } // higher first
func (e encodings) Swap(i, j int)      { e[i], e[j] = e[j], e[i] }

// NewCompress returns a filter specification that is used to compress the
// response content.
//
// The filter, when executed on the response path, checks if the response
// entity can be compressed. To decide, it checks the Content-Encoding, the
// Cache-Control and the Content-Type headers. It doesn't compress the content
// if the Content-Encoding is set to other than identity, or the Cache-Control
// applies the no-transform pragma, or the Content-Type is set to an
// unsupported value.
//
// The default supported content types are: text/plain, text/html,
// application/json, application/javascript, application/x-javascript,
// text/javascript, text/css, image/svg+xml, application/octet-stream.
//
// The default set of MIME types can be reset or extended by passing in the
// desired types as filter arguments. When extending the defaults, the first
// argument needs to be "...".
//
// The filter also checks the incoming request, if it accepts the supported
// encodings, explicitly stated in the Accept-Encoding header. The filter
// currently supports br, gzip and deflate. It does not assume that the client
// accepts any encoding if the Accept-Encoding header is not set. It ignores
// * in the Accept-Encoding header.
//
// When compressing the response, it updates the response header. It deletes
// the Content-Length value triggering the proxy to return the response with
// chunked transfer encoding, sets the Content-Encoding to the selected
// encoding and sets the Vary: Accept-Encoding header, if missing.
//
// The compression happens in a streaming way, using only a small internal
// buffer.
func NewCompress() filters.Spec { return &compress{} }

func (c *compress) Name() string {
	return filters.CompressName
}

func (c *compress) CreateFilter(args []interface{}) (filters.Filter, error) {
	f := &compress{}

	if len(args) == 0 {
		f.mime = defaultCompressMIME
		return f, nil
	}

	if args[0] == "..." {
		f.mime = defaultCompressMIME
		args = args[1:]
	}

	for _, a := range args {
		if s, ok := a.(string); ok {
			f.mime = append(f.mime, s)
		} else {
			return nil, filters.ErrInvalidFilterParameters
		}
	}

	return f, nil
}

func (c *compress) Request(_ filters.FilterContext) {}

func stringsContain(ss []string, s string, transform ...func(string) string) bool {
	for _, si := range ss {
		for _, t := range transform {
			si = t(si)
		}

		if si == s {
			return true
		}
	}

	return false
}

func canEncodeEntity(r *http.Response, mime []string) bool {
	if ce := r.Header.Get("Content-Encoding"); ce != "" && ce != "identity" /* forgiving for identity */ {
		return false
	}

	cc := strings.Split(r.Header.Get("Cache-Control"), ",")
	if stringsContain(cc, "no-transform", strings.TrimSpace, strings.ToLower) {
		return false
	}

	ct := r.Header.Get("Content-Type")
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}

	return stringsContain(mime, ct)
}

func acceptedEncoding(r *http.Request) string {
	var encs encodings
	for _, s := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		sp := strings.Split(s, ";")
		if len(sp) == 0 {
			continue
		}

		name := strings.ToLower(strings.TrimSpace(sp[0]))
		if !stringsContain(supportedEncodings, name) {
			continue
		}

		enc := &encoding{name, 1}
		encs = append(encs, enc)

		for _, spi := range sp[1:] {
			spi = strings.TrimSpace(spi)
			if !strings.HasPrefix(spi, "q=") {
				continue
			}

			q, err := strconv.ParseFloat(strings.TrimPrefix(spi, "q="), 32)
			if err != nil {
				continue
			}

			enc.q = float32(q)
			break
		}
	}

	if len(encs) == 0 {
		return ""
	}

	sort.Sort(encs)
	return encs[0].name
}

func responseHeader(r *http.Response, enc string) {
	r.Header.Del("Content-Length")
	r.ContentLength = -1
	r.Header.Set("Content-Encoding", enc)

	if !stringsContain(r.Header["Vary"], "Accept-Encoding", http.CanonicalHeaderKey) {
		r.Header.Add("Vary", "Accept-Encoding")
	}
}

func encoder(enc string, w io.Writer) io.WriteCloser {
	switch enc {
	case "gzip":
		return gzip.NewWriter(w)
	case "br":
		return brotli.NewWriter(w)
	case "deflate":
		fw, err := flate.NewWriter(w, flate.DefaultCompression)
		if err != nil {
			// the compress/flate doc states that an error is returned
			// only for an invalid compression level
			panic(err)
		}

		return fw
	default:
		// the encoding is selected from a predefined set
		panic(unsupportedEncoding)
	}
}

func encode(out *io.PipeWriter, in io.ReadCloser, enc string) {
	e := encoder(enc, out)
	b := make([]byte, bufferSize)

	_, err := io.CopyBuffer(e, in, b)
	if err == nil {
		err = e.Close()
	} else {
		e.Close()
	}

	out.CloseWithError(err)
	in.Close()
}

func responseBody(r *http.Response, enc string) {
	in := r.Body
	pr, pw := io.Pipe()
	r.Body = pr
	go encode(pw, in, enc)
}

func (c *compress) Response(ctx filters.FilterContext) {
	rsp := ctx.Response()
	if !canEncodeEntity(rsp, c.mime) {
		return
	}

	enc := acceptedEncoding(ctx.Request())
	if enc == "" {
		return
	}

	responseHeader(rsp, enc)
	responseBody(rsp, enc)
}
