package nonewlines

import (
	"net/http"
	"strings"

	"github.com/htmlslim/htmlslim/filters"
)

// Name is the filter name as used in route definitions.
const Name = filters.StripNewlinesName

// key of the custom counter for the bytes removed from response bodies
const savedBytesKey = "stripNewlines.saved_bytes"

type spec struct{}

type filter struct{}

// New creates a filter specification for the stripNewlines() filter.
//
// The filter removes the CR and LF bytes from HTML response bodies to save
// bandwidth, leaving the content of <pre> elements untouched. It applies
// only to responses that can be safely edited on the byte level: successful
// or error document responses (200, 403, 404) of content type text/html
// without a content encoding. Everything else passes through untouched.
//
// The filter streams: the body is edited chunk by chunk, with tags split
// across chunk boundaries still recognized, and it never buffers more than
// a single read of the wrapped body.
//
// The filter takes no arguments:
//
//	site: Path("/") -> stripNewlines() -> "https://www.example.org"
func New() filters.Spec { return spec{} }

func (spec) Name() string { return Name }

func (spec) CreateFilter(args []interface{}) (filters.Filter, error) {
	if len(args) != 0 {
		return nil, filters.ErrInvalidFilterParameters
	}

	return filter{}, nil
}

func (filter) Request(filters.FilterContext) {}

func (filter) Response(ctx filters.FilterContext) {
	rsp := ctx.Response()
	if !eligible(ctx.Request(), rsp) {
		return
	}

	// the output length is unknown until the body was streamed
	rsp.Header.Del("Content-Length")
	rsp.Header.Del("Accept-Ranges")
	rsp.ContentLength = -1

	m := ctx.Metrics()
	rsp.Body = newStripReader(rsp.Body, func(removed int64) {
		if removed > 0 {
			m.IncCounterBy(savedBytesKey, removed)
		}
	})
}

// eligible decides whether a response body can be stripped. Compressed or
// otherwise encoded bodies would be corrupted by byte level edits, and
// non-HTML content may be binary.
func eligible(req *http.Request, rsp *http.Response) bool {
	switch rsp.StatusCode {
	case http.StatusOK, http.StatusForbidden, http.StatusNotFound:
	default:
		return false
	}

	if req != nil && req.Method == http.MethodHead {
		return false
	}

	if rsp.Body == nil || rsp.Body == http.NoBody {
		return false
	}

	ct := rsp.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "text/html") {
		return false
	}

	if rsp.Header.Get("Content-Encoding") != "" {
		return false
	}

	return true
}
