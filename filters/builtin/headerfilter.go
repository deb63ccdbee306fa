package builtin

import (
	"strings"

	"github.com/htmlslim/htmlslim/filters"
)

type headerType int

const (
	setRequestHeader headerType = iota
	appendRequestHeader
	dropRequestHeader
	setResponseHeader
	appendResponseHeader
	dropResponseHeader
)

// common structure for the header manipulation specifications and filters
type headerFilter struct {
	typ        headerType
	key, value string
}

// verifies that the filter config has the expected string parameters
func headerFilterConfig(typ headerType, config []interface{}) (string, string, error) {
	switch typ {
	case dropRequestHeader, dropResponseHeader:
		if len(config) != 1 {
			return "", "", filters.ErrInvalidFilterParameters
		}
	default:
		if len(config) != 2 {
			return "", "", filters.ErrInvalidFilterParameters
		}
	}

	key, ok := config[0].(string)
	if !ok {
		return "", "", filters.ErrInvalidFilterParameters
	}

	var value string
	if len(config) == 2 {
		if value, ok = config[1].(string); !ok {
			return "", "", filters.ErrInvalidFilterParameters
		}
	}

	return key, value, nil
}

// NewSetRequestHeader returns a filter specification used to set headers of
// requests. Instances expect two parameters: the header name and the value.
func NewSetRequestHeader() filters.Spec {
	return &headerFilter{typ: setRequestHeader}
}

// NewAppendRequestHeader returns a filter specification used to append
// headers to requests, without dropping the existing values of the same name.
func NewAppendRequestHeader() filters.Spec {
	return &headerFilter{typ: appendRequestHeader}
}

// NewDropRequestHeader returns a filter specification used to delete headers
// from requests. Instances expect one parameter: the header name.
func NewDropRequestHeader() filters.Spec {
	return &headerFilter{typ: dropRequestHeader}
}

// NewSetResponseHeader returns a filter specification used to set headers of
// responses. Instances expect two parameters: the header name and the value.
func NewSetResponseHeader() filters.Spec {
	return &headerFilter{typ: setResponseHeader}
}

// NewAppendResponseHeader returns a filter specification used to append
// headers to responses, without dropping the existing values of the same
// name.
func NewAppendResponseHeader() filters.Spec {
	return &headerFilter{typ: appendResponseHeader}
}

// NewDropResponseHeader returns a filter specification used to delete headers
// from responses. Instances expect one parameter: the header name.
func NewDropResponseHeader() filters.Spec {
	return &headerFilter{typ: dropResponseHeader}
}

func (f *headerFilter) Name() string {
	switch f.typ {
	case setRequestHeader:
		return filters.SetRequestHeaderName
	case appendRequestHeader:
		return filters.AppendRequestHeaderName
	case dropRequestHeader:
		return filters.DropRequestHeaderName
	case setResponseHeader:
		return filters.SetResponseHeaderName
	case appendResponseHeader:
		return filters.AppendResponseHeaderName
	default:
		return filters.DropResponseHeaderName
	}
}

func (f *headerFilter) CreateFilter(config []interface{}) (filters.Filter, error) {
	key, value, err := headerFilterConfig(f.typ, config)
	return &headerFilter{typ: f.typ, key: key, value: value}, err
}

func (f *headerFilter) Request(ctx filters.FilterContext) {
	header := ctx.Request().Header
	switch f.typ {
	case setRequestHeader:
		header.Set(f.key, f.value)
	case appendRequestHeader:
		header.Add(f.key, f.value)
	case dropRequestHeader:
		header.Del(f.key)
	default:
		return
	}

	if strings.ToLower(f.key) == "host" {
		ctx.SetOutgoingHost(f.value)
	}
}

func (f *headerFilter) Response(ctx filters.FilterContext) {
	header := ctx.Response().Header
	switch f.typ {
	case setResponseHeader:
		header.Set(f.key, f.value)
	case appendResponseHeader:
		header.Add(f.key, f.value)
	case dropResponseHeader:
		header.Del(f.key)
	}
}
