package builtin

import "github.com/htmlslim/htmlslim/filters"

type statusSpec struct{}

type statusFilter struct {
	code int
}

// NewStatus returns a filter specification used to overwrite the status code
// of responses. Instances expect one number parameter, the status code.
func NewStatus() filters.Spec { return new(statusSpec) }

func (s *statusSpec) Name() string { return filters.StatusName }

func (s *statusSpec) CreateFilter(args []interface{}) (filters.Filter, error) {
	if len(args) != 1 {
		return nil, filters.ErrInvalidFilterParameters
	}

	switch c := args[0].(type) {
	case int:
		return &statusFilter{c}, nil
	case float64:
		return &statusFilter{int(c)}, nil
	default:
		return nil, filters.ErrInvalidFilterParameters
	}
}

func (f *statusFilter) Request(filters.FilterContext) {}

func (f *statusFilter) Response(ctx filters.FilterContext) {
	ctx.Response().StatusCode = f.code
}
