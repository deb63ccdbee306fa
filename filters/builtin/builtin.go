/*
Package builtin provides the set of filters shipped with this repository,
and a registry initialized with them.
*/
package builtin

import (
	"github.com/htmlslim/htmlslim/filters"
	"github.com/htmlslim/htmlslim/filters/nonewlines"
)

// MakeRegistry returns a Registry object initialized with the default set of
// filter specifications found in this repository.
func MakeRegistry() filters.Registry {
	r := make(filters.Registry)
	for _, s := range []filters.Spec{
		nonewlines.New(),
		NewSetRequestHeader(),
		NewAppendRequestHeader(),
		NewDropRequestHeader(),
		NewSetResponseHeader(),
		NewAppendResponseHeader(),
		NewDropResponseHeader(),
		NewStatus(),
		NewCompress(),
		NewDecompress(),
	} {
		r.Register(s)
	}

	return r
}
