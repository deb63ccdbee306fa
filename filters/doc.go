/*
Package filters contains definitions for the filtering mechanism of the
proxy and a registry of the filter specifications provided by this
repository.

Filters are part of the routes, and they transform the requests going
through a route and the responses returned on them. The proxy applies the
request methods of the filters of a route in their order of declaration,
and the response methods in reverse order.

To create a custom filter, implement the Spec and Filter interfaces, and
register the spec in the registry used to initialize the routing.
*/
package filters
