/*
Package nonewlines provides a filter that strips the newline characters from
HTML response bodies, while preserving the content of preformatted (<pre>)
regions.

The stripping is a small streaming state machine over the response body: a
byte is either plain text, inside a preformatted region, or passed through.
In plain text every CR and LF byte is dropped. A '<' followed by "pre"
(case-insensitive) enters the preformatted state, where every byte is kept
until a '/' followed by "pre" leaves it again. There is no HTML parsing
beyond this: attributes, nesting and entities are not interpreted, and any
tag starting with the three letters works, as does any "/pre" sequence
inside the region.

Tags cut in half by a chunk boundary are handled: the undecided bytes are
held back until the next chunk (or the end of the stream) resolves them.
*/
package nonewlines
