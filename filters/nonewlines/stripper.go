package nonewlines

// tagName is the only tag the stripper recognizes. It is matched
// case-insensitively in its opening form after a '<' and in its closing form
// after a '/'. Anything more is HTML parsing, which is out of scope here.
const tagName = "pre"

type stripState int

const (
	// stateText is the initial state. CR and LF bytes are dropped, every
	// other byte is copied through. A '<' starts the tag check.
	stateText stripState = iota

	// stateAbort passes every byte through unchanged. It is a defined
	// escape hatch and nothing switches to it during normal processing.
	stateAbort

	// statePre preserves everything verbatim, newlines included, until the
	// closing tag of a preformatted region is found.
	statePre
)

// stripper removes CR and LF bytes from a stream of HTML chunks, leaving
// preformatted regions untouched. One stripper instance carries the state of
// one response body across all of its chunks.
//
// Each chunk is rewritten in place with a read and a write cursor, the write
// cursor never passing the read cursor, so the rewritten output of a chunk is
// never longer than its input. A possible tag prefix cut off at a chunk
// boundary ('<' or '/' followed by a partial match of "pre") is not emitted
// but held back and resolved against the following chunk, so a tag split
// across chunks is still recognized and the lookahead never leaves the chunk.
type stripper struct {
	state stripState

	// hold stores a partial tag cut off at a chunk boundary: the leading
	// '<' or '/' and up to two already matched bytes of the tag name.
	hold    [3]byte
	holdLen int
}

func lower(b byte) byte {
	if 'A' <= b && b <= 'Z' {
		return b + 'a' - 'A'
	}

	return b
}

// strip processes one chunk. It returns the bytes held back from previous
// chunks that this chunk resolved (either as a completed tag or as literal
// text), and the rewritten chunk contents. The held slice is only valid until
// the next call. The kept slice aliases the chunk.
//
// Emitting held followed by kept preserves the original byte order. The
// total emitted over all calls plus a final flush never exceeds the total
// input: only CR and LF bytes outside preformatted regions are removed.
func (s *stripper) strip(chunk []byte) (held, kept []byte) {
	var r, w int
	if s.holdLen > 0 {
		held, r = s.resolveHold(chunk)
		if s.holdLen > 0 {
			// boundary tag still incomplete, everything consumed
			return nil, chunk[:0]
		}

		// a completed boundary tag passes its chunk part through verbatim
		w = r
	}

	for r < len(chunk) {
		switch s.state {
		case stateText:
			switch c := chunk[r]; c {
			case '\r', '\n':
				r++
			case '<':
				r, w = s.openTag(chunk, r, w)
			default:
				chunk[w] = c
				w++
				r++
			}

		case statePre:
			r, w = s.copyPre(chunk, r, w)

		default:
			chunk[w] = chunk[r]
			w++
			r++
		}
	}

	return held, chunk[:w]
}

// flush gives up on a pending partial tag, returning its bytes as literal
// text. It is called when the stream ends while a tag check is unresolved.
func (s *stripper) flush() []byte {
	if s.holdLen == 0 {
		return nil
	}

	n := s.holdLen
	s.holdLen = 0
	return s.hold[:n]
}

// resolveHold continues a tag check that was cut off at the previous chunk
// boundary. It returns the held bytes to emit before this chunk's output
// (nil while the check remains unresolved) and the number of chunk bytes
// consumed by the completed match.
func (s *stripper) resolveHold(chunk []byte) (held []byte, consumed int) {
	matched := s.holdLen - 1
	for consumed < len(chunk) && matched+consumed < len(tagName) {
		if lower(chunk[consumed]) != tagName[matched+consumed] {
			// not a pre tag after all: the held bytes are literal
			// text, the examined chunk bytes are left in place to be
			// reprocessed by the caller
			return s.flush(), 0
		}

		consumed++
	}

	if matched+consumed < len(tagName) {
		// the chunk ended and the tag is still a possibility
		copy(s.hold[s.holdLen:], chunk[:consumed])
		s.holdLen += consumed
		return nil, consumed
	}

	if s.hold[0] == '<' {
		s.state = statePre
	} else {
		s.state = stateText
	}

	return s.flush(), consumed
}

// openTag handles a '<' in text state. The '<' is always kept. When the
// following bytes spell the tag name, they are kept too and the state
// switches to statePre. When they don't, only the '<' is consumed and the
// peeked bytes are reprocessed as ordinary text. When the chunk ends before
// the check can be decided, the '<' and the matched bytes move to the hold.
func (s *stripper) openTag(chunk []byte, r, w int) (int, int) {
	n, complete := matchTagName(chunk[r+1:])
	switch {
	case complete:
		w += copy(chunk[w:], chunk[r:r+1+len(tagName)])
		r += 1 + len(tagName)
		s.state = statePre
	case n < 0:
		chunk[w] = '<'
		w++
		r++
	default:
		s.hold[0] = '<'
		copy(s.hold[1:], chunk[r+1:r+1+n])
		s.holdLen = 1 + n
		r = len(chunk)
	}

	return r, w
}

// copyPre copies preformatted content through unchanged. Every '/' starts a
// closing tag check, and a '/' not followed by the tag name stays literal
// content with the scan continuing right after it.
func (s *stripper) copyPre(chunk []byte, r, w int) (int, int) {
	for r < len(chunk) {
		c := chunk[r]
		if c != '/' {
			chunk[w] = c
			w++
			r++
			continue
		}

		n, complete := matchTagName(chunk[r+1:])
		switch {
		case complete:
			w += copy(chunk[w:], chunk[r:r+1+len(tagName)])
			r += 1 + len(tagName)
			s.state = stateText
			return r, w
		case n < 0:
			chunk[w] = c
			w++
			r++
		default:
			s.hold[0] = '/'
			copy(s.hold[1:], chunk[r+1:r+1+n])
			s.holdLen = 1 + n
			return len(chunk), w
		}
	}

	return r, w
}

// matchTagName checks b against the tag name, case-insensitively and bounded
// by the length of b. It returns the number of matched bytes and whether the
// whole tag name was matched. A mismatch is reported as -1, incomplete
// matches (b too short) report how far the match got.
func matchTagName(b []byte) (n int, complete bool) {
	for n < len(tagName) {
		if n == len(b) {
			return n, false
		}

		if lower(b[n]) != tagName[n] {
			return -1, false
		}

		n++
	}

	return n, true
}
