package nonewlines

import (
	"errors"
	"io"
)

const readBufferSize = 8 << 10

// ErrClosed is returned by Read after the reader was closed.
var ErrClosed = errors.New("reader closed")

// stripReader streams the body of one response through a stripper. It owns
// the state of the response, so preformatted regions and partial tags span
// chunk boundaries without rebuffering the body.
type stripReader struct {
	source  io.ReadCloser
	stripr  stripper
	ready   []byte
	buf     []byte
	removed int64
	onClose func(removed int64)
	err     error
	closed  bool
}

func newStripReader(source io.ReadCloser, onClose func(removed int64)) *stripReader {
	return &stripReader{
		source:  source,
		buf:     make([]byte, readBufferSize),
		onClose: onClose,
	}
}

func (r *stripReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}

	var count int
	for {
		n := copy(p, r.ready)
		p, r.ready = p[n:], r.ready[n:]
		count += n
		if len(p) == 0 {
			return count, nil
		}

		if r.err != nil {
			if count > 0 {
				return count, nil
			}

			return 0, r.err
		}

		n, err := r.source.Read(r.buf)
		if n > 0 {
			held, kept := r.stripr.strip(r.buf[:n])
			r.removed += int64(n - len(held) - len(kept))
			r.ready = append(r.ready, held...)
			r.ready = append(r.ready, kept...)
		}

		if err != nil {
			// an unresolved partial tag at stream end is literal text;
			// its bytes were accounted as removed when they got held
			tail := r.stripr.flush()
			r.ready = append(r.ready, tail...)
			r.removed -= int64(len(tail))
			r.err = err
			continue
		}

		if n == 0 {
			return count, nil
		}
	}
}

// Close reports the stream stats and closes the source body.
func (r *stripReader) Close() error {
	if r.closed {
		return nil
	}

	r.closed = true
	if r.onClose != nil {
		r.onClose(r.removed)
	}

	return r.source.Close()
}
