// Package stream provides the forward reader the mbox append engine scans.
//
// A Reader exposes a window of buffered bytes starting at its cursor, a soft
// ceiling (Size) that bounds every read, and the absolute offset of its
// logical origin (StartOffset). Offsets returned by Offset and accepted by
// Seek are logical, i.e. relative to StartOffset.
package stream

import (
	"errors"
	"fmt"
	"io"
)

// DefaultBlockSize is the read granularity used when none is configured.
const DefaultBlockSize = 32 * 1024

// Reader is a windowed reader over an io.ReaderAt.
type Reader struct {
	src         io.ReaderAt
	startOffset int64
	blockSize   int

	buf      []byte
	bufStart int64
	offset   int64
	size     int64
	srcEnd   int64
}

// New returns a Reader over src whose logical offset 0 is the absolute offset
// start and whose ceiling is size bytes past it.
func New(src io.ReaderAt, start, size int64) *Reader {
	return NewSize(src, start, size, DefaultBlockSize)
}

// NewSize is New with an explicit read block size.
func NewSize(src io.ReaderAt, start, size int64, blockSize int) *Reader {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if size < 0 {
		size = 0
	}
	return &Reader{
		src:         src,
		startOffset: start,
		blockSize:   blockSize,
		size:        size,
		srcEnd:      -1,
	}
}

// StartOffset returns the absolute offset of logical offset 0.
func (r *Reader) StartOffset() int64 { return r.startOffset }

// Offset returns the logical cursor.
func (r *Reader) Offset() int64 { return r.offset }

// AbsOffset returns the absolute cursor.
func (r *Reader) AbsOffset() int64 { return r.startOffset + r.offset }

// Size returns the soft ceiling.
func (r *Reader) Size() int64 { return r.size }

// SetSize moves the soft ceiling. Buffered data beyond it stays cached but is
// not returned until the ceiling is raised again.
func (r *Reader) SetSize(size int64) {
	if size < 0 {
		size = 0
	}
	r.size = size
}

// AtEnd reports whether no unread bytes remain below the ceiling.
func (r *Reader) AtEnd() (bool, error) {
	data, err := r.Window(0)
	if len(data) > 0 {
		return false, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// Skip advances the cursor by n bytes, never past the ceiling.
func (r *Reader) Skip(n int) {
	if n <= 0 {
		return
	}
	r.offset += int64(n)
	if r.offset > r.size {
		r.offset = r.size
	}
}

// Seek moves the cursor to the logical offset.
func (r *Reader) Seek(offset int64) {
	if offset < 0 {
		offset = 0
	}
	if offset < r.bufStart || offset > r.bufStart+int64(len(r.buf)) {
		r.buf = r.buf[:0]
		r.bufStart = offset
	}
	r.offset = offset
}

// Window returns the bytes between the cursor and the ceiling that are
// currently buffered, reading from the source until more than have bytes are
// available. When the ceiling or the end of the source is reached first it
// returns whatever is left together with io.EOF.
func (r *Reader) Window(have int) ([]byte, error) {
	if data := r.buffered(); len(data) > have {
		return data, nil
	}
	if err := r.fill(have + 1); err != nil {
		return r.buffered(), err
	}
	data := r.buffered()
	if len(data) > have {
		return data, nil
	}
	return data, io.EOF
}

// Read implements io.Reader within the ceiling.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data, err := r.Window(0)
	if len(data) == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	n := copy(p, data)
	r.offset += int64(n)
	return n, nil
}

// Bounded lends the reader to fn as a view of the logical range [from, to).
// The ceiling and cursor in effect before the call are restored when fn
// returns, including when it fails or panics.
func (r *Reader) Bounded(from, to int64, fn func(io.Reader) error) error {
	if from > to {
		return fmt.Errorf("stream: invalid range [%d, %d)", from, to)
	}
	oldSize, oldOffset := r.size, r.offset
	defer func() {
		r.size = oldSize
		r.Seek(oldOffset)
	}()

	if to < r.size {
		r.size = to
	}
	r.Seek(from)
	return fn(r)
}

func (r *Reader) buffered() []byte {
	start := r.offset - r.bufStart
	end := int64(len(r.buf))
	if limit := r.size - r.bufStart; end > limit {
		end = limit
	}
	if start < 0 || start >= end {
		return nil
	}
	return r.buf[start:end]
}

// fill reads until need bytes past the cursor are buffered, the ceiling is
// reached, or the source is exhausted.
func (r *Reader) fill(need int) error {
	r.compact()

	for {
		bufEnd := r.bufStart + int64(len(r.buf))
		if bufEnd-r.offset >= int64(need) || bufEnd >= r.size {
			return nil
		}
		if r.srcEnd >= 0 && bufEnd >= r.srcEnd {
			return nil
		}

		want := r.blockSize
		if missing := need - int(bufEnd-r.offset); missing > want {
			want = missing
		}
		if limit := r.size - bufEnd; int64(want) > limit {
			want = int(limit)
		}

		old := len(r.buf)
		if cap(r.buf)-old < want {
			grown := make([]byte, old, old+want)
			copy(grown, r.buf)
			r.buf = grown
		}
		r.buf = r.buf[:old+want]
		n, err := r.src.ReadAt(r.buf[old:], r.startOffset+bufEnd)
		r.buf = r.buf[:old+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.srcEnd = bufEnd + int64(n)
				return nil
			}
			return fmt.Errorf("stream: read at %d: %w", r.startOffset+bufEnd, err)
		}
		if n == 0 {
			return io.ErrNoProgress
		}
	}
}

// compact drops buffered bytes before the cursor.
func (r *Reader) compact() {
	if r.offset <= r.bufStart {
		if r.offset < r.bufStart {
			r.buf = r.buf[:0]
			r.bufStart = r.offset
		}
		return
	}
	drop := r.offset - r.bufStart
	if drop >= int64(len(r.buf)) {
		r.buf = r.buf[:0]
	} else {
		n := copy(r.buf, r.buf[drop:])
		r.buf = r.buf[:n]
	}
	r.bufStart = r.offset
}
