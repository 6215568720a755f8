package mbox

import (
	"bytes"
	"errors"
	"io"

	"github.com/dhcgn/mbox-index/stream"
)

const (
	fromLiteral = "From "
	// separatorPattern starts every message after the first one.
	separatorPattern = "\n" + fromLiteral
	// scanLookback is how many bytes at the end of an unmatched window are
	// kept when the scanner skips forward. A partial separator match at the
	// window's end is at most len(separatorPattern)-1 bytes long, and one more
	// byte keeps a CR in front of it visible. This must track
	// separatorPattern if the literal ever changes.
	scanLookback = len(separatorPattern)
	// MaxFromLineLength bounds the lookahead used to find the end of a
	// separator line.
	MaxFromLineLength = 4096
)

// readMessage advances r to the end of the current message body: just before
// the line terminator of the next "\nFrom " separator, or to the end of the
// stream minus one trailing [\r]\n when this is the last message. It reports
// whether a following separator was found.
func readMessage(r *stream.Reader) (bool, error) {
	pattern := []byte(separatorPattern)
	scanned := 0
	for {
		win, err := r.Window(scanned)
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}

		from := scanned - (len(pattern) - 1)
		if from < 0 {
			from = 0
		}
		if i := bytes.Index(win[from:], pattern); i >= 0 {
			end := from + i
			if end > 0 && win[end-1] == '\r' {
				end--
			}
			r.Skip(end)
			return true, nil
		}

		if err != nil {
			end := len(win)
			if end > 0 && win[end-1] == '\n' {
				end--
				if end > 0 && win[end-1] == '\r' {
					end--
				}
			}
			r.Skip(end)
			return false, nil
		}

		scanned = len(win)
		if scanned > scanLookback {
			r.Skip(scanned - scanLookback)
			scanned = scanLookback
		}
	}
}

// fromLine returns the separator line at the cursor without its line feed,
// or nil when the cursor is not on a well-formed separator line. The line
// feed must be within the first MaxFromLineLength bytes.
func fromLine(r *stream.Reader) ([]byte, error) {
	pos := 0
	for {
		win, err := r.Window(pos)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		limit := len(win)
		if limit > MaxFromLineLength {
			limit = MaxFromLineLength
		}
		if i := bytes.IndexByte(win[pos:limit], '\n'); i >= 0 {
			line := win[:pos+i]
			if !bytes.HasPrefix(line, []byte(fromLiteral)) {
				return nil, nil
			}
			return append([]byte(nil), line...), nil
		}
		pos = len(win)
		if err != nil || pos >= MaxFromLineLength {
			return nil, nil
		}
	}
}

// skipLineTerminator consumes the [\r]\n in front of a separator line. The
// end of the stream counts as a terminator.
func skipLineTerminator(r *stream.Reader) (bool, error) {
	win, err := r.Window(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}

	switch {
	case len(win) == 0:
		return true, nil
	case win[0] == '\n':
		r.Skip(1)
		return true, nil
	case win[0] != '\r':
		return false, nil
	case len(win) == 1:
		r.Skip(1)
		return true, nil
	case win[1] == '\n':
		r.Skip(2)
		return true, nil
	default:
		return false, nil
	}
}
