// Package header reads the header block of an mbox message and derives the
// values the index stores for it: a content digest, the message flags kept
// in the Status and X-Status fields, and a small set of cached fields.
package header

import (
	"bufio"
	"crypto/md5"
	"errors"
	"hash"
	"io"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/dhcgn/mbox-index/model"
)

// DefaultCache lists the fields cached when no explicit list is configured.
var DefaultCache = []model.FieldKind{
	model.FieldSubject,
	model.FieldFrom,
	model.FieldMessageID,
	model.FieldDate,
}

// Fields maintained by mbox writers rather than by the message author. They
// change when flags change and are left out of the digest.
var internalFields = map[string]struct{}{
	"status":         {},
	"x-status":       {},
	"x-uid":          {},
	"x-keywords":     {},
	"x-imap":         {},
	"x-imapbase":     {},
	"content-length": {},
}

// Context accumulates the digest and flags of a single message.
type Context struct {
	digest    hash.Hash
	flags     model.Flags
	old       bool
	cache     []model.FieldKind
	cached    map[model.FieldKind][]byte
	malformed bool
	finished  bool
}

// NewContext returns a Context caching the given fields.
func NewContext(cache []model.FieldKind) *Context {
	return &Context{
		digest: md5.New(),
		cache:  cache,
		cached: make(map[model.FieldKind][]byte, len(cache)),
	}
}

// Parse consumes the header block from r. Syntax errors end the header at
// the offending line and are not returned; errors from r are.
func (c *Context) Parse(r io.Reader) error {
	src := &readErr{r: r}
	h, err := textproto.ReadHeader(bufio.NewReader(src))
	if src.err != nil {
		return src.err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		c.malformed = true
	}

	fields := h.Fields()
	for fields.Next() {
		c.field(fields.Key(), fields.Value())
	}
	c.cacheFields(mail.Header{Header: gomessage.Header{Header: h}})
	return nil
}

// Malformed reports whether the header block ended at a syntax error.
func (c *Context) Malformed() bool { return c.malformed }

// Finish returns the digest and flags. The Context must not be used after.
func (c *Context) Finish() ([16]byte, model.Flags) {
	var sum [16]byte
	if c.finished {
		return sum, c.flags
	}
	c.finished = true
	copy(sum[:], c.digest.Sum(nil))
	if !c.old {
		c.flags |= model.FlagRecent
	}
	return sum, c.flags
}

// Cached returns the cached field values by kind.
func (c *Context) Cached() map[model.FieldKind][]byte { return c.cached }

func (c *Context) field(key, value string) {
	name := strings.ToLower(key)
	switch name {
	case "status":
		for _, ch := range value {
			switch ch {
			case 'R':
				c.flags |= model.FlagSeen
			case 'O':
				c.old = true
			}
		}
	case "x-status":
		for _, ch := range value {
			switch ch {
			case 'A':
				c.flags |= model.FlagAnswered
			case 'F':
				c.flags |= model.FlagFlagged
			case 'T':
				c.flags |= model.FlagDraft
			case 'D':
				c.flags |= model.FlagDeleted
			}
		}
	}

	if _, skip := internalFields[name]; skip {
		return
	}
	io.WriteString(c.digest, name)
	io.WriteString(c.digest, ":")
	io.WriteString(c.digest, strings.TrimSpace(value))
	io.WriteString(c.digest, "\n")
}

func (c *Context) cacheFields(h mail.Header) {
	for _, kind := range c.cache {
		var value string
		switch kind {
		case model.FieldSubject:
			s, err := h.Subject()
			if err != nil {
				s = h.Get("Subject")
			}
			value = s
		case model.FieldFrom:
			value = h.Get("From")
			if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
				value = list[0].Address
			}
		case model.FieldMessageID:
			id, err := h.MessageID()
			if err != nil || id == "" {
				id = strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
			}
			value = id
		case model.FieldDate:
			value = h.Get("Date")
			if t, err := h.Date(); err == nil && !t.IsZero() {
				value = t.UTC().Format(time.RFC3339)
			}
		}
		if value != "" {
			c.cached[kind] = []byte(value)
		}
	}
}

// readErr remembers the first non-EOF error returned by the wrapped reader so
// that I/O failures can be told apart from header syntax errors.
type readErr struct {
	r   io.Reader
	err error
}

func (r *readErr) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && r.err == nil {
		r.err = err
	}
	return n, err
}
