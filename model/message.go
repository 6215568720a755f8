package model

import (
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Flags is the persistent flag bitset of an indexed message.
type Flags uint32

const (
	FlagSeen Flags = 1 << iota
	FlagAnswered
	FlagFlagged
	FlagDeleted
	FlagDraft
	FlagRecent
)

var flagNames = []struct {
	flag Flags
	imap imap.Flag
}{
	{FlagSeen, imap.FlagSeen},
	{FlagAnswered, imap.FlagAnswered},
	{FlagFlagged, imap.FlagFlagged},
	{FlagDeleted, imap.FlagDeleted},
	{FlagDraft, imap.FlagDraft},
}

// Has reports whether all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// IMAPFlags returns the system flags in IMAP notation. Recent is session
// state in IMAP and is not included.
func (f Flags) IMAPFlags() []imap.Flag {
	var out []imap.Flag
	for _, n := range flagNames {
		if f.Has(n.flag) {
			out = append(out, n.imap)
		}
	}
	return out
}

// FlagsFromIMAP converts IMAP system flags. Unknown flags are ignored.
func FlagsFromIMAP(flags []imap.Flag) Flags {
	var out Flags
	for _, flag := range flags {
		for _, n := range flagNames {
			if n.imap == flag {
				out |= n.flag
			}
		}
	}
	return out
}

// FieldKind identifies a field stored alongside a record.
type FieldKind uint8

const (
	FieldLocation FieldKind = iota + 1
	FieldDigest
	FieldSize
	FieldSubject
	FieldFrom
	FieldMessageID
	FieldDate
)

// IsHeader reports whether k is a cached header field rather than one of the
// structural fields every record carries.
func (k FieldKind) IsHeader() bool {
	return k >= FieldSubject && k <= FieldDate
}

func (k FieldKind) String() string {
	switch k {
	case FieldLocation:
		return "location"
	case FieldDigest:
		return "digest"
	case FieldSize:
		return "size"
	case FieldSubject:
		return "subject"
	case FieldFrom:
		return "from"
	case FieldMessageID:
		return "message-id"
	case FieldDate:
		return "date"
	default:
		return "unknown"
	}
}

// Record represents one message in the index. A zero UID marks a record that
// was never committed, which readers treat the same as a deleted one.
type Record struct {
	Seq          uint64
	UID          uint32
	InternalDate time.Time
	Flags        Flags
	Location     int64
	Size         int64
	Digest       [16]byte
}

// End returns the mailbox offset just after the message body.
func (r Record) End() int64 {
	return r.Location + r.Size
}

// Status summarises the visible contents of an index.
type Status struct {
	Messages   int
	Seen       int
	Deleted    int
	Flagged    int
	NextUID    uint32
	Tail       int64
	Durable    uint64
	NeedsCheck bool
}

// ParseFieldKind maps a header name to the field it is cached under.
func ParseFieldKind(name string) (FieldKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "subject":
		return FieldSubject, true
	case "from":
		return FieldFrom, true
	case "message-id":
		return FieldMessageID, true
	case "date":
		return FieldDate, true
	default:
		return 0, false
	}
}
