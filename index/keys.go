package index

import (
	"encoding/binary"

	"github.com/dhcgn/mbox-index/model"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - m/{name}                  index metadata
// - r/{seq_be8}               record header (uid, flags, internal date)
// - f/{seq_be8}/{kind}        record field
// - u/{uid_be4}               uid -> seq for committed records

var (
	metaPrefix   = []byte("m/")
	recordPrefix = []byte("r/")
	fieldPrefix  = []byte("f/")
	uidPrefix    = []byte("u/")

	keyNextUID    = metaKey("next-uid")
	keyNextSeq    = metaKey("next-seq")
	keyTail       = metaKey("tail")
	keyDurable    = metaKey("durable")
	keyNeedsCheck = metaKey("needs-check")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	return append(k, name...)
}

// keyRecord builds the record key for an allocation sequence.
func keyRecord(seq uint64) []byte {
	k := make([]byte, 0, len(recordPrefix)+8)
	k = append(k, recordPrefix...)
	return appendBE8(k, seq)
}

// keyFieldPrefix returns the prefix shared by all fields of a record.
func keyFieldPrefix(seq uint64) []byte {
	k := make([]byte, 0, len(fieldPrefix)+10)
	k = append(k, fieldPrefix...)
	k = appendBE8(k, seq)
	return append(k, '/')
}

func keyField(seq uint64, kind model.FieldKind) []byte {
	return append(keyFieldPrefix(seq), byte(kind))
}

func keyUID(uid uint32) []byte {
	k := make([]byte, 0, len(uidPrefix)+4)
	k = append(k, uidPrefix...)
	return appendBE4(k, uid)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
