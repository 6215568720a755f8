package index

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/dhcgn/mbox-index/model"
)

// Record encoding: uid_be4 | flags_be4 | internal_date_unix_be8 | crc32c

const recordLen = 4 + 4 + 8 + 4

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(rec *model.Record) []byte {
	out := make([]byte, 0, recordLen)
	out = appendBE4(out, rec.UID)
	out = appendBE4(out, uint32(rec.Flags))
	out = appendBE8(out, uint64(rec.InternalDate.Unix()))
	return appendBE4(out, crc32.Checksum(out, castagnoli))
}

func decodeRecord(seq uint64, b []byte) (model.Record, bool) {
	if len(b) != recordLen {
		return model.Record{}, false
	}
	body := b[:recordLen-4]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[recordLen-4:]) {
		return model.Record{}, false
	}
	return model.Record{
		Seq:          seq,
		UID:          binary.BigEndian.Uint32(body[0:4]),
		Flags:        model.Flags(binary.BigEndian.Uint32(body[4:8])),
		InternalDate: time.Unix(int64(binary.BigEndian.Uint64(body[8:16])), 0),
	}, true
}

// EncodeOffset encodes a mailbox offset for the location and size fields.
func EncodeOffset(v int64) []byte {
	return appendBE8(nil, uint64(v))
}

// DecodeOffset reverses EncodeOffset.
func DecodeOffset(b []byte) (int64, bool) {
	if len(b) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

func seqFromKey(key, prefix []byte) (uint64, bool) {
	if len(key) < len(prefix)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]), true
}
