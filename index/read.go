package index

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/dhcgn/mbox-index/model"
	pebblestore "github.com/dhcgn/mbox-index/storage/pebble"
)

// Records returns every committed record in allocation order. Records without
// a UID are skipped.
func (idx *Index) Records() ([]model.Record, error) {
	var out []model.Record
	err := idx.scanRecords(func(rec model.Record) error {
		if rec.UID == 0 {
			return nil
		}
		if err := idx.loadFields(&rec); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (idx *Index) scanRecords(fn func(model.Record) error) error {
	it, err := idx.db.NewIter(&pebble.IterOptions{
		LowerBound: recordPrefix,
		UpperBound: prefixEnd(recordPrefix),
	})
	if err != nil {
		return err
	}
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		seq, ok := seqFromKey(it.Key(), recordPrefix)
		if !ok {
			return fmt.Errorf("record key %x: %w", it.Key(), ErrCorrupt)
		}
		rec, ok := decodeRecord(seq, it.Value())
		if !ok {
			return fmt.Errorf("record %d: %w", seq, ErrCorrupt)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return it.Error()
}

// Lookup returns the committed record with the given UID.
func (idx *Index) Lookup(uid uint32) (model.Record, error) {
	v, err := idx.db.Get(keyUID(uid))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return model.Record{}, fmt.Errorf("uid %d: %w", uid, ErrNotFound)
		}
		return model.Record{}, err
	}
	if len(v) != 8 {
		return model.Record{}, fmt.Errorf("uid %d: %w", uid, ErrCorrupt)
	}
	seq := binary.BigEndian.Uint64(v)

	raw, err := idx.db.Get(keyRecord(seq))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return model.Record{}, fmt.Errorf("uid %d: %w", uid, ErrNotFound)
		}
		return model.Record{}, err
	}
	rec, ok := decodeRecord(seq, raw)
	if !ok {
		return model.Record{}, fmt.Errorf("record %d: %w", seq, ErrCorrupt)
	}
	if rec.UID != uid {
		return model.Record{}, fmt.Errorf("uid %d: %w", uid, ErrNotFound)
	}
	if err := idx.loadFields(&rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

// Fields returns every stored field of rec.
func (idx *Index) Fields(rec model.Record) (map[model.FieldKind][]byte, error) {
	prefix := keyFieldPrefix(rec.Seq)
	it, err := idx.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	fields := make(map[model.FieldKind][]byte)
	for it.First(); it.Valid(); it.Next() {
		key := it.Key()
		if len(key) != len(prefix)+1 || !bytes.HasPrefix(key, prefix) {
			continue
		}
		fields[model.FieldKind(key[len(prefix)])] = append([]byte(nil), it.Value()...)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return fields, nil
}

func (idx *Index) loadFields(rec *model.Record) error {
	fields, err := idx.Fields(*rec)
	if err != nil {
		return fmt.Errorf("fields of record %d: %w", rec.Seq, err)
	}
	applyFields(rec, fields)
	return nil
}

// Status summarises the committed records and the index state.
func (idx *Index) Status() (model.Status, error) {
	var st model.Status
	err := idx.scanRecords(func(rec model.Record) error {
		if rec.UID == 0 {
			return nil
		}
		st.Messages++
		if rec.Flags.Has(model.FlagSeen) {
			st.Seen++
		}
		if rec.Flags.Has(model.FlagDeleted) {
			st.Deleted++
		}
		if rec.Flags.Has(model.FlagFlagged) {
			st.Flagged++
		}
		return nil
	})
	if err != nil {
		return model.Status{}, err
	}

	idx.mu.Lock()
	st.NextUID = idx.nextUID
	st.Tail = idx.tail
	st.Durable = idx.durable
	st.NeedsCheck = idx.needsCheck
	idx.mu.Unlock()
	return st, nil
}
