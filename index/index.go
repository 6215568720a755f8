// Package index stores the structured index of an mbox mailbox in Pebble.
//
// Records are allocated without a UID. A record only becomes visible to
// readers once AssignUID has been called for it, and AssignUID refuses to run
// before the record has passed a durability barrier (ForceDurable). Records
// left without a UID are treated as deleted.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/emersion/go-imap/v2"

	"github.com/dhcgn/mbox-index/model"
	pebblestore "github.com/dhcgn/mbox-index/storage/pebble"
)

var (
	ErrLocked     = errors.New("index is locked")
	ErrNotLocked  = errors.New("index is not locked for writing")
	ErrNotFound   = errors.New("record not found")
	ErrNotDurable = errors.New("record has not passed the durability barrier")
	ErrCorrupt    = errors.New("corrupt index record")
)

// LockMode selects the access an index lock grants.
type LockMode int

const (
	LockShared LockMode = iota + 1
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// FlagListener is notified after a record's flags changed.
type FlagListener func(rec model.Record, oldFlags, newFlags model.Flags)

// Options configures Open.
type Options struct {
	Dir           string
	MailboxPath   string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Metrics       pebblestore.MetricsHook
	Logger        *slog.Logger
}

// Index is a mailbox index backed by Pebble.
type Index struct {
	db          *pebblestore.DB
	mailboxPath string
	logger      *slog.Logger

	mu         sync.Mutex
	readers    int
	writer     bool
	nextUID    uint32
	nextSeq    uint64
	tail       int64
	durable    uint64
	needsCheck bool
	lastErr    error
	listeners  []FlagListener
}

// Open opens or creates the index stored in opts.Dir.
func Open(opts Options) (*Index, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Dir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Metrics:       opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", opts.Dir, err)
	}

	idx := &Index{
		db:          db,
		mailboxPath: opts.MailboxPath,
		logger:      opts.Logger,
		nextUID:     1,
		nextSeq:     1,
	}
	if err := idx.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) load() error {
	if v, ok, err := idx.getUint(keyNextUID); err != nil {
		return err
	} else if ok {
		idx.nextUID = uint32(v)
	}
	if v, ok, err := idx.getUint(keyNextSeq); err != nil {
		return err
	} else if ok {
		idx.nextSeq = v
	}
	if v, ok, err := idx.getUint(keyTail); err != nil {
		return err
	} else if ok {
		idx.tail = int64(v)
	}
	if v, ok, err := idx.getUint(keyDurable); err != nil {
		return err
	} else if ok {
		idx.durable = v
	}
	if v, err := idx.db.Get(keyNeedsCheck); err == nil {
		idx.needsCheck = len(v) > 0 && v[0] != 0
	} else if !pebblestore.IsNotFound(err) {
		return fmt.Errorf("read needs-check flag: %w", err)
	}
	return nil
}

func (idx *Index) getUint(key []byte) (uint64, bool, error) {
	v, err := idx.db.Get(key)
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read %s: %w", key, err)
	}
	switch len(v) {
	case 4:
		return uint64(binary.BigEndian.Uint32(v)), true, nil
	case 8:
		return binary.BigEndian.Uint64(v), true, nil
	default:
		return 0, false, fmt.Errorf("read %s: %w", key, ErrCorrupt)
	}
}

// Close closes the underlying store.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// MailboxPath returns the path of the mailbox this index describes.
func (idx *Index) MailboxPath() string { return idx.mailboxPath }

// Lock acquires the index lock. It never waits: if the lock is held in a
// conflicting mode ErrLocked is returned.
func (idx *Index) Lock(mode LockMode) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch mode {
	case LockShared:
		if idx.writer {
			return ErrLocked
		}
		idx.readers++
	case LockExclusive:
		if idx.writer || idx.readers > 0 {
			return ErrLocked
		}
		idx.writer = true
	default:
		return fmt.Errorf("invalid lock mode %d", mode)
	}
	return nil
}

// Unlock releases a lock acquired with Lock.
func (idx *Index) Unlock(mode LockMode) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch mode {
	case LockShared:
		if idx.readers > 0 {
			idx.readers--
		}
	case LockExclusive:
		idx.writer = false
	}
}

func (idx *Index) checkWriter() error {
	if !idx.writer {
		return ErrNotLocked
	}
	return nil
}

// Append allocates a record and reserves the UID it will receive once it is
// committed. Reserved UIDs are never handed out again, even if the record is
// discarded.
func (idx *Index) Append(internalDate time.Time) (*model.Record, uint32, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.checkWriter(); err != nil {
		return nil, 0, err
	}

	rec := &model.Record{Seq: idx.nextSeq, InternalDate: internalDate}
	uid := idx.nextUID

	b := idx.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyRecord(rec.Seq), encodeRecord(rec), nil); err != nil {
		return nil, 0, err
	}
	if err := b.Set(keyNextSeq, appendBE8(nil, rec.Seq+1), nil); err != nil {
		return nil, 0, err
	}
	if err := b.Set(keyNextUID, appendBE4(nil, uid+1), nil); err != nil {
		return nil, 0, err
	}
	if err := idx.db.CommitBatch(b); err != nil {
		return nil, 0, fmt.Errorf("append record: %w", err)
	}

	idx.nextSeq++
	idx.nextUID++
	return rec, uid, nil
}

// Update is a field-write transaction on one record.
type Update struct {
	rec    *model.Record
	batch  *pebble.Batch
	fields map[model.FieldKind][]byte
	err    error
	closed bool
}

// BeginUpdate opens an update transaction on rec.
func (idx *Index) BeginUpdate(rec *model.Record) *Update {
	return &Update{
		rec:    rec,
		batch:  idx.db.NewBatch(),
		fields: make(map[model.FieldKind][]byte),
	}
}

// UpdateField stages a field write. Errors are reported by EndUpdate.
func (u *Update) UpdateField(kind model.FieldKind, data []byte) {
	if u.err != nil || u.closed {
		return
	}
	value := append([]byte(nil), data...)
	if err := u.batch.Set(keyField(u.rec.Seq, kind), value, nil); err != nil {
		u.err = fmt.Errorf("stage %s field: %w", kind, err)
		return
	}
	u.fields[kind] = value
}

// Close abandons the staged writes. It is a no-op after EndUpdate.
func (u *Update) Close() {
	if u.closed {
		return
	}
	u.closed = true
	_ = u.batch.Close()
}

// EndUpdate commits the staged fields and copies the well-known ones onto
// the in-memory record.
func (idx *Index) EndUpdate(u *Update) error {
	defer u.Close()
	if u.closed {
		return errors.New("update already ended")
	}
	if u.err != nil {
		return u.err
	}

	idx.mu.Lock()
	err := idx.checkWriter()
	idx.mu.Unlock()
	if err != nil {
		return err
	}

	if err := idx.db.CommitBatch(u.batch); err != nil {
		return fmt.Errorf("commit fields of record %d: %w", u.rec.Seq, err)
	}
	applyFields(u.rec, u.fields)
	return nil
}

func applyFields(rec *model.Record, fields map[model.FieldKind][]byte) {
	if v, ok := DecodeOffset(fields[model.FieldLocation]); ok {
		rec.Location = v
	}
	if v, ok := DecodeOffset(fields[model.FieldSize]); ok {
		rec.Size = v
	}
	if d := fields[model.FieldDigest]; len(d) == len(rec.Digest) {
		copy(rec.Digest[:], d)
	}
}

// OnFlagChange registers a listener for flag changes.
func (idx *Index) OnFlagChange(fn FlagListener) {
	idx.mu.Lock()
	idx.listeners = append(idx.listeners, fn)
	idx.mu.Unlock()
}

// MarkFlagChanges persists rec.Flags and notifies listeners that they changed
// from oldFlags to newFlags.
func (idx *Index) MarkFlagChanges(rec *model.Record, oldFlags, newFlags model.Flags) error {
	idx.mu.Lock()
	if err := idx.checkWriter(); err != nil {
		idx.mu.Unlock()
		return err
	}
	listeners := append([]FlagListener(nil), idx.listeners...)
	idx.mu.Unlock()

	if err := idx.db.Set(keyRecord(rec.Seq), encodeRecord(rec)); err != nil {
		return fmt.Errorf("write flags of record %d: %w", rec.Seq, err)
	}
	for _, fn := range listeners {
		fn(*rec, oldFlags, newFlags)
	}
	return nil
}

// ForceDurable blocks until every write up to and including rec is on
// stable storage.
func (idx *Index) ForceDurable(rec *model.Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.checkWriter(); err != nil {
		return err
	}
	if rec.Seq <= idx.durable {
		return nil
	}
	if err := idx.db.SyncSet(keyDurable, appendBE8(nil, rec.Seq)); err != nil {
		return fmt.Errorf("sync index up to record %d: %w", rec.Seq, err)
	}
	idx.durable = rec.Seq
	return nil
}

// AssignUID makes rec visible under uid. rec must have passed ForceDurable.
func (idx *Index) AssignUID(rec *model.Record, uid uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.checkWriter(); err != nil {
		return err
	}
	if rec.Seq > idx.durable {
		return ErrNotDurable
	}

	committed := *rec
	committed.UID = uid
	tail := idx.tail
	if end := committed.End(); end > tail {
		tail = end
	}

	b := idx.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyRecord(rec.Seq), encodeRecord(&committed), nil); err != nil {
		return err
	}
	if err := b.Set(keyUID(uid), appendBE8(nil, rec.Seq), nil); err != nil {
		return err
	}
	if err := b.Set(keyTail, appendBE8(nil, uint64(tail)), nil); err != nil {
		return err
	}
	if err := idx.db.CommitBatch(b); err != nil {
		return fmt.Errorf("assign uid %d: %w", uid, err)
	}

	rec.UID = uid
	idx.tail = tail
	return nil
}

// Discard removes a record that never received a UID.
func (idx *Index) Discard(rec *model.Record) error {
	if rec.UID != 0 {
		return fmt.Errorf("discard record %d: already committed as uid %d", rec.Seq, rec.UID)
	}
	b := idx.db.NewBatch()
	defer b.Close()
	if err := b.Delete(keyRecord(rec.Seq), nil); err != nil {
		return err
	}
	prefix := keyFieldPrefix(rec.Seq)
	if err := b.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return err
	}
	return idx.db.CommitBatch(b)
}

// SetError records an operator-facing error.
func (idx *Index) SetError(err error) {
	idx.mu.Lock()
	idx.lastErr = err
	idx.mu.Unlock()
	if idx.logger != nil && err != nil {
		idx.logger.Error("index error", "mailbox", idx.mailboxPath, "err", err)
	}
}

// LastError returns the error last passed to SetError.
func (idx *Index) LastError() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastErr
}

// SetNeedsCheck persists the flag requesting a consistency check. Nothing in
// this package clears it.
func (idx *Index) SetNeedsCheck() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.needsCheck {
		return nil
	}
	if err := idx.db.SyncSet(keyNeedsCheck, []byte{1}); err != nil {
		return fmt.Errorf("set needs-check flag: %w", err)
	}
	idx.needsCheck = true
	return nil
}

// NeedsCheck reports whether a consistency check has been requested.
func (idx *Index) NeedsCheck() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.needsCheck
}

// Tail returns the mailbox offset just after the last committed message.
func (idx *Index) Tail() int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.tail
}

// StoreFlags changes the flags of the committed record uid. The caller must
// hold the exclusive lock.
func (idx *Index) StoreFlags(uid uint32, store imap.StoreFlags) (model.Record, error) {
	rec, err := idx.Lookup(uid)
	if err != nil {
		return model.Record{}, err
	}

	old := rec.Flags
	changed := model.FlagsFromIMAP(store.Flags)
	switch store.Op {
	case imap.StoreFlagsSet:
		rec.Flags = changed | old&model.FlagRecent
	case imap.StoreFlagsAdd:
		rec.Flags |= changed
	case imap.StoreFlagsDel:
		rec.Flags &^= changed
	default:
		return model.Record{}, fmt.Errorf("unknown store operation %d", store.Op)
	}
	if rec.Flags == old {
		return rec, nil
	}
	if err := idx.MarkFlagChanges(&rec, old, rec.Flags); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}
