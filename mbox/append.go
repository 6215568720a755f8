package mbox

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcgn/mbox-index/header"
	"github.com/dhcgn/mbox-index/index"
	"github.com/dhcgn/mbox-index/model"
	"github.com/dhcgn/mbox-index/stats"
	"github.com/dhcgn/mbox-index/stream"
)

// ErrIntegrity is wrapped by every error reporting that the mailbox does not
// match the layout the index expects.
var ErrIntegrity = errors.New("mbox integrity violation")

// IntegrityError describes where the mailbox stopped matching the expected
// layout.
type IntegrityError struct {
	Path   string
	Offset int64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("error indexing mbox file %s: %s (offset %d)", e.Path, e.Reason, e.Offset)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// Index is the part of the mailbox index the append engine writes through.
type Index interface {
	MailboxPath() string
	Tail() int64
	Lock(mode index.LockMode) error
	Unlock(mode index.LockMode)
	Append(internalDate time.Time) (*model.Record, uint32, error)
	BeginUpdate(rec *model.Record) *index.Update
	EndUpdate(u *index.Update) error
	MarkFlagChanges(rec *model.Record, oldFlags, newFlags model.Flags) error
	ForceDurable(rec *model.Record) error
	AssignUID(rec *model.Record, uid uint32) error
	Discard(rec *model.Record) error
	SetError(err error)
	SetNeedsCheck() error
}

type AppendOptions struct {
	// Cache lists the header fields stored with each record.
	Cache []model.FieldKind
	// Now supplies the internal date of messages whose separator line has
	// no usable timestamp. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
	// Emit receives progress events. Optional.
	Emit func(stats.Event)
}

// Appender indexes messages appended to an mbox file.
type Appender struct {
	idx    Index
	cache  []model.FieldKind
	now    func() time.Time
	logger *slog.Logger
	emit   func(stats.Event)
}

func NewAppender(idx Index, opts AppendOptions) *Appender {
	a := &Appender{
		idx:    idx,
		cache:  opts.Cache,
		now:    opts.Now,
		logger: opts.Logger,
		emit:   opts.Emit,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.emit == nil {
		a.emit = func(stats.Event) {}
	}
	return a
}

// Append indexes every message between the cursor of r and its ceiling.
// Unless r is at absolute offset 0, the cursor must sit on the line
// terminator that followed the last indexed message body.
//
// The index is locked exclusively for the whole call. Messages are committed
// one by one in mailbox order; the first failure stops the append, leaving
// the messages committed so far in place.
func (a *Appender) Append(r *stream.Reader) error {
	if end, err := r.AtEnd(); err != nil {
		return fmt.Errorf("read mailbox: %w", err)
	} else if end {
		return nil
	}

	if err := a.idx.Lock(index.LockExclusive); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer a.idx.Unlock(index.LockExclusive)

	for {
		if r.AbsOffset() != 0 {
			ok, err := skipLineTerminator(r)
			if err != nil {
				return fmt.Errorf("read mailbox: %w", err)
			}
			if !ok {
				return a.integrity("LF not found where expected", r.AbsOffset())
			}
		}

		end, err := r.AtEnd()
		if err != nil {
			return fmt.Errorf("read mailbox: %w", err)
		}
		if end {
			return nil
		}

		if err := a.appendNext(r); err != nil {
			return err
		}
	}
}

// CheckTail returns the offset at which appending resumes for a mailbox of
// size bytes. A mailbox shorter than what is already indexed is an integrity
// violation.
func (a *Appender) CheckTail(size int64) (int64, error) {
	if err := a.idx.Lock(index.LockExclusive); err != nil {
		return 0, fmt.Errorf("lock index: %w", err)
	}
	defer a.idx.Unlock(index.LockExclusive)

	tail := a.idx.Tail()
	if size < tail {
		return tail, a.integrity(fmt.Sprintf("mailbox shrank below indexed size %d", tail), size)
	}
	return tail, nil
}

// appendNext indexes the message whose separator line starts at the cursor
// and leaves the cursor at the end of its body.
func (a *Appender) appendNext(r *stream.Reader) error {
	lineOffset := r.AbsOffset()
	line, err := fromLine(r)
	if err != nil {
		return fmt.Errorf("read mailbox: %w", err)
	}
	if line == nil {
		return a.integrity("From-line not found where expected", lineOffset)
	}

	internalDate, ok := ParseFromLineDate(line)
	if !ok {
		internalDate = a.now()
	}

	r.Skip(len(line) + 1)
	start, location := r.Offset(), r.AbsOffset()

	if _, err := readMessage(r); err != nil {
		return fmt.Errorf("read mailbox: %w", err)
	}
	stop := r.Offset()
	a.emit(stats.Event{Stage: stats.StageScan, Type: stats.EventTypeScanned, Offset: location, Bytes: stop - start})

	rec, uid, err := a.idx.Append(internalDate)
	if err != nil {
		return a.fail(fmt.Errorf("allocate record: %w", err))
	}

	if err := a.commit(r, rec, uid, start, stop, location); err != nil {
		if derr := a.idx.Discard(rec); derr != nil && a.logger != nil {
			a.logger.Warn("discard uncommitted record", "seq", rec.Seq, "err", derr)
		}
		a.emit(stats.Event{Stage: stats.StageIndex, Type: stats.EventTypeDiscarded, Offset: location})
		return a.fail(err)
	}

	a.emit(stats.Event{Stage: stats.StageIndex, Type: stats.EventTypeIndexed, UID: uid, Offset: location, Bytes: stop - start})
	if a.logger != nil {
		a.logger.Debug("indexed message", "uid", uid, "location", location, "size", stop-start, "flags", rec.Flags)
	}
	return nil
}

// commit writes everything known about the message into rec and, once that
// is durable, makes it visible under uid.
func (a *Appender) commit(r *stream.Reader, rec *model.Record, uid uint32, start, stop, location int64) error {
	u := a.idx.BeginUpdate(rec)
	defer u.Close()

	u.UpdateField(model.FieldLocation, index.EncodeOffset(location))
	u.UpdateField(model.FieldSize, index.EncodeOffset(stop-start))

	hdr := header.NewContext(a.cache)
	if err := r.Bounded(start, stop, hdr.Parse); err != nil {
		return fmt.Errorf("parse header at %d: %w", location, err)
	}
	if hdr.Malformed() && a.logger != nil {
		a.logger.Warn("malformed message header", "mailbox", a.idx.MailboxPath(), "location", location)
	}

	digest, flags := hdr.Finish()
	u.UpdateField(model.FieldDigest, digest[:])
	for _, kind := range a.cache {
		if v, ok := hdr.Cached()[kind]; ok {
			u.UpdateField(kind, v)
		}
	}

	if err := a.idx.EndUpdate(u); err != nil {
		return err
	}

	rec.Flags = flags
	if err := a.idx.MarkFlagChanges(rec, 0, flags); err != nil {
		return err
	}

	if err := a.idx.ForceDurable(rec); err != nil {
		return err
	}
	return a.idx.AssignUID(rec, uid)
}

func (a *Appender) integrity(reason string, offset int64) error {
	err := &IntegrityError{Path: a.idx.MailboxPath(), Offset: offset, Reason: reason}
	a.idx.SetError(err)
	if ferr := a.idx.SetNeedsCheck(); ferr != nil && a.logger != nil {
		a.logger.Error("persist needs-check flag", "mailbox", err.Path, "err", ferr)
	}
	a.emit(stats.Event{Stage: stats.StageScan, Type: stats.EventTypeIntegrity, Offset: offset, Err: err})
	return err
}

func (a *Appender) fail(err error) error {
	a.emit(stats.Event{Stage: stats.StageIndex, Type: stats.EventTypeError, Err: err})
	return err
}
