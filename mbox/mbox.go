// Package mbox builds and checks the index of an mbox mailbox.
//
// Appender scans raw mailbox bytes for message boundaries and commits one
// index record per message. Verify cross-checks a finished index against the
// mailbox using an independent mbox reader.
package mbox

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/mbox-index/header"
	"github.com/dhcgn/mbox-index/model"
)

// RecordSource is the read side of the index used by Verify.
type RecordSource interface {
	Records() ([]model.Record, error)
}

// Mismatch describes a committed record that no longer matches the mailbox.
type Mismatch struct {
	UID      uint32
	Location int64
	Reason   string
}

// VerifyReport is the outcome of Verify.
type VerifyReport struct {
	MailboxMessages int
	IndexedMessages int
	Mismatches      []Mismatch
}

// OK reports whether index and mailbox agree.
func (r VerifyReport) OK() bool {
	return r.MailboxMessages == r.IndexedMessages && len(r.Mismatches) == 0
}

// CountMessages counts the messages in an mbox stream.
func CountMessages(r io.Reader) (int, error) {
	reader := mboxlib.NewReader(r)

	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, err
		}
		if _, err := io.Copy(io.Discard, msgReader); err != nil {
			return count, fmt.Errorf("message %d: %w", count, err)
		}
		count++
	}
}

// Verify compares the committed records of src with the mailbox at path:
// the message counts must agree and every record's header must still hash
// to its stored digest.
func Verify(path string, src RecordSource, logger *slog.Logger) (VerifyReport, error) {
	var report VerifyReport

	file, err := os.Open(path)
	if err != nil {
		return report, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	report.MailboxMessages, err = CountMessages(file)
	if err != nil {
		return report, fmt.Errorf("count mbox messages: %w", err)
	}

	records, err := src.Records()
	if err != nil {
		return report, fmt.Errorf("read index: %w", err)
	}
	report.IndexedMessages = len(records)

	info, err := file.Stat()
	if err != nil {
		return report, fmt.Errorf("stat mbox: %w", err)
	}

	for _, rec := range records {
		if rec.End() > info.Size() {
			report.Mismatches = append(report.Mismatches, Mismatch{UID: rec.UID, Location: rec.Location, Reason: "beyond end of mailbox"})
			continue
		}
		hdr := header.NewContext(nil)
		if err := hdr.Parse(io.NewSectionReader(file, rec.Location, rec.Size)); err != nil {
			return report, fmt.Errorf("read message uid %d: %w", rec.UID, err)
		}
		if digest, _ := hdr.Finish(); digest != rec.Digest {
			report.Mismatches = append(report.Mismatches, Mismatch{UID: rec.UID, Location: rec.Location, Reason: "digest mismatch"})
		}
	}

	if logger != nil {
		logger.Debug("verify finished", "mailbox", path, "mailboxMessages", report.MailboxMessages, "indexedMessages", report.IndexedMessages, "mismatches", len(report.Mismatches))
	}
	return report, nil
}
