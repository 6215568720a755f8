package mbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCountMessages(t *testing.T) {
	count, err := CountMessages(strings.NewReader(sampleMbox))
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestCountMessagesEmpty(t *testing.T) {
	count, err := CountMessages(strings.NewReader(""))
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func writeMailbox(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox.mbox")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write mailbox: %v", err)
	}
	return path
}

func TestVerify(t *testing.T) {
	idx := newIndex(t)
	if err := appendFrom(t, idx, sampleMbox, 0); err != nil {
		t.Fatalf("append: %v", err)
	}

	t.Run("consistent", func(t *testing.T) {
		report, err := Verify(writeMailbox(t, sampleMbox), idx, nil)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !report.OK() {
			t.Fatalf("report not OK: %+v", report)
		}
		if report.MailboxMessages != 3 || report.IndexedMessages != 3 {
			t.Fatalf("unexpected counts: %+v", report)
		}
	})

	t.Run("flag change keeps digest", func(t *testing.T) {
		changed := strings.Replace(sampleMbox, "Status: RO", "Status: R ", 1)
		report, err := Verify(writeMailbox(t, changed), idx, nil)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if !report.OK() {
			t.Fatalf("report not OK: %+v", report)
		}
	})

	t.Run("header rewritten", func(t *testing.T) {
		changed := strings.Replace(sampleMbox, "Subject: Quarterly numbers", "Subject: Quarterly NUMBERS", 1)
		report, err := Verify(writeMailbox(t, changed), idx, nil)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if report.OK() {
			t.Fatal("expected a mismatch")
		}
		if len(report.Mismatches) != 1 || report.Mismatches[0].UID != 1 {
			t.Fatalf("unexpected mismatches: %+v", report.Mismatches)
		}
	})

	t.Run("truncated mailbox", func(t *testing.T) {
		cut := strings.Index(sampleMbox, "From dave")
		report, err := Verify(writeMailbox(t, sampleMbox[:cut]), idx, nil)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if report.OK() {
			t.Fatal("expected truncated mailbox to fail verification")
		}
		if report.MailboxMessages != 2 {
			t.Fatalf("mailbox messages = %d, want 2", report.MailboxMessages)
		}
	})
}
