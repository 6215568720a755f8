package model

import (
	"testing"

	"github.com/emersion/go-imap/v2"
)

func TestIMAPFlagsRoundTrip(t *testing.T) {
	flags := FlagSeen | FlagFlagged | FlagRecent
	got := flags.IMAPFlags()
	if len(got) != 2 || got[0] != imap.FlagSeen || got[1] != imap.FlagFlagged {
		t.Fatalf("IMAPFlags() = %v", got)
	}
	if back := FlagsFromIMAP(got); back != FlagSeen|FlagFlagged {
		t.Fatalf("FlagsFromIMAP() = %b", back)
	}
	if FlagsFromIMAP([]imap.Flag{"$Junk"}) != 0 {
		t.Fatal("unknown flags must be ignored")
	}
}

func TestParseFieldKind(t *testing.T) {
	for _, name := range []string{"subject", "From", " message-id ", "DATE"} {
		kind, ok := ParseFieldKind(name)
		if !ok || !kind.IsHeader() {
			t.Fatalf("ParseFieldKind(%q) = %v, %v", name, kind, ok)
		}
	}
	if _, ok := ParseFieldKind("location"); ok {
		t.Fatal("structural fields are not selectable")
	}
	if FieldDigest.IsHeader() {
		t.Fatal("digest is not a header field")
	}
}
