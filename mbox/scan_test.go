package mbox

import (
	"strings"
	"testing"

	"github.com/dhcgn/mbox-index/stream"
)

func scanBody(t *testing.T, data string, blockSize int) (body string, found bool) {
	t.Helper()
	r := stream.NewSize(strings.NewReader(data), 0, int64(len(data)), blockSize)
	found, err := readMessage(r)
	if err != nil {
		t.Fatalf("readMessage: %v", err)
	}
	return data[:r.Offset()], found
}

func TestReadMessageBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		body  string
		found bool
	}{
		{name: "crlf before separator", data: "Body1\r\nFrom b 2\nBody2\n", body: "Body1", found: true},
		{name: "lf before separator", data: "Body1\nFrom b 2\n", body: "Body1", found: true},
		{name: "last message lf", data: "Body2\n", body: "Body2"},
		{name: "last message crlf", data: "Body2\r\n", body: "Body2"},
		{name: "last message without newline", data: "Body2", body: "Body2"},
		{name: "only one newline trimmed", data: "Body2\n\n", body: "Body2\n"},
		{name: "mid-line From", data: "Subject: From the team\nbody\n", body: "Subject: From the team\nbody"},
		{name: "escaped From", data: "hi\n>From here\nbye", body: "hi\n>From here\nbye"},
		{name: "From without space", data: "a\nFromage\n", body: "a\nFromage"},
		{name: "empty body", data: "\nFrom x\n", body: "", found: true},
		{name: "empty stream", data: "", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, found := scanBody(t, tt.data, 0)
			if body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
			if found != tt.found {
				t.Errorf("found = %v, want %v", found, tt.found)
			}
		})
	}
}

func TestReadMessageAcrossRefills(t *testing.T) {
	prefix := strings.Repeat("abcdefghij\n", 20) + "last line"
	for _, sep := range []string{"\nFrom next\n", "\r\nFrom next\n"} {
		data := prefix + sep
		for blockSize := 1; blockSize <= 16; blockSize++ {
			body, found := scanBody(t, data, blockSize)
			if !found {
				t.Fatalf("block %d sep %q: separator not found", blockSize, sep)
			}
			if body != prefix {
				t.Fatalf("block %d sep %q: body ends at %d, want %d", blockSize, sep, len(body), len(prefix))
			}
		}
	}
}

func TestFromLine(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
		ok   bool
	}{
		{name: "separator", data: "From a 1\nbody", want: "From a 1", ok: true},
		{name: "bare literal", data: "From \n", want: "From ", ok: true},
		{name: "not a separator", data: "Frm a\n", ok: false},
		{name: "too short", data: "From\n", ok: false},
		{name: "no newline", data: "From a", ok: false},
		{name: "line too long", data: "From " + strings.Repeat("x", 2*MaxFromLineLength) + "\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := stream.NewSize(strings.NewReader(tt.data), 0, int64(len(tt.data)), 16)
			line, err := fromLine(r)
			if err != nil {
				t.Fatalf("fromLine: %v", err)
			}
			if (line != nil) != tt.ok {
				t.Fatalf("line = %q, want ok=%v", line, tt.ok)
			}
			if tt.ok && string(line) != tt.want {
				t.Fatalf("line = %q, want %q", line, tt.want)
			}
			if r.Offset() != 0 {
				t.Fatalf("fromLine moved the cursor to %d", r.Offset())
			}
		})
	}
}

func TestSkipLineTerminator(t *testing.T) {
	tests := []struct {
		data     string
		ok       bool
		consumed int64
	}{
		{data: "\nFrom a\n", ok: true, consumed: 1},
		{data: "\r\nFrom a\n", ok: true, consumed: 2},
		{data: "", ok: true, consumed: 0},
		{data: "\r", ok: true, consumed: 1},
		{data: "From a\n", ok: false},
		{data: "\rFrom a\n", ok: false},
	}

	for _, tt := range tests {
		r := stream.New(strings.NewReader(tt.data), 0, int64(len(tt.data)))
		ok, err := skipLineTerminator(r)
		if err != nil {
			t.Fatalf("%q: %v", tt.data, err)
		}
		if ok != tt.ok {
			t.Fatalf("%q: ok = %v, want %v", tt.data, ok, tt.ok)
		}
		if ok && r.Offset() != tt.consumed {
			t.Fatalf("%q: consumed %d, want %d", tt.data, r.Offset(), tt.consumed)
		}
	}
}

func TestFromLineLimitIgnoresBlockSize(t *testing.T) {
	longest := "From " + strings.Repeat("x", MaxFromLineLength-len("From ")-1)
	tooLong := "From " + strings.Repeat("x", 10*1024)

	for _, blockSize := range []int{16, 1000, stream.DefaultBlockSize} {
		data := longest + "\nbody\n"
		r := stream.NewSize(strings.NewReader(data), 0, int64(len(data)), blockSize)
		line, err := fromLine(r)
		if err != nil {
			t.Fatalf("block %d: %v", blockSize, err)
		}
		if string(line) != longest {
			t.Fatalf("block %d: line of %d bytes rejected", blockSize, len(longest))
		}

		data = tooLong + "\nbody\n"
		r = stream.NewSize(strings.NewReader(data), 0, int64(len(data)), blockSize)
		line, err = fromLine(r)
		if err != nil {
			t.Fatalf("block %d: %v", blockSize, err)
		}
		if line != nil {
			t.Fatalf("block %d: line of %d bytes accepted", blockSize, len(tooLong))
		}
	}
}
