package mbox

import (
	"testing"
	"time"
)

func TestParseFromLineDate(t *testing.T) {
	tests := []struct {
		line string
		want time.Time
		ok   bool
	}{
		{
			line: "From alice@example.org Mon Jan  2 15:04:05 2006",
			want: time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From alice@example.org Mon Jan 2 15:04 2006",
			want: time.Date(2006, time.January, 2, 15, 4, 0, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From dave@example.org Wed Mar  1 18:00:00 +0100 2006",
			want: time.Date(2006, time.March, 1, 17, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From eve Thu Apr 13 08:15:00 PDT 2023",
			want: time.Date(2023, time.April, 13, 8, 15, 0, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From old Fri Dec 31 23:59:59 99",
			want: time.Date(1999, time.December, 31, 23, 59, 59, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From \"John Doe\" Sat Jul  4 12:00:00 2020",
			want: time.Date(2020, time.July, 4, 12, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From  Mon Jan  2 15:04:05 2006",
			want: time.Date(2006, time.January, 2, 15, 4, 5, 0, time.UTC),
			ok:   true,
		},
		{
			line: "From mon Tue Jan  3 10:00:00 2006",
			want: time.Date(2006, time.January, 3, 10, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{line: "From a", ok: false},
		{line: "From a 1", ok: false},
		{line: "From a Mon Feb 30 10:00:00 2006", ok: false},
		{line: "From a Mon Jan  2 25:00:00 2006", ok: false},
		{line: "From a Mon Foo  2 10:00:00 2006", ok: false},
		{line: "From a Mon Jan  2 10:00:00 +0100", ok: false},
		{line: "Frm a Mon Jan  2 10:00:00 2006", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseFromLineDate([]byte(tt.line))
		if ok != tt.ok {
			t.Fatalf("%q: ok = %v, want %v", tt.line, ok, tt.ok)
		}
		if ok && !got.Equal(tt.want) {
			t.Fatalf("%q: got %v, want %v", tt.line, got, tt.want)
		}
	}
}
