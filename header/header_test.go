package header

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mbox-index/model"
)

func parse(t *testing.T, raw string) *Context {
	t.Helper()
	ctx := NewContext(DefaultCache)
	require.NoError(t, ctx.Parse(strings.NewReader(raw)))
	return ctx
}

func TestFlagsFromStatusFields(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		flags model.Flags
	}{
		{
			name:  "new message is recent",
			raw:   "Subject: hi\n\nbody\n",
			flags: model.FlagRecent,
		},
		{
			name:  "read and old",
			raw:   "Status: RO\nSubject: hi\n\nbody\n",
			flags: model.FlagSeen,
		},
		{
			name:  "x-status bits",
			raw:   "Status: O\nX-Status: AFTD\n\n",
			flags: model.FlagAnswered | model.FlagFlagged | model.FlagDraft | model.FlagDeleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, flags := parse(t, tt.raw).Finish()
			require.Equal(t, tt.flags, flags)
		})
	}
}

func TestDigestIgnoresStatusFields(t *testing.T) {
	a, _ := parse(t, "Subject: hi\nFrom: a@example.org\n\nbody\n").Finish()
	b, _ := parse(t, "Subject: hi\nStatus: RO\nFrom: a@example.org\nX-UID: 7\n\nother body\n").Finish()
	c, _ := parse(t, "Subject: bye\nFrom: a@example.org\n\nbody\n").Finish()

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestCachedFields(t *testing.T) {
	raw := "From: Alice <alice@example.org>\n" +
		"Subject: =?utf-8?q?caf=C3=A9?=\n" +
		"Message-ID: <abc@example.org>\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 +0000\n\nbody\n"

	cached := parse(t, raw).Cached()
	require.Equal(t, "alice@example.org", string(cached[model.FieldFrom]))
	require.Equal(t, "café", string(cached[model.FieldSubject]))
	require.Equal(t, "abc@example.org", string(cached[model.FieldMessageID]))
	require.Equal(t, "2006-01-02T15:04:05Z", string(cached[model.FieldDate]))
}

func TestHeaderWithoutBody(t *testing.T) {
	ctx := parse(t, "Subject: only header\nStatus: R\n")
	_, flags := ctx.Finish()
	require.True(t, flags.Has(model.FlagSeen))
	require.False(t, ctx.Malformed())
}

func TestMalformedHeaderIsTolerated(t *testing.T) {
	ctx := parse(t, "Subject: ok\nthis is not a header\n\nbody\n")
	require.True(t, ctx.Malformed())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadErrorIsReturned(t *testing.T) {
	ctx := NewContext(nil)
	err := ctx.Parse(io.MultiReader(strings.NewReader("Subject: x\n"), failingReader{}))
	require.EqualError(t, err, "disk gone")
}
