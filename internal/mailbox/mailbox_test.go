package mailbox

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseMessage_PrefersHTML(t *testing.T) {
	raw := crlf(`From: Pitchfork <newsletter@pitchfork.com>
Subject: =?UTF-8?Q?Best_New_Albums?=
Date: Tue, 04 Mar 2025 10:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Beach House - Bloom
--b1
Content-Type: text/html; charset=utf-8

<p><strong>Beach House</strong></p><p><em>Bloom</em></p>
--b1--
`)
	e, err := ParseMessage(42, raw, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), e.UID)
	assert.Equal(t, "Pitchfork <newsletter@pitchfork.com>", e.From)
	assert.Equal(t, "=?UTF-8?Q?Best_New_Albums?=", e.Subject)
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), e.Date.UTC())
	assert.Contains(t, e.Body, "<em>Bloom</em>")
}

func TestParseMessage_PlainTextOnly(t *testing.T) {
	raw := crlf(`From: newsletter@pitchfork.com
Subject: Best New Albums
Content-Type: text/plain; charset=utf-8

The Beatles - Abbey Road
`)
	fallback := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)
	e, err := ParseMessage(7, raw, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, e.Date)
	assert.Contains(t, e.Body, "The Beatles - Abbey Road")
}

func TestParseMessage_Latin1Charset(t *testing.T) {
	raw := []byte("From: a@b.c\r\nSubject: x\r\nContent-Type: text/html; charset=iso-8859-1\r\n\r\n<em>Bj\xf6rk</em>\r\n")
	e, err := ParseMessage(1, raw, time.Time{})
	require.NoError(t, err)
	assert.Contains(t, e.Body, "Björk")
}

func TestPickTrash(t *testing.T) {
	tests := []struct {
		name  string
		boxes []mailboxInfo
		want  string
	}{
		{
			name: "special use wins",
			boxes: []mailboxInfo{
				{Name: "Old Trash"},
				{Name: "Deleted Messages", Attrs: []imap.MailboxAttr{imap.MailboxAttrTrash}},
			},
			want: "Deleted Messages",
		},
		{
			name:  "keyword",
			boxes: []mailboxInfo{{Name: "INBOX"}, {Name: "Sent"}, {Name: "Papierkorb"}},
			want:  "Papierkorb",
		},
		{
			name:  "non ascii keyword",
			boxes: []mailboxInfo{{Name: "INBOX"}, {Name: "Gelöscht"}},
			want:  "Gelöscht",
		},
		{
			name:  "none",
			boxes: []mailboxInfo{{Name: "INBOX"}, {Name: "Archive"}},
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pickTrash(tt.boxes))
		})
	}
}

func TestArchiveEach_CountsFailures(t *testing.T) {
	rep := archiveEach(context.Background(), []uint32{1, 2, 3}, 0, log.New(io.Discard), func(uid uint32) error {
		if uid == 2 {
			return errors.New("NO [TRYCREATE]")
		}
		return nil
	})
	assert.Equal(t, []uint32{1, 3}, rep.Moved)
	assert.Equal(t, []uint32{2}, rep.Failed)
	assert.False(t, rep.OK())
}

func TestArchiveEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	rep := archiveEach(ctx, []uint32{1, 2, 3}, 0, log.New(io.Discard), func(uint32) error {
		calls++
		cancel()
		return nil
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, []uint32{1}, rep.Moved)
	assert.Equal(t, []uint32{2, 3}, rep.Failed)
}
