package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

func b64(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

type fakeGmail struct {
	mu      sync.Mutex
	queries []string
	trashed []string
	fetched []string
	failIDs map[string]bool
}

func (f *fakeGmail) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages")
		f.mu.Lock()
		defer f.mu.Unlock()
		switch {
		case path == "" && r.Method == http.MethodGet:
			f.queries = append(f.queries, r.URL.Query().Get("q"))
			if r.URL.Query().Get("pageToken") == "" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"messages":      []map[string]string{{"id": "m1"}, {"id": "m2"}},
					"nextPageToken": "p2",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "m3"}}})
		case strings.HasSuffix(path, "/trash") && r.Method == http.MethodPost:
			id := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/trash")
			if f.failIDs[id] {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 404, "message": "gone"}})
				return
			}
			f.trashed = append(f.trashed, id)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
		case r.Method == http.MethodGet:
			id := strings.TrimPrefix(path, "/")
			assert.Equal(t, "full", r.URL.Query().Get("format"))
			f.fetched = append(f.fetched, id)
			if f.failIDs[id] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           id,
				"internalDate": "1735689600000",
				"payload": map[string]any{
					"mimeType": "multipart/alternative",
					"headers": []map[string]string{
						{"name": "From", "value": "Pitchfork <newsletter@pitchfork.com>"},
						{"name": "Subject", "value": "Best New Albums"},
						{"name": "Date", "value": "Mon, 3 Feb 2025 10:00:00 +0000"},
					},
					"parts": []map[string]any{
						{"mimeType": "text/plain", "body": map[string]string{"data": b64("plain " + id)}},
						{"mimeType": "text/html", "body": map[string]string{"data": b64("<em>" + id + "</em>")}},
					},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestMailbox(t *testing.T, f *fakeGmail, opts Options) *Mailbox {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	svc, err := NewService(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return New(svc, opts, log.New(io.Discard))
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, `from:newsletter@pitchfork.com subject:"Best New Albums"`, SearchQuery("newsletter@pitchfork.com", `Best "New" Albums`))
	assert.Equal(t, "from:a@b.c", SearchQuery("a@b.c", ""))
}

func TestMailbox_SearchFetchArchive(t *testing.T) {
	f := &fakeGmail{failIDs: map[string]bool{"m2": true}}
	mb := newTestMailbox(t, f, Options{})
	ctx := context.Background()

	uids, err := mb.Search(ctx, "newsletter@pitchfork.com", "Best New Albums")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3}, uids)
	assert.Len(t, f.queries, 2)

	emails, err := mb.FetchBatch(ctx, uids)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, uint32(1), emails[0].UID)
	assert.Equal(t, uint32(3), emails[1].UID)
	assert.Equal(t, "<em>m1</em>", emails[0].Body)
	assert.Equal(t, "Pitchfork <newsletter@pitchfork.com>", emails[0].From)
	assert.Equal(t, time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC), emails[0].Date.UTC())

	rep, err := mb.Archive(ctx, []uint32{1, 2, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, Trash, rep.Target)
	assert.Equal(t, []uint32{1, 3}, rep.Moved)
	assert.Equal(t, []uint32{2, 99}, rep.Failed)
	assert.Equal(t, []string{"m1", "m3"}, f.trashed)
}

func TestMailbox_FetchBatchInRequestOrder(t *testing.T) {
	f := &fakeGmail{}
	mb := newTestMailbox(t, f, Options{})
	ctx := context.Background()
	_, err := mb.Search(ctx, "a@b.c", "")
	require.NoError(t, err)

	emails, err := mb.FetchBatch(ctx, []uint32{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, emails, 3)
	assert.Equal(t, []string{"m3", "m1", "m2"}, f.fetched)
	assert.Equal(t, uint32(3), emails[0].UID)
	assert.Equal(t, uint32(2), emails[2].UID)
}

func TestMailbox_FetchBatchStopsOnCancel(t *testing.T) {
	f := &fakeGmail{}
	mb := newTestMailbox(t, f, Options{})
	uids, err := mb.Search(context.Background(), "a@b.c", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mb.FetchBatch(ctx, uids)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.fetched)
}

func TestMailbox_SearchReusesUIDs(t *testing.T) {
	mb := newTestMailbox(t, &fakeGmail{}, Options{})
	first, err := mb.Search(context.Background(), "a@b.c", "")
	require.NoError(t, err)
	second, err := mb.Search(context.Background(), "a@b.c", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMailbox_DryRunDoesNotTrash(t *testing.T) {
	f := &fakeGmail{}
	mb := newTestMailbox(t, f, Options{DryRun: true})
	uids, err := mb.Search(context.Background(), "a@b.c", "")
	require.NoError(t, err)
	rep, err := mb.Archive(context.Background(), uids)
	require.NoError(t, err)
	assert.Empty(t, rep.Moved)
	assert.Empty(t, rep.Failed)
	assert.Empty(t, f.trashed)
}

func TestToRawEmail_PlainFallbackAndInternalDate(t *testing.T) {
	msg := &gmailv1.Message{
		InternalDate: 1735689600000,
		Payload: &gmailv1.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmailv1.MessagePartHeader{{Name: "Date", Value: "garbage"}},
			Body:     &gmailv1.MessagePartBody{Data: b64("The Beatles - Abbey Road")},
		},
	}
	e := toRawEmail(5, msg)
	assert.Equal(t, "The Beatles - Abbey Road", e.Body)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), e.Date.UTC())
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{
		"Mon, 03 Feb 2025 10:00:00 +0000",
		"Mon, 3 Feb 2025 10:00:00 +0000",
		"Mon, 3 Feb 2025 10:00:00 +0000 (UTC)",
		"2025-02-03T10:00:00Z",
	} {
		got, ok := parseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC), got.UTC(), in)
	}
	_, ok := parseDate("yesterday")
	assert.False(t, ok)
}
