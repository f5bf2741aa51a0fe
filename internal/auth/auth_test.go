package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type memStore struct {
	tok   *oauth2.Token
	saves int
}

func (m *memStore) Load(context.Context) (*oauth2.Token, error) { return m.tok, nil }

func (m *memStore) Save(_ context.Context, tok *oauth2.Token) error {
	m.tok = tok
	m.saves++
	return nil
}

func tokenServer(t *testing.T, access string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"refresh_token": "refresh-" + r.Form.Get("grant_type"),
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  redirect,
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/authorize", TokenURL: tokenURL},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := FileStore{Path: filepath.Join(t.TempDir(), "nested", "token.json")}

	tok, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tok)

	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour).Round(time.Second)}
	require.NoError(t, fs.Save(context.Background(), want))

	got, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Expiry))
}

func TestCodeFromInput(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  abc123 ", want: "abc123"},
		{in: "http://127.0.0.1:8888/callback?code=xyz&state=s", want: "xyz"},
		{in: "https://example.com/cb?state=s", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CodeFromInput(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestAuthorize_ReusesStoredToken(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{AccessToken: "cached", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}
	cfg := testConfig("http://127.0.0.1:1/never", "https://example.com/cb")

	ts, err := Authorize(context.Background(), cfg, store, Flow{In: strings.NewReader(""), Out: io.Discard}, log.New(io.Discard))
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
	assert.Zero(t, store.saves)
}

func TestAuthorize_PersistsRefreshedToken(t *testing.T) {
	srv := tokenServer(t, "fresh")
	store := &memStore{tok: &oauth2.Token{AccessToken: "stale", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}}

	ts, err := Authorize(context.Background(), testConfig(srv.URL, "https://example.com/cb"), store, Flow{Out: io.Discard}, log.New(io.Discard))
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "fresh", store.tok.AccessToken)

	_, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
}

func TestAuthorize_ManualPaste(t *testing.T) {
	srv := tokenServer(t, "pasted")
	store := &memStore{}
	flow := Flow{In: strings.NewReader("https://example.com/cb?code=the-code&state=x\n"), Out: io.Discard}

	ts, err := Authorize(context.Background(), testConfig(srv.URL, "https://example.com/cb"), store, flow, log.New(io.Discard))
	require.NoError(t, err)
	require.NotNil(t, store.tok)
	assert.Equal(t, "pasted", store.tok.AccessToken)
	assert.Equal(t, "refresh-authorization_code", store.tok.RefreshToken)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "pasted", tok.AccessToken)
}

func TestAuthorize_LoopbackRedirect(t *testing.T) {
	srv := tokenServer(t, "loopback")
	store := &memStore{}
	pr, pw := io.Pipe()

	go func() {
		var state string
		sc := bufio.NewScanner(pr)
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "https://accounts.example.com/") {
				u, err := url.Parse(line)
				if err == nil {
					state = u.Query().Get("state")
				}
			}
			if rest, ok := strings.CutPrefix(line, "Waiting for redirect on "); ok {
				target := strings.TrimSuffix(rest, " …")
				resp, err := http.Get(target + "?code=c1&state=" + url.QueryEscape(state))
				if err == nil {
					resp.Body.Close()
				}
			}
		}
	}()

	flow := Flow{In: strings.NewReader(""), Out: pw, LoopbackTimeout: 10 * time.Second}
	_, err := Authorize(context.Background(), testConfig(srv.URL, "http://127.0.0.1/callback"), store, flow, log.New(io.Discard))
	pw.Close()
	require.NoError(t, err)
	assert.Equal(t, "loopback", store.tok.AccessToken)
}

func TestListenRedirect_RejectsRemoteHosts(t *testing.T) {
	_, _, err := listenRedirect("http://example.com/cb")
	assert.Error(t, err)
	_, _, err = listenRedirect("https://127.0.0.1/cb")
	assert.Error(t, err)

	ln, u, err := listenRedirect("http://127.0.0.1/cb")
	require.NoError(t, err)
	defer ln.Close()
	assert.NotEqual(t, "0", u.Port())
	assert.Equal(t, "/cb", u.Path)
}
