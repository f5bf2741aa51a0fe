// Package auth obtains and caches OAuth tokens for the catalog and Gmail.
package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"
)

// SpotifyScopes are the permissions needed to read and write playlists.
var SpotifyScopes = []string{
	"playlist-read-private",
	"playlist-modify-private",
	"playlist-modify-public",
}

// SpotifyConfig returns the OAuth configuration for the Spotify Web API.
func SpotifyConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     spotify.Endpoint,
		Scopes:       SpotifyScopes,
	}
}

// CredentialStore persists a token between runs. Load returns nil, nil when
// nothing has been stored yet.
type CredentialStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// Flow controls the interactive part of the authorization code grant.
type Flow struct {
	In              io.Reader              // manual paste input, defaults to os.Stdin
	Out             io.Writer              // instructions, defaults to os.Stderr
	LoopbackTimeout time.Duration          // wait for the redirect before asking for a paste
	Open            func(url string) error // e.g. OpenBrowser; nil only prints the URL
}

func (f Flow) withDefaults() Flow {
	if f.In == nil {
		f.In = os.Stdin
	}
	if f.Out == nil {
		f.Out = os.Stderr
	}
	if f.LoopbackTimeout <= 0 {
		f.LoopbackTimeout = 120 * time.Second
	}
	return f
}

// Authorize returns a token source for cfg. A stored token is reused;
// otherwise the user is sent through the browser flow. Every token the
// source hands out that differs from the last one is written back to store.
func Authorize(ctx context.Context, cfg *oauth2.Config, store CredentialStore, flow Flow, logger *log.Logger) (oauth2.TokenSource, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("auth")

	tok, err := store.Load(ctx)
	if err != nil {
		logger.Warn("stored token unreadable, re-authorizing", "err", err)
		tok = nil
	}
	if tok == nil || (tok.RefreshToken == "" && !tok.Valid()) {
		tok, err = tokenFromWeb(ctx, cfg, flow.withDefaults(), logger)
		if err != nil {
			return nil, err
		}
		if err := store.Save(ctx, tok); err != nil {
			return nil, fmt.Errorf("save token: %w", err)
		}
	}

	return &persistingSource{
		ctx:    ctx,
		base:   cfg.TokenSource(ctx, tok),
		store:  store,
		last:   tok.AccessToken,
		logger: logger,
	}, nil
}

// Client is Authorize followed by oauth2.NewClient.
func Client(ctx context.Context, cfg *oauth2.Config, store CredentialStore, flow Flow, logger *log.Logger) (*http.Client, error) {
	ts, err := Authorize(ctx, cfg, store, flow, logger)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

type persistingSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	store  CredentialStore
	logger *log.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(s.ctx, tok); err != nil {
			s.logger.Warn("could not persist refreshed token", "err", err)
		} else {
			s.logger.Debug("refreshed token saved")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

// tokenFromWeb listens for the OAuth redirect on the loopback address named
// by cfg.RedirectURL. If that cannot be bound or nothing arrives in time,
// the user pastes the code or the full redirect URL instead.
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, flow Flow, logger *log.Logger) (*oauth2.Token, error) {
	verifier := oauth2.GenerateVerifier()
	state := rand.Text()
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)}

	// active is the config whose redirect URL went into the auth URL.
	active := cfg
	exchange := func(code string) (*oauth2.Token, error) {
		fmt.Fprintln(flow.Out, "Exchanging code for token…")
		tok, err := active.Exchange(ctx, strings.TrimSpace(code), oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		fmt.Fprintln(flow.Out, "Authentication successful.")
		return tok, nil
	}

	ln, redirect, err := listenRedirect(cfg.RedirectURL)
	if err != nil {
		logger.Warn("loopback redirect unavailable", "redirect", cfg.RedirectURL, "err", err)
	} else {
		loop := *cfg
		loop.RedirectURL = redirect.String()
		active = &loop
		path := redirect.Path
		if path == "" {
			path = "/"
		}
		codeCh := make(chan string, 1)
		mux := http.NewServeMux()
		srv := &http.Server{ReadHeaderTimeout: 5 * time.Second, Handler: mux}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if e := q.Get("error"); e != "" {
				http.Error(w, "Authorization failed: "+e, http.StatusBadRequest)
				return
			}
			code := q.Get("code")
			if code == "" || q.Get("state") != state {
				http.Error(w, "Missing 'code' or bad 'state' parameter", http.StatusBadRequest)
				return
			}
			fmt.Fprintln(w, "Authentication complete. You can close this window.")
			select {
			case codeCh <- code:
			default:
			}
		})
		go func() { _ = srv.Serve(ln) }()
		defer func() { _ = srv.Shutdown(context.Background()) }()

		authURL := loop.AuthCodeURL(state, opts...)
		if flow.Open != nil {
			if err := flow.Open(authURL); err != nil {
				logger.Debug("could not open browser", "err", err)
			}
		}
		fmt.Fprintln(flow.Out, "Open this URL in your browser to authorize pitchlist:")
		fmt.Fprintln(flow.Out, authURL)
		fmt.Fprintf(flow.Out, "Waiting for redirect on %s …\n", loop.RedirectURL)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case code := <-codeCh:
			return exchange(code)
		case <-time.After(flow.LoopbackTimeout):
			fmt.Fprintln(flow.Out, "Timeout waiting for redirect; falling back to manual paste.")
		}
	}

	fmt.Fprintln(flow.Out, "Open this URL in your browser to authorize pitchlist:")
	fmt.Fprintln(flow.Out, active.AuthCodeURL(state, opts...))
	fmt.Fprintln(flow.Out, "")
	fmt.Fprintln(flow.Out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(flow.Out, "> ")

	sc := bufio.NewScanner(flow.In)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read auth code: %w", err)
		}
		return nil, errors.New("empty authorization code")
	}
	code, err := CodeFromInput(sc.Text())
	if err != nil {
		return nil, err
	}
	return exchange(code)
}

// CodeFromInput accepts either a bare authorization code or the full
// redirect URL carrying it.
func CodeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}

// listenRedirect binds the host:port of a loopback redirect URL. A URL
// without a port gets a free one, and the returned URL names it.
func listenRedirect(redirect string) (net.Listener, *url.URL, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return nil, nil, err
	}
	if u.Scheme != "http" {
		return nil, nil, fmt.Errorf("redirect scheme %q is not loopback http", u.Scheme)
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return nil, nil, fmt.Errorf("redirect host %q is not a loopback address", host)
	}
	port := u.Port()
	if port == "" {
		port = "0"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, nil, err
	}
	bound := *u
	bound.Host = net.JoinHostPort(host, fmt.Sprint(ln.Addr().(*net.TCPAddr).Port))
	return ln, &bound, nil
}
