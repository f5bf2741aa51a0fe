package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"pitchlist/internal/auth"
	"pitchlist/internal/catalog"
	"pitchlist/internal/config"
	"pitchlist/internal/gmail"
	"pitchlist/internal/mailbox"
	"pitchlist/internal/pipeline"
	"pitchlist/internal/store"
)

// app holds what every command shares once the options are parsed.
type app struct {
	global *GlobalOptions
	logger *log.Logger
	cfg    *config.Config
}

// setup loads and validates the configuration and returns a context that is
// cancelled on interrupt.
func (a *app) setup(need config.Need) (context.Context, context.CancelFunc, error) {
	cfg, err := config.Load(a.global.EnvFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(need); err != nil {
		return nil, nil, err
	}
	a.cfg = cfg
	a.logger.SetLevel(cfg.LogLevel)
	if a.global.Verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, nil
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	db, err := store.NewSQLiteStore(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (a *app) flow() auth.Flow {
	return auth.Flow{Open: auth.OpenBrowser}
}

// openMailbox connects the configured backend. source and target override
// the configured IMAP mailboxes when not empty.
func (a *app) openMailbox(ctx context.Context, db *store.SQLiteStore, dryRun bool, source, target string) (pipeline.Mailbox, error) {
	switch a.cfg.MailBackend {
	case config.BackendGmail:
		oc, err := auth.GmailConfig(a.cfg.Home)
		if err != nil {
			return nil, err
		}
		hc, err := auth.Client(ctx, oc, db.CredentialStore("gmail"), a.flow(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("gmail authorization: %w", err)
		}
		svc, err := gmail.NewService(ctx, hc)
		if err != nil {
			return nil, err
		}
		return gmail.New(svc, gmail.Options{Pause: a.cfg.ArchivePause, DryRun: dryRun}, a.logger), nil
	default:
		if source == "" {
			source = a.cfg.IMAPSource
		}
		if target == "" {
			target = a.cfg.IMAPTarget
		}
		mb, err := mailbox.Dial(ctx, mailbox.Options{
			Addr:   a.cfg.IMAPAddr(),
			User:   a.cfg.EmailUser,
			Pass:   a.cfg.EmailPass,
			Source: source,
			Target: target,
			Pause:  a.cfg.ArchivePause,
			DryRun: dryRun,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		return mb, nil
	}
}

// catalogClient authorizes against Spotify, reusing the token kept in db.
func (a *app) catalogClient(ctx context.Context, db *store.SQLiteStore) (*catalog.Client, error) {
	oc := auth.SpotifyConfig(a.cfg.SpotifyClientID, a.cfg.SpotifyClientSecret, a.cfg.SpotifyRedirectURI)
	hc, err := auth.Client(ctx, oc, db.CredentialStore("spotify"), a.flow(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("spotify authorization: %w", err)
	}
	return catalog.NewClient(hc, a.logger), nil
}

func (a *app) runnerOptions(dryRun bool) pipeline.Options {
	return pipeline.Options{
		Sender:  a.cfg.NewsletterSender,
		Subject: a.cfg.NewsletterSubject,
		Prefix:  a.cfg.PlaylistPrefix,
		DryRun:  dryRun,
		Progress: func(p pipeline.Progress) {
			a.logger.Debug("progress", "phase", p.Phase, "done", p.Done, "total", p.Total)
		},
	}
}
