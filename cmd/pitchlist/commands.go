package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss/table"

	"pitchlist/internal/catalog"
	"pitchlist/internal/config"
	"pitchlist/internal/model"
	"pitchlist/internal/pipeline"
	"pitchlist/internal/tui"
)

const lastSyncKey = "last_sync"

type syncCommand struct {
	app *app
}

func (c *syncCommand) Execute([]string) error {
	a := c.app
	ctx, cancel, err := a.setup(config.Need{Mail: true, Catalog: true})
	if err != nil {
		return err
	}
	defer cancel()
	dry := a.global.DryRun

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Authorize the catalog first so a failing login does not leave an
	// IMAP session idle.
	client, err := a.catalogClient(ctx, db)
	if err != nil {
		return err
	}
	mb, err := a.openMailbox(ctx, db, dry, "", "")
	if err != nil {
		return err
	}
	defer mb.Close()

	resolver := catalog.NewResolver(client, a.logger)
	assembler := catalog.NewAssembler(client, resolver, a.logger,
		catalog.WithPauses(a.cfg.WritePause, a.cfg.ResolvePause),
		catalog.WithDryRun(dry))
	dir := catalog.NewDirectory(client, a.cfg.PlaylistPublic, dry, a.logger)

	runner := pipeline.NewRunner(mb, dir, assembler, db, a.runnerOptions(dry), a.logger)
	sum, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoEmails) {
			return fmt.Errorf("%w from %s with subject %q", err, a.cfg.NewsletterSender, a.cfg.NewsletterSubject)
		}
		return err
	}

	for _, m := range sum.Months {
		a.logger.Info("playlist", "name", m.PlaylistName, "pairs", m.Pairs, "added", m.Added, "unresolved", m.Unresolved)
	}
	a.logger.Info("sync done", "emails", sum.Emails, "processed", len(sum.Processed), "archived", len(sum.Archive.Moved), "not_archived", len(sum.Archive.Failed))
	if !dry {
		if err := db.SetMeta(ctx, lastSyncKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
			a.logger.Warn("could not save sync time", "err", err)
		}
	}
	return nil
}

type previewCommand struct {
	app   *app
	Plain bool `long:"plain" description:"print the months and albums instead of opening the browser"`
}

func (c *previewCommand) Execute([]string) error {
	a := c.app
	ctx, cancel, err := a.setup(config.Need{Mail: true})
	if err != nil {
		return err
	}
	defer cancel()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Always read-only: preview never moves messages.
	mb, err := a.openMailbox(ctx, db, true, "", "")
	if err != nil {
		return err
	}
	defer mb.Close()

	if c.Plain {
		runner := pipeline.NewRunner(mb, nil, nil, nil, a.runnerOptions(true), a.logger)
		buckets, err := runner.Preview(ctx)
		if err != nil {
			return err
		}
		printBuckets(buckets, a.cfg.PlaylistPrefix)
		return nil
	}

	// Log lines would tear the alternate screen, so they go to a file.
	logPath := filepath.Join(a.cfg.Home, "pitchlist.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	a.logger.SetOutput(f)
	defer a.logger.SetOutput(os.Stderr)

	var appModel tui.AppModel
	opts := a.runnerOptions(true)
	opts.Progress = func(p pipeline.Progress) {
		if p.Total > 0 {
			appModel.Progress(fmt.Sprintf("%s... %d / %d", p.Phase, p.Done, p.Total))
		} else {
			appModel.Progress(p.Phase + "...")
		}
	}
	runner := pipeline.NewRunner(mb, nil, nil, nil, opts, a.logger)
	appModel = tui.NewAppModel(func(context.Context) ([]model.MonthBucket, error) {
		return runner.Preview(ctx)
	}, a.cfg.PlaylistPrefix)

	p := tea.NewProgram(&appModel, tea.WithAltScreen(), tea.WithContext(ctx))
	appModel.SetProgram(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	return appModel.Err
}

func printBuckets(buckets []model.MonthBucket, prefix string) {
	if len(buckets) == 0 {
		fmt.Println("No album pairs found.")
		return
	}
	for _, b := range buckets {
		fmt.Printf("%s (%d)\n", catalog.PlaylistName(prefix, b.Month), len(b.Pairs))
		for _, p := range b.Pairs {
			fmt.Printf("  %s - %s\n", p.Artist, p.Album)
		}
	}
}

type pruneCommand struct {
	app *app
}

func (c *pruneCommand) Execute([]string) error {
	a := c.app
	ctx, cancel, err := a.setup(config.Need{Catalog: true})
	if err != nil {
		return err
	}
	defer cancel()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	client, err := a.catalogClient(ctx, db)
	if err != nil {
		return err
	}

	m := catalog.NewMaintainer(client, a.cfg.WritePause, a.global.DryRun, a.logger)
	rep, err := m.Prune(ctx, a.cfg.PlaylistPrefix)
	if err != nil {
		return err
	}
	a.logger.Info("prune done", "playlists", rep.Playlists, "removed", rep.Removed, "failed", rep.Failed)
	return nil
}

type publishCommand struct {
	app *app
}

func (c *publishCommand) Execute([]string) error {
	a := c.app
	ctx, cancel, err := a.setup(config.Need{Catalog: true})
	if err != nil {
		return err
	}
	defer cancel()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	client, err := a.catalogClient(ctx, db)
	if err != nil {
		return err
	}

	m := catalog.NewMaintainer(client, a.cfg.WritePause, a.global.DryRun, a.logger)
	rep, err := m.Publish(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("publish done", "changed", rep.Changed, "already_public", rep.Already, "failed", rep.Failed)
	return nil
}

type trashCommand struct {
	app    *app
	UIDs   string `long:"uids" description:"comma separated UIDs to move" required:"true"`
	Source string `long:"source" description:"mailbox holding the messages (default IMAP_SOURCE)"`
	Target string `long:"target" description:"trash mailbox (default IMAP_TARGET or auto-detect)"`
}

func (c *trashCommand) Execute([]string) error {
	a := c.app
	uids, err := parseUIDs(c.UIDs)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return errors.New("no UIDs given")
	}

	ctx, cancel, err := a.setup(config.Need{Mail: true})
	if err != nil {
		return err
	}
	defer cancel()
	if a.cfg.MailBackend != config.BackendIMAP {
		return fmt.Errorf("trash works on IMAP UIDs; MAIL_BACKEND is %s", a.cfg.MailBackend)
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	mb, err := a.openMailbox(ctx, db, a.global.DryRun, c.Source, c.Target)
	if err != nil {
		return err
	}
	defer mb.Close()

	rep, err := mb.Archive(ctx, uids)
	if err != nil {
		return err
	}
	if !a.global.DryRun {
		if err := db.RecordArchive(ctx, rep, time.Now()); err != nil {
			a.logger.Warn("could not record archive", "err", err)
		}
	}
	a.logger.Info("trash done", "target", rep.Target, "moved", len(rep.Moved), "failed", len(rep.Failed))
	if !rep.OK() {
		return &exitError{code: 2, err: fmt.Errorf("%d of %d messages not moved: %v", len(rep.Failed), len(uids), rep.Failed)}
	}
	return nil
}

// parseUIDs reads a comma separated UID list. Blank entries are skipped and
// repeated UIDs are kept once.
func parseUIDs(s string) ([]uint32, error) {
	var set model.UIDSet
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseUint(field, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid UID %q", field)
		}
		set.Add(uint32(n))
	}
	return set.UIDs(), nil
}

type historyCommand struct {
	app   *app
	Limit int `long:"limit" description:"number of playlist updates to show" default:"20"`
}

func (c *historyCommand) Execute([]string) error {
	a := c.app
	ctx, cancel, err := a.setup(config.Need{})
	if err != nil {
		return err
	}
	defer cancel()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, c.Limit)
	if err != nil {
		return err
	}
	archived, err := db.CountArchived(ctx)
	if err != nil {
		return err
	}
	last, err := db.GetMeta(ctx, lastSyncKey)
	if err != nil {
		return err
	}

	if last == "" {
		last = "never"
	}
	fmt.Printf("Last sync: %s\nEmails archived: %d\n\n", last, archived)
	if len(runs) > 0 {
		fmt.Println(historyTable(runs))
	}
	return nil
}

func historyTable(runs []model.MonthResult) string {
	t := table.New().Headers("RAN AT", "PLAYLIST", "ALBUMS", "ADDED", "UNRESOLVED")
	for _, r := range runs {
		t.Row(
			r.RanAt.Local().Format("2006-01-02 15:04"),
			r.PlaylistName,
			strconv.Itoa(r.Pairs),
			strconv.Itoa(r.Added),
			strconv.Itoa(r.Unresolved),
		)
	}
	return t.Render()
}
