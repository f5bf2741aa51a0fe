// Package pipeline runs one newsletter-to-playlist pass: search the mailbox,
// aggregate pairs per month, fill the monthly playlists and archive the
// emails that were used.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"pitchlist/internal/aggregate"
	"pitchlist/internal/catalog"
	"pitchlist/internal/model"
)

// ErrNoEmails is returned when the mailbox has no message from the
// configured sender with the configured subject.
var ErrNoEmails = errors.New("no matching newsletter emails")

// Mailbox is a source of newsletter emails that can also move them away.
type Mailbox interface {
	Search(ctx context.Context, sender, subject string) ([]uint32, error)
	FetchBatch(ctx context.Context, uids []uint32) ([]model.RawEmail, error)
	Archive(ctx context.Context, uids []uint32) (model.ArchiveReport, error)
	Close() error
}

// PlaylistFinder returns the playlist for a name, creating it if needed.
type PlaylistFinder interface {
	Ensure(ctx context.Context, name, description string) (model.Playlist, error)
}

// PlaylistAssembler adds the albums of a month to a playlist.
type PlaylistAssembler interface {
	Assemble(ctx context.Context, playlistID string, pairs []model.Pair) (catalog.AssembleResult, error)
}

// Ledger records what a run did. A nil Ledger records nothing.
type Ledger interface {
	RecordMonths(ctx context.Context, results []model.MonthResult) error
	RecordArchive(ctx context.Context, rep model.ArchiveReport, at time.Time) error
}

// Progress is reported between the phases of a run.
type Progress struct {
	Phase string
	Done  int
	Total int
}

// Options configures a Runner.
type Options struct {
	Sender   string
	Subject  string
	Prefix   string
	DryRun   bool
	Location *time.Location
	Progress func(Progress)
}

// Summary describes a finished run.
type Summary struct {
	Emails    int
	Processed []uint32
	Months    []model.MonthResult
	Archive   model.ArchiveReport
}

// Runner wires the mailbox, the aggregator and the catalog together.
type Runner struct {
	mail      Mailbox
	playlists PlaylistFinder
	assembler PlaylistAssembler
	ledger    Ledger
	opts      Options
	logger    *log.Logger
	now       func() time.Time
}

func NewRunner(mail Mailbox, playlists PlaylistFinder, assembler PlaylistAssembler, ledger Ledger, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		mail:      mail,
		playlists: playlists,
		assembler: assembler,
		ledger:    ledger,
		opts:      opts,
		logger:    logger.WithPrefix("pipeline"),
		now:       time.Now,
	}
}

func (r *Runner) progress(phase string, done, total int) {
	if r.opts.Progress != nil {
		r.opts.Progress(Progress{Phase: phase, Done: done, Total: total})
	}
}

// Collect searches and fetches the newsletter emails and aggregates them
// into month buckets. It touches neither the catalog nor the mailbox
// contents.
func (r *Runner) Collect(ctx context.Context) (*aggregate.Aggregator, int, error) {
	r.progress("search", 0, 0)
	uids, err := r.mail.Search(ctx, r.opts.Sender, r.opts.Subject)
	if err != nil {
		return nil, 0, fmt.Errorf("search mailbox: %w", err)
	}
	if len(uids) == 0 {
		return nil, 0, ErrNoEmails
	}
	r.logger.Info("newsletters found", "count", len(uids))

	r.progress("fetch", 0, len(uids))
	emails, err := r.mail.FetchBatch(ctx, uids)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch emails: %w", err)
	}
	r.progress("fetch", len(emails), len(uids))

	agg := aggregate.New(r.opts.Sender, r.opts.Subject, r.logger, aggregate.WithLocation(r.opts.Location))
	agg.AddAll(emails)
	return agg, len(emails), nil
}

// Preview returns the month buckets a run would work on.
func (r *Runner) Preview(ctx context.Context) ([]model.MonthBucket, error) {
	agg, _, err := r.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return agg.Buckets(), nil
}

// Run performs a full pass. Emails are archived only after every month was
// assembled; a failure on any month returns before archiving.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	agg, fetched, err := r.Collect(ctx)
	if err != nil {
		return sum, err
	}
	sum.Emails = fetched
	if agg.Empty() {
		r.logger.Warn("no album pairs in any email, nothing to do", "emails", fetched)
		return sum, nil
	}

	buckets := agg.Buckets()
	for i, b := range buckets {
		r.progress("assemble", i, len(buckets))
		res, err := r.month(ctx, b)
		if err != nil {
			r.record(ctx, sum.Months)
			return sum, err
		}
		sum.Months = append(sum.Months, res)
	}
	r.progress("assemble", len(buckets), len(buckets))
	r.record(ctx, sum.Months)

	sum.Processed = agg.Processed()
	if r.opts.DryRun {
		r.logger.Info("dry run: would archive emails", "count", len(sum.Processed))
		return sum, nil
	}

	r.progress("archive", 0, len(sum.Processed))
	rep, err := r.mail.Archive(ctx, sum.Processed)
	if err != nil {
		return sum, fmt.Errorf("archive emails: %w", err)
	}
	sum.Archive = rep
	r.progress("archive", len(rep.Moved), len(sum.Processed))
	if !rep.OK() {
		r.logger.Warn("some emails were not archived", "failed", rep.Failed)
	}
	if r.ledger != nil {
		if err := r.ledger.RecordArchive(ctx, rep, r.now()); err != nil {
			r.logger.Warn("could not record archive", "err", err)
		}
	}
	return sum, nil
}

func (r *Runner) month(ctx context.Context, b model.MonthBucket) (model.MonthResult, error) {
	name := catalog.PlaylistName(r.opts.Prefix, b.Month)
	p, err := r.playlists.Ensure(ctx, name, "Best new albums of "+b.Month)
	if err != nil {
		return model.MonthResult{}, fmt.Errorf("playlist %q: %w", name, err)
	}

	res := model.MonthResult{
		Month:        b.Month,
		PlaylistID:   p.ID,
		PlaylistName: name,
		Pairs:        len(b.Pairs),
		RanAt:        r.now(),
	}
	if p.ID == "" {
		// dry run with a playlist that does not exist yet
		r.logger.Info("dry run: skipping new playlist", "month", b.Month, "pairs", len(b.Pairs))
		return res, nil
	}

	out, err := r.assembler.Assemble(ctx, p.ID, b.Pairs)
	if err != nil {
		return res, fmt.Errorf("month %s: %w", b.Month, err)
	}
	res.Added = out.Added
	res.Unresolved = out.Unresolved
	r.logger.Info("month done", "month", b.Month, "playlist", name, "added", out.Added, "duplicates", out.Duplicates, "unresolved", out.Unresolved)
	return res, nil
}

func (r *Runner) record(ctx context.Context, months []model.MonthResult) {
	if r.ledger == nil || r.opts.DryRun {
		return
	}
	if err := r.ledger.RecordMonths(ctx, months); err != nil {
		r.logger.Warn("could not record run", "err", err)
	}
}
