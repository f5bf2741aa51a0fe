package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"pitchlist/internal/model"
)

// PlaylistWriter is the catalog capability the assembler needs.
type PlaylistWriter interface {
	AlbumFirstTrack(ctx context.Context, albumID string) (model.PlaylistTrack, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	MoveTracks(ctx context.Context, playlistID string, start, length, insertBefore int) error
}

// PairResolver maps a pair to a catalog album.
type PairResolver interface {
	Resolve(ctx context.Context, p model.Pair) (model.CatalogMatch, bool)
}

// AssembleResult summarises one playlist update.
type AssembleResult struct {
	Added      int
	Duplicates int
	Unresolved int
	TrackIDs   []string // tracks added, or that would be added in dry-run
}

// Assembler adds one track per album to a playlist and keeps it ordered
// newest first.
type Assembler struct {
	api          PlaylistWriter
	resolver     PairResolver
	writePause   time.Duration
	resolvePause time.Duration
	dryRun       bool
	logger       *log.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithPauses sets the delay after each write chunk and between resolutions.
func WithPauses(write, resolve time.Duration) AssemblerOption {
	return func(a *Assembler) {
		a.writePause = write
		a.resolvePause = resolve
	}
}

// WithDryRun makes Assemble resolve and report without writing.
func WithDryRun(dry bool) AssemblerOption {
	return func(a *Assembler) { a.dryRun = dry }
}

func NewAssembler(api PlaylistWriter, resolver PairResolver, logger *log.Logger, opts ...AssemblerOption) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	a := &Assembler{
		api:          api,
		resolver:     resolver,
		writePause:   time.Second,
		resolvePause: 300 * time.Millisecond,
		logger:       logger.WithPrefix("assemble"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble resolves pairs and appends the first track of every album not
// yet in the playlist. Unresolved pairs are counted and skipped. Errors
// reading or writing the playlist are returned.
func (a *Assembler) Assemble(ctx context.Context, playlistID string, pairs []model.Pair) (AssembleResult, error) {
	var res AssembleResult

	existing, err := a.api.PlaylistItems(ctx, playlistID)
	if err != nil {
		return res, fmt.Errorf("read playlist %s: %w", playlistID, err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		if t.TrackID != "" {
			have[t.TrackID] = struct{}{}
		}
	}

	for i, p := range pairs {
		if i > 0 {
			if err := sleep(ctx, a.resolvePause); err != nil {
				return res, err
			}
		}
		match, ok := a.resolver.Resolve(ctx, p)
		if !ok {
			res.Unresolved++
			continue
		}
		track, err := a.api.AlbumFirstTrack(ctx, match.ID)
		if err != nil {
			a.logger.Warn("no track for album", "artist", p.Artist, "album", p.Album, "album_id", match.ID, "err", err)
			res.Unresolved++
			continue
		}
		if _, dup := have[track.TrackID]; dup {
			res.Duplicates++
			continue
		}
		have[track.TrackID] = struct{}{}
		res.TrackIDs = append(res.TrackIDs, track.TrackID)
		a.logger.Debug("queued", "artist", p.Artist, "album", match.Name, "uri", track.URI)
	}

	if len(res.TrackIDs) == 0 {
		a.logger.Info("nothing new", "playlist", playlistID, "unresolved", res.Unresolved)
		return res, nil
	}
	if a.dryRun {
		a.logger.Info("dry run: would add tracks", "playlist", playlistID, "count", len(res.TrackIDs))
		return res, nil
	}

	for _, chunk := range Chunk(res.TrackIDs, MaxBatch) {
		if err := a.api.AddTracks(ctx, playlistID, chunk); err != nil {
			return res, fmt.Errorf("add to playlist %s: %w", playlistID, err)
		}
		res.Added += len(chunk)
		if err := sleep(ctx, a.writePause); err != nil {
			return res, err
		}
	}
	a.logger.Info("tracks added", "playlist", playlistID, "count", res.Added)

	if err := a.reorder(ctx, playlistID, res.Added); err != nil {
		return res, err
	}
	return res, nil
}

// reorder moves the block of added tracks from the end of the playlist to
// the top in a single call, so the newest tracks come first. Every other
// entry, including slots whose track is gone, keeps its place and added_at.
func (a *Assembler) reorder(ctx context.Context, playlistID string, added int) error {
	items, err := a.api.PlaylistItems(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("re-read playlist %s: %w", playlistID, err)
	}
	start := len(items) - added
	if start < 0 {
		return fmt.Errorf("reorder playlist %s: %d entries after adding %d", playlistID, len(items), added)
	}
	if start == 0 {
		return nil
	}
	if err := a.api.MoveTracks(ctx, playlistID, start, added, 0); err != nil {
		return err
	}
	a.logger.Debug("moved new tracks to top", "playlist", playlistID, "from", start, "count", added)
	return nil
}

// PlaylistName returns the monthly playlist name for month (YYYY-MM).
func PlaylistName(prefix, month string) string {
	return strings.TrimSpace(prefix) + " " + month
}
