package catalog

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"pitchlist/internal/model"
)

// Library is the playlist management surface of the catalog.
type Library interface {
	CurrentUser(ctx context.Context) (string, error)
	Playlists(ctx context.Context) ([]model.Playlist, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (model.Playlist, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error)
	RemoveOccurrences(ctx context.Context, playlistID string, occ []Occurrence) error
	SetPublic(ctx context.Context, playlistID string, public bool) error
}

// Directory finds playlists by name, creating them on demand. The user's
// playlist list is read once and then kept up to date locally.
type Directory struct {
	lib    Library
	public bool
	dryRun bool
	logger *log.Logger

	userID string
	byName map[string]model.Playlist
}

func NewDirectory(lib Library, public, dryRun bool, logger *log.Logger) *Directory {
	if logger == nil {
		logger = log.Default()
	}
	return &Directory{lib: lib, public: public, dryRun: dryRun, logger: logger.WithPrefix("playlists")}
}

func (d *Directory) load(ctx context.Context) error {
	if d.byName != nil {
		return nil
	}
	uid, err := d.lib.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("current user: %w", err)
	}
	lists, err := d.lib.Playlists(ctx)
	if err != nil {
		return err
	}
	d.userID = uid
	d.byName = make(map[string]model.Playlist, len(lists))
	for _, p := range lists {
		if p.Owner != "" && p.Owner != uid {
			continue
		}
		k := nameKey(p.Name)
		if _, ok := d.byName[k]; !ok {
			d.byName[k] = p
		}
	}
	return nil
}

// Ensure returns the user's playlist called name, creating it if needed.
// In dry-run a missing playlist is reported with an empty ID.
func (d *Directory) Ensure(ctx context.Context, name, description string) (model.Playlist, error) {
	if err := d.load(ctx); err != nil {
		return model.Playlist{}, err
	}
	if p, ok := d.byName[nameKey(name)]; ok {
		return p, nil
	}
	if d.dryRun {
		d.logger.Info("dry run: would create playlist", "name", name)
		return model.Playlist{Name: name, Owner: d.userID, Public: d.public}, nil
	}
	p, err := d.lib.CreatePlaylist(ctx, d.userID, name, description, d.public)
	if err != nil {
		return model.Playlist{}, err
	}
	d.logger.Info("playlist created", "name", name, "id", p.ID)
	d.byName[nameKey(name)] = p
	return p, nil
}

func nameKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

var monthSuffixRe = regexp.MustCompile(`^[\s:\-–|]*\d{4}-\d{2}$`)

// MatchesPlaylistName reports whether name is a monthly playlist of prefix:
// the prefix, any run of separators and a YYYY-MM month, compared without
// regard to case or surrounding space.
func MatchesPlaylistName(name, prefix string) bool {
	n, p := nameKey(name), nameKey(prefix)
	if p == "" || !strings.HasPrefix(n, p) {
		return false
	}
	return monthSuffixRe.MatchString(n[len(p):])
}

// Maintainer runs bulk operations over the user's playlists.
type Maintainer struct {
	lib    Library
	pause  time.Duration
	dryRun bool
	logger *log.Logger
}

func NewMaintainer(lib Library, pause time.Duration, dryRun bool, logger *log.Logger) *Maintainer {
	if logger == nil {
		logger = log.Default()
	}
	return &Maintainer{lib: lib, pause: pause, dryRun: dryRun, logger: logger.WithPrefix("maintain")}
}

// PruneReport counts the result of Prune.
type PruneReport struct {
	Playlists int
	Removed   int
	Failed    int
}

// DuplicateAlbumOccurrences lists every entry after the first of each
// album, addressed by playlist position.
func DuplicateAlbumOccurrences(items []model.PlaylistTrack) []Occurrence {
	seen := make(map[string]struct{})
	var out []Occurrence
	for pos, t := range items {
		if t.URI == "" || t.AlbumID == "" {
			continue
		}
		if _, ok := seen[t.AlbumID]; !ok {
			seen[t.AlbumID] = struct{}{}
			continue
		}
		out = append(out, Occurrence{URI: t.URI, Positions: []int{pos}})
	}
	return out
}

// Prune keeps one track per album in every monthly playlist of prefix
// owned by the user. A failing playlist is logged and counted.
func (m *Maintainer) Prune(ctx context.Context, prefix string) (PruneReport, error) {
	var rep PruneReport
	uid, err := m.lib.CurrentUser(ctx)
	if err != nil {
		return rep, fmt.Errorf("current user: %w", err)
	}
	lists, err := m.lib.Playlists(ctx)
	if err != nil {
		return rep, err
	}
	for _, p := range lists {
		if !MatchesPlaylistName(p.Name, prefix) || (p.Owner != "" && p.Owner != uid) {
			continue
		}
		rep.Playlists++
		n, err := m.prunePlaylist(ctx, p)
		rep.Removed += n
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			m.logger.Error("prune failed", "playlist", p.Name, "err", err)
			rep.Failed++
		}
	}
	return rep, nil
}

func (m *Maintainer) prunePlaylist(ctx context.Context, p model.Playlist) (int, error) {
	items, err := m.lib.PlaylistItems(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	dups := DuplicateAlbumOccurrences(items)
	if len(dups) == 0 {
		m.logger.Debug("no duplicates", "playlist", p.Name)
		return 0, nil
	}
	if m.dryRun {
		m.logger.Info("dry run: would remove duplicates", "playlist", p.Name, "count", len(dups))
		return 0, nil
	}
	// Later chunks go first so earlier positions stay valid.
	chunks := Chunk(dups, MaxBatch)
	removed := 0
	for i := len(chunks) - 1; i >= 0; i-- {
		if err := m.lib.RemoveOccurrences(ctx, p.ID, chunks[i]); err != nil {
			return removed, err
		}
		removed += len(chunks[i])
		if err := sleep(ctx, m.pause); err != nil {
			return removed, err
		}
	}
	m.logger.Info("duplicates removed", "playlist", p.Name, "count", removed)
	return removed, nil
}

// PublishReport counts the result of Publish.
type PublishReport struct {
	Changed int
	Already int
	Failed  int
}

// Publish makes every playlist owned by the user public.
func (m *Maintainer) Publish(ctx context.Context) (PublishReport, error) {
	var rep PublishReport
	uid, err := m.lib.CurrentUser(ctx)
	if err != nil {
		return rep, fmt.Errorf("current user: %w", err)
	}
	lists, err := m.lib.Playlists(ctx)
	if err != nil {
		return rep, err
	}
	for _, p := range lists {
		if p.Owner != "" && p.Owner != uid {
			continue
		}
		if p.Public {
			rep.Already++
			continue
		}
		if m.dryRun {
			m.logger.Info("dry run: would publish", "playlist", p.Name)
			continue
		}
		if err := m.lib.SetPublic(ctx, p.ID, true); err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			m.logger.Error("publish failed", "playlist", p.Name, "err", err)
			rep.Failed++
			continue
		}
		rep.Changed++
		m.logger.Info("published", "playlist", p.Name)
		if err := sleep(ctx, m.pause); err != nil {
			return rep, err
		}
	}
	return rep, nil
}
