package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"

	"pitchlist/internal/model"
)

const (
	// MaxBatch is the most items one playlist write accepts.
	MaxBatch = 100

	playlistPageSize = 50
	itemsPageSize    = 100
)

// ErrNotFound is returned when the catalog has nothing for a lookup.
var ErrNotFound = errors.New("not found in catalog")

// Client adapts the Spotify Web API SDK to the catalog interfaces used by
// the resolver, the assembler and the playlist maintenance commands. The
// *http.Client it wraps is expected to add the bearer token, e.g. one built
// by oauth2.NewClient.
type Client struct {
	api    *spotify.Client
	logger *log.Logger
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(u string) spotify.ClientOption {
	return spotify.WithBaseURL(strings.TrimRight(u, "/") + "/")
}

// NewClient creates a catalog client. Rate-limited requests are retried
// after the delay the API asks for.
func NewClient(httpClient *http.Client, logger *log.Logger, opts ...spotify.ClientOption) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	opts = append([]spotify.ClientOption{spotify.WithRetry(true)}, opts...)
	return &Client{
		api:    spotify.New(httpClient, opts...),
		logger: logger.WithPrefix("catalog"),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CurrentUser returns the id of the authorised user.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	u, err := c.api.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if u.ID == "" {
		return "", errors.New("catalog returned an empty user id")
	}
	return u.ID, nil
}

// Playlists returns every playlist in the user's library.
func (c *Client) Playlists(ctx context.Context) ([]model.Playlist, error) {
	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	var out []model.Playlist
	for {
		for _, p := range page.Playlists {
			out = append(out, playlistToModel(p))
		}
		err := c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("list playlists: %w", err)
		}
	}
}

// CreatePlaylist creates a playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (model.Playlist, error) {
	p, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return model.Playlist{}, fmt.Errorf("create playlist %q: %w", name, err)
	}
	return playlistToModel(p.SimplePlaylist), nil
}

// SearchAlbums runs an album search.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]model.CatalogMatch, error) {
	if limit <= 0 {
		limit = searchLimit
	}
	res, err := c.api.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(limit))
	if err != nil {
		return nil, err
	}
	if res.Albums == nil {
		return nil, nil
	}
	out := make([]model.CatalogMatch, 0, len(res.Albums.Albums))
	for _, a := range res.Albums.Albums {
		out = append(out, albumToModel(a))
	}
	return out, nil
}

// AlbumFirstTrack returns the first listed track of an album.
func (c *Client) AlbumFirstTrack(ctx context.Context, albumID string) (model.PlaylistTrack, error) {
	page, err := c.api.GetAlbumTracks(ctx, spotify.ID(albumID), spotify.Limit(1))
	if err != nil {
		return model.PlaylistTrack{}, err
	}
	if len(page.Tracks) == 0 || page.Tracks[0].ID == "" {
		return model.PlaylistTrack{}, fmt.Errorf("album %s has no tracks: %w", albumID, ErrNotFound)
	}
	t := page.Tracks[0]
	return model.PlaylistTrack{TrackID: t.ID.String(), URI: string(t.URI), AlbumID: albumID}, nil
}

// PlaylistItems returns every entry of a playlist in playlist order.
// Entries without a track (removed tracks, episodes) keep their position
// with an empty TrackID.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]model.PlaylistTrack, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(itemsPageSize))
	if err != nil {
		return nil, fmt.Errorf("playlist %s items: %w", playlistID, err)
	}
	var out []model.PlaylistTrack
	for {
		for _, it := range page.Items {
			out = append(out, itemToModel(it))
		}
		err := c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("playlist %s items: %w", playlistID, err)
		}
	}
}

// AddTracks appends up to MaxBatch tracks to a playlist.
func (c *Client) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > MaxBatch {
		return fmt.Errorf("add tracks: %d tracks exceeds batch limit %d", len(trackIDs), MaxBatch)
	}
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}
	snap, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return err
	}
	c.logger.Debug("tracks appended", "playlist", playlistID, "count", len(ids), "snapshot", snap)
	return nil
}

// MoveTracks moves the length entries starting at start so they sit before
// the entry at insertBefore. Every entry keeps its added_at.
func (c *Client) MoveTracks(ctx context.Context, playlistID string, start, length, insertBefore int) error {
	_, err := c.api.ReorderPlaylistTracks(ctx, spotify.ID(playlistID), spotify.PlaylistReorderOptions{
		RangeStart:   spotify.Numeric(start),
		RangeLength:  spotify.Numeric(length),
		InsertBefore: spotify.Numeric(insertBefore),
	})
	if err != nil {
		return fmt.Errorf("reorder playlist %s: %w", playlistID, err)
	}
	return nil
}

// Occurrence names a track at specific playlist positions.
type Occurrence struct {
	URI       string
	Positions []int
}

// RemoveOccurrences deletes up to MaxBatch specific occurrences.
func (c *Client) RemoveOccurrences(ctx context.Context, playlistID string, occ []Occurrence) error {
	if len(occ) == 0 {
		return nil
	}
	if len(occ) > MaxBatch {
		return fmt.Errorf("remove tracks: %d items exceeds batch limit %d", len(occ), MaxBatch)
	}
	tracks := make([]spotify.TrackToRemove, len(occ))
	for i, o := range occ {
		tracks[i] = spotify.TrackToRemove{URI: o.URI, Positions: o.Positions}
	}
	_, err := c.api.RemoveTracksFromPlaylistOpt(ctx, spotify.ID(playlistID), tracks, "")
	return err
}

// SetPublic changes the visibility of a playlist.
func (c *Client) SetPublic(ctx context.Context, playlistID string, public bool) error {
	return c.api.ChangePlaylistAccess(ctx, spotify.ID(playlistID), public)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
