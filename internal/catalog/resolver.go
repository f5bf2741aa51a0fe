package catalog

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"pitchlist/internal/model"
)

const (
	// MaxQueryLen is the ceiling on the URL-encoded length of a search query.
	MaxQueryLen = 250

	// queryMargin is subtracted from the album budget when a query is shortened.
	queryMargin = 10

	searchLimit    = 5
	shortAlbumWord = 6
)

// AlbumSearcher is the catalog capability the resolver needs.
type AlbumSearcher interface {
	SearchAlbums(ctx context.Context, query string, limit int) ([]model.CatalogMatch, error)
}

// Resolver maps (artist, album) pairs to catalog albums.
type Resolver struct {
	search AlbumSearcher
	logger *log.Logger
}

func NewResolver(search AlbumSearcher, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{search: search, logger: logger.WithPrefix("resolve")}
}

// Resolve tries each query candidate in order and returns the best match of
// the first one with results. Failed searches are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, p model.Pair) (model.CatalogMatch, bool) {
	artist, album := cleanTerm(p.Artist), cleanTerm(p.Album)
	if album == "" {
		return model.CatalogMatch{}, false
	}
	for _, q := range QueryCandidates(artist, album) {
		if ctx.Err() != nil {
			return model.CatalogMatch{}, false
		}
		results, err := r.search.SearchAlbums(ctx, q, searchLimit)
		if err != nil {
			r.logger.Warn("search failed", "query", q, "err", err)
			continue
		}
		r.logger.Debug("search", "query", q, "results", len(results))
		if len(results) == 0 {
			continue
		}
		return bestMatch(results, artist, album), true
	}
	r.logger.Warn("album not found", "artist", p.Artist, "album", p.Album)
	return model.CatalogMatch{}, false
}

type queryForm func(artist, album string) string

var queryForms = []queryForm{
	func(ar, al string) string { return `album:"` + al + `" artist:"` + ar + `"` },
	func(ar, al string) string { return `artist:"` + ar + `" album:"` + firstWords(al, shortAlbumWord) + `"` },
	func(_, al string) string { return `album:"` + al + `"` },
	func(_, al string) string { return al },
}

// QueryCandidates returns the search queries for a pair, most specific
// first, each fitted to MaxQueryLen. Forms that need an artist are left out
// when artist is empty, and duplicate queries are dropped.
func QueryCandidates(artist, album string) []string {
	seen := make(map[string]struct{}, len(queryForms))
	var out []string
	for i, form := range queryForms {
		if artist == "" && i < 2 {
			continue
		}
		if i == 1 && firstWords(album, shortAlbumWord) == album {
			continue
		}
		q := fitQuery(form, artist, album)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}

// fitQuery shortens the album portion until the encoded query fits, and
// hard-truncates the whole query when that is not enough.
func fitQuery(form queryForm, artist, album string) string {
	q := form(artist, album)
	over := encodedLen(q) - MaxQueryLen
	if over <= 0 {
		return q
	}
	keep := utf8.RuneCountInString(album) - over - queryMargin
	if keep < 0 {
		keep = 0
	}
	q = form(artist, strings.TrimSpace(string([]rune(album)[:keep])))
	for encodedLen(q) > MaxQueryLen {
		r := []rune(q)
		q = string(r[:len(r)-1])
	}
	return strings.TrimSpace(q)
}

func encodedLen(s string) int { return len(url.QueryEscape(s)) }

func bestMatch(results []model.CatalogMatch, artist, album string) model.CatalogMatch {
	al, ar := strings.ToLower(album), strings.ToLower(artist)
	for _, m := range results {
		if !strings.Contains(strings.ToLower(m.Name), al) {
			continue
		}
		for _, a := range m.Artists {
			if strings.Contains(strings.ToLower(a), ar) {
				return m
			}
		}
	}
	return results[0]
}

// cleanTerm removes double quotes and collapses whitespace.
func cleanTerm(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, `"`, " ")), " ")
}

func firstWords(s string, n int) string {
	f := strings.Fields(s)
	if len(f) > n {
		f = f[:n]
	}
	return strings.Join(f, " ")
}
