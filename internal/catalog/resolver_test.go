package catalog

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitchlist/internal/model"
)

type fakeSearch struct {
	queries []string
	answer  func(q string) ([]model.CatalogMatch, error)
}

func (f *fakeSearch) SearchAlbums(_ context.Context, q string, _ int) ([]model.CatalogMatch, error) {
	f.queries = append(f.queries, q)
	return f.answer(q)
}

func TestQueryCandidates_Order(t *testing.T) {
	got := QueryCandidates("Pink Floyd", "The Dark Side of the Moon Remastered")
	assert.Equal(t, []string{
		`album:"The Dark Side of the Moon Remastered" artist:"Pink Floyd"`,
		`artist:"Pink Floyd" album:"The Dark Side of the Moon"`,
		`album:"The Dark Side of the Moon Remastered"`,
		`The Dark Side of the Moon Remastered`,
	}, got)
}

func TestQueryCandidates_ShortAlbumSkipsWordForm(t *testing.T) {
	got := QueryCandidates("Tool", "Lateralus")
	assert.Equal(t, []string{
		`album:"Lateralus" artist:"Tool"`,
		`album:"Lateralus"`,
		`Lateralus`,
	}, got)
}

func TestQueryCandidates_NoArtist(t *testing.T) {
	assert.Equal(t, []string{`album:"Bloom"`, `Bloom`}, QueryCandidates("", "Bloom"))
}

func TestQueryCandidates_FitCeiling(t *testing.T) {
	album := strings.Repeat("Sehr lange Überschrift ", 30)
	for _, q := range QueryCandidates("Einstürzende Neubauten", strings.TrimSpace(album)) {
		assert.LessOrEqual(t, encodedLen(q), MaxQueryLen, q)
		assert.NotEmpty(t, q)
	}
}

func TestQueryCandidates_HardTruncate(t *testing.T) {
	artist := strings.Repeat("ä", 200)
	for _, q := range QueryCandidates(artist, "X") {
		assert.LessOrEqual(t, encodedLen(q), MaxQueryLen)
	}
}

func TestResolver_PrefersMatchingResult(t *testing.T) {
	fs := &fakeSearch{answer: func(string) ([]model.CatalogMatch, error) {
		return []model.CatalogMatch{
			{ID: "x", Name: "Bloom (Live)", Artists: []string{"Someone Else"}},
			{ID: "y", Name: "Bloom", Artists: []string{"Beach House"}},
		}, nil
	}}
	r := NewResolver(fs, log.New(io.Discard))
	m, ok := r.Resolve(context.Background(), model.Pair{Artist: "beach house", Album: "bloom"})
	require.True(t, ok)
	assert.Equal(t, "y", m.ID)
	assert.Len(t, fs.queries, 1)
}

func TestResolver_FallsBackToFirstResult(t *testing.T) {
	fs := &fakeSearch{answer: func(string) ([]model.CatalogMatch, error) {
		return []model.CatalogMatch{{ID: "first", Name: "Something"}, {ID: "second", Name: "Other"}}, nil
	}}
	m, ok := NewResolver(fs, log.New(io.Discard)).Resolve(context.Background(), model.Pair{Artist: "A", Album: "B"})
	require.True(t, ok)
	assert.Equal(t, "first", m.ID)
}

func TestResolver_SwallowsFailuresAndTriesNext(t *testing.T) {
	fs := &fakeSearch{answer: func(q string) ([]model.CatalogMatch, error) {
		switch {
		case strings.HasPrefix(q, `album:"Bloom" artist:`):
			return nil, errors.New("boom")
		case q == `album:"Bloom"`:
			return nil, nil
		default:
			return []model.CatalogMatch{{ID: "bare"}}, nil
		}
	}}
	m, ok := NewResolver(fs, log.New(io.Discard)).Resolve(context.Background(), model.Pair{Artist: "Beach House", Album: `"Bloom"`})
	require.True(t, ok)
	assert.Equal(t, "bare", m.ID)
	assert.Equal(t, []string{`album:"Bloom" artist:"Beach House"`, `album:"Bloom"`, `Bloom`}, fs.queries)
}

func TestResolver_NotFound(t *testing.T) {
	fs := &fakeSearch{answer: func(string) ([]model.CatalogMatch, error) { return nil, nil }}
	_, ok := NewResolver(fs, log.New(io.Discard)).Resolve(context.Background(), model.Pair{Artist: "Nobody", Album: "Nothing"})
	assert.False(t, ok)
	assert.Len(t, fs.queries, 3)
}
