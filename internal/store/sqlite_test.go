package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"pitchlist/internal/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndListRuns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	at := time.Date(2025, 2, 1, 9, 30, 0, 0, time.UTC)

	results := []model.MonthResult{
		{Month: "2025-01", PlaylistID: "p1", PlaylistName: "Best 2025-01", Pairs: 8, Added: 6, Unresolved: 2, RanAt: at},
		{Month: "2024-12", PlaylistID: "p0", PlaylistName: "Best 2024-12", Pairs: 3, Added: 3, RanAt: at},
	}
	if err := s.RecordMonths(ctx, results); err != nil {
		t.Fatalf("RecordMonths: %v", err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Newest row first.
	if runs[0].Month != "2024-12" || runs[1].Month != "2025-01" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	if runs[1].Added != 6 || runs[1].Unresolved != 2 || !runs[1].RanAt.Equal(at) {
		t.Fatalf("row not preserved: %+v", runs[1])
	}

	limited, _ := s.ListRuns(ctx, 1)
	if len(limited) != 1 {
		t.Fatalf("expected 1 with limit, got %d", len(limited))
	}
}

func TestRecordArchive(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rep := model.ArchiveReport{Target: "Trash", Moved: []uint32{4, 5}, Failed: []uint32{6}}
	if err := s.RecordArchive(ctx, rep, time.Now()); err != nil {
		t.Fatalf("RecordArchive: %v", err)
	}
	count, err := s.CountArchived(ctx)
	if err != nil {
		t.Fatalf("CountArchived: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 archived, got %d", count)
	}
}

func TestMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	v, err := s.GetMeta(ctx, "k")
	if err != nil {
		t.Fatalf("GetMeta: %v", err)
	}
	if v != "" {
		t.Fatalf("expected empty, got %q", v)
	}

	if err := s.SetMeta(ctx, "k", "12345"); err != nil {
		t.Fatalf("SetMeta: %v", err)
	}
	v, _ = s.GetMeta(ctx, "k")
	if v != "12345" {
		t.Fatalf("expected 12345, got %q", v)
	}

	// Update
	s.SetMeta(ctx, "k", "99999")
	v, _ = s.GetMeta(ctx, "k")
	if v != "99999" {
		t.Fatalf("expected 99999, got %q", v)
	}
}

func TestCredentialStore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	cs := s.CredentialStore("spotify")

	tok, err := cs.Load(ctx)
	if err != nil || tok != nil {
		t.Fatalf("expected nil token, got %v, %v", tok, err)
	}

	want := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	if err := cs.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := cs.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" {
		t.Fatalf("unexpected token: %+v", got)
	}

	other, _ := s.CredentialStore("gmail").Load(ctx)
	if other != nil {
		t.Fatal("keys must not share tokens")
	}
}
