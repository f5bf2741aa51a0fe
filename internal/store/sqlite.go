package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"pitchlist/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps OAuth tokens and the history of playlist updates and
// archived messages in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ran_at        TEXT NOT NULL,
	month         TEXT NOT NULL,
	playlist_id   TEXT NOT NULL DEFAULT '',
	playlist_name TEXT NOT NULL DEFAULT '',
	pairs         INTEGER NOT NULL DEFAULT 0,
	added         INTEGER NOT NULL DEFAULT 0,
	unresolved    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS archived (
	uid         INTEGER NOT NULL,
	target      TEXT NOT NULL,
	archived_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordMonths appends playlist updates to the run ledger.
func (s *SQLiteStore) RecordMonths(ctx context.Context, results []model.MonthResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO runs (ran_at, month, playlist_id, playlist_name, pairs, added, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		ranAt := r.RanAt
		if ranAt.IsZero() {
			ranAt = time.Now()
		}
		_, err := stmt.ExecContext(ctx, ranAt.UTC().Format(time.RFC3339), r.Month, r.PlaylistID, r.PlaylistName, r.Pairs, r.Added, r.Unresolved)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent ledger rows, newest first. limit <= 0
// returns all of them.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.MonthResult, error) {
	query := "SELECT ran_at, month, playlist_id, playlist_name, pairs, added, unresolved FROM runs ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MonthResult
	for rows.Next() {
		var r model.MonthResult
		var ranAt string
		if err := rows.Scan(&ranAt, &r.Month, &r.PlaylistID, &r.PlaylistName, &r.Pairs, &r.Added, &r.Unresolved); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, ranAt); err == nil {
			r.RanAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordArchive stores the UIDs a run moved out of the source mailbox.
func (s *SQLiteStore) RecordArchive(ctx context.Context, rep model.ArchiveReport, at time.Time) error {
	if len(rep.Moved) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO archived (uid, target, archived_at) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	stamp := at.UTC().Format(time.RFC3339)
	for _, uid := range rep.Moved {
		if _, err := stmt.ExecContext(ctx, uid, rep.Target, stamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountArchived returns how many messages have been archived in total.
func (s *SQLiteStore) CountArchived(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM archived").Scan(&count)
	return count, err
}

// GetMeta returns the value stored under key, or "" when there is none.
func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// TokenStore keeps one OAuth token in the metadata table.
type TokenStore struct {
	s   *SQLiteStore
	key string
}

// CredentialStore returns a token store for the given key, e.g. "spotify".
func (s *SQLiteStore) CredentialStore(key string) *TokenStore {
	return &TokenStore{s: s, key: "token:" + key}
}

func (t *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := t.s.GetMeta(ctx, t.key)
	if err != nil || raw == "" {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t.key, err)
	}
	return &tok, nil
}

func (t *TokenStore) Save(ctx context.Context, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return t.s.SetMeta(ctx, t.key, string(b))
}
