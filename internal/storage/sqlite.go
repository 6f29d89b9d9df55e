package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"typeright/internal/typeinfo"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS suggestions (
			filepath TEXT,
			line INTEGER,
			func_name TEXT,
			content_hash TEXT,
			records JSON,
			created_at INTEGER,
			PRIMARY KEY (filepath, line, func_name, content_hash)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_suggestions_file ON suggestions(filepath);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetSuggestion(ctx context.Context, file string, line int, funcName, hash string) ([]typeinfo.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT records FROM suggestions
		WHERE filepath = ? AND line = ? AND func_name = ? AND content_hash = ?
	`, file, line, funcName, hash)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read suggestion: %w", err)
	}

	recs := []typeinfo.Record{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, false, fmt.Errorf("failed to decode suggestion: %w", err)
		}
	}
	return recs, true, nil
}

func (s *SQLiteStore) PutSuggestion(ctx context.Context, file string, line int, funcName, hash string, recs []typeinfo.Record) error {
	if recs == nil {
		recs = []typeinfo.Record{}
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO suggestions (filepath, line, func_name, content_hash, records, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filepath, line, func_name, content_hash) DO UPDATE SET
			records=excluded.records,
			created_at=excluded.created_at
	`, file, line, funcName, hash, raw, time.Now().Unix())
	return err
}

func (s *SQLiteStore) Prune(ctx context.Context, file, keepHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM suggestions WHERE filepath = ? AND content_hash != ?", file, keepHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
