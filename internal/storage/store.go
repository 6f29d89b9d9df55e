package storage

import (
	"context"

	"typeright/internal/typeinfo"
)

// Store persists backend replies between runs.
type Store interface {
	SuggestionStore
	Close() error
}

// SuggestionStore caches suggest-command replies per call site.
type SuggestionStore interface {
	// GetSuggestion returns the cached reply for a site of a file with the
	// given content hash. ok is false on a miss.
	GetSuggestion(ctx context.Context, file string, line int, funcName, hash string) (recs []typeinfo.Record, ok bool, err error)

	// PutSuggestion upserts the reply for a site.
	PutSuggestion(ctx context.Context, file string, line int, funcName, hash string, recs []typeinfo.Record) error

	// Prune drops replies recorded for older contents of file.
	Prune(ctx context.Context, file, keepHash string) (int64, error)
}
