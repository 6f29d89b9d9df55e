package fixer

import (
	"context"
	"log/slog"

	"typeright/internal/backend"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// Suggester answers per-site queries; *backend.Backend implements it.
type Suggester interface {
	Suggest(ctx context.Context, q backend.Query) ([]typeinfo.Record, error)
}

// Command resolves sites by asking an external suggest command.
type Command struct {
	backend    Suggester
	excludeAny bool
	logger     *slog.Logger
}

// NewCommand returns a fixer that queries b. With excludeAny, suggestions
// mentioning Any are dropped.
func NewCommand(b Suggester, excludeAny bool, logger *slog.Logger) *Command {
	if logger == nil {
		logger = slog.Default()
	}
	return &Command{backend: b, excludeAny: excludeAny, logger: logger}
}

func (c *Command) Name() string      { return NameCommand }
func (c *Command) MayOverride() bool { return false }

func (c *Command) Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error) {
	for _, name := range candidateNames(site) {
		recs, err := c.backend.Suggest(ctx, backend.Query{
			File:     file.Path,
			Line:     site.Line,
			FuncName: name,
			Hash:     file.Hash(),
		})
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 || !recs[0].HasSignature() {
			continue
		}
		rec := recs[0]
		if c.excludeAny && rejectsAny(rec) {
			c.logger.Debug("suggestion mentions Any, skipping", "site", site.String())
			return nil, nil
		}
		return fromSignature(site, rec.Signature, NameCommand)
	}
	return nil, nil
}

func rejectsAny(rec typeinfo.Record) bool {
	if rec.ContainsAny {
		return true
	}
	for _, t := range append(append([]string(nil), rec.Signature.ArgTypes...), rec.Signature.ReturnType) {
		if typeinfo.MentionsAny(t) {
			return true
		}
	}
	return false
}
