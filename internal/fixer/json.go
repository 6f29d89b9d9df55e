package fixer

import (
	"context"
	"log/slog"

	"typeright/internal/locator"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// JSON resolves sites from a preloaded type-info table.
type JSON struct {
	table    *typeinfo.Table
	maxDrift int
	logger   *slog.Logger
}

// NewJSON returns a fixer over table. Records whose line drifted more than
// maxDrift lines from the site are ignored.
func NewJSON(table *typeinfo.Table, maxDrift int, logger *slog.Logger) *JSON {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSON{table: table, maxDrift: maxDrift, logger: logger}
}

func (j *JSON) Name() string      { return NameJSON }
func (j *JSON) MayOverride() bool { return false }

func (j *JSON) Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error) {
	for _, name := range candidateNames(site) {
		recs := j.table.Lookup(file.Path, name)
		if len(recs) == 0 {
			continue
		}
		rec, ok := j.match(site, file, recs)
		if !ok {
			return nil, nil
		}
		return fromSignature(site, rec.Signature, NameJSON)
	}
	return nil, nil
}

// match picks the record reported for site: an exact line hit, or else the
// nearest record, provided the locator maps it back onto this very site.
func (j *JSON) match(site *source.CallSite, file *source.File, recs []typeinfo.Record) (typeinfo.Record, bool) {
	best := -1
	for i, r := range recs {
		if r.Line == site.Line {
			return r, true
		}
		if best < 0 || absInt(r.Line-site.Line) < absInt(recs[best].Line-site.Line) {
			best = i
		}
	}
	rec := recs[best]

	key := rec.SignatureText
	if key == "" {
		key = rec.FuncName
	}
	if found, ok := locator.Locate(file.Sites, rec.Line, key, j.maxDrift); ok && found == site {
		j.logger.Debug("relocated type info", "site", site.String(), "reported_line", rec.Line)
		return rec, true
	}
	j.logger.Warn("signature too far away -- skipping",
		"site", site.String(), "func", rec.FuncName, "reported_line", rec.Line)
	return typeinfo.Record{}, false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
