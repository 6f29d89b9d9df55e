package fixer

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"typeright/internal/docstring"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
	Failed    int
	Overrides int
}

type StageResult struct {
	Fixer string
	Stats ResolveStats
}

// Chain runs fixers in order and merges their results slot by slot: the
// first fixer to resolve a slot commits it, and only fixers that may
// override replace a committed slot, with a declared type that differs.
type Chain struct {
	fixers      []Fixer
	concurrency int
	logger      *slog.Logger

	mu    sync.Mutex
	stats []ResolveStats
}

// NewChain builds a chain. concurrency bounds how many sites of one file are
// resolved at the same time.
func NewChain(logger *slog.Logger, concurrency int, fixers ...Fixer) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Chain{
		fixers:      fixers,
		concurrency: concurrency,
		logger:      logger,
		stats:       make([]ResolveStats, len(fixers)),
	}
}

// Options select and configure the fixers of the default chain.
type Options struct {
	// Table enables the json fixer.
	Table        *typeinfo.Table
	MaxLineDrift int

	// Backend enables the command fixer.
	Backend    Suggester
	ExcludeAny bool

	// DocFormat enables the docstring fixer unless it is "off".
	DocFormat        string
	DocDefaultReturn string

	// AutoAny enables the blanket fixer.
	AutoAny     bool
	PythonMajor int

	Concurrency int
	Logger      *slog.Logger
}

// NewDefaultChain returns the enabled fixers in the order json, command,
// docstring, any.
func NewDefaultChain(opts Options) *Chain {
	var fixers []Fixer
	if opts.Table != nil {
		fixers = append(fixers, NewJSON(opts.Table, opts.MaxLineDrift, opts.Logger))
	}
	if opts.Backend != nil {
		fixers = append(fixers, NewCommand(opts.Backend, opts.ExcludeAny, opts.Logger))
	}
	if opts.DocFormat != "" && opts.DocFormat != docstring.FormatOff {
		fixers = append(fixers, NewDocstring(opts.DocFormat, opts.DocDefaultReturn, opts.Logger))
	}
	if opts.AutoAny {
		fixers = append(fixers, NewAny(opts.PythonMajor))
	}
	return NewChain(opts.Logger, opts.Concurrency, fixers...)
}

// Fixers returns the fixers in chain order.
func (c *Chain) Fixers() []Fixer { return c.fixers }

// Stats returns per-fixer counters accumulated over every call so far.
func (c *Chain) Stats() []StageResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StageResult, len(c.fixers))
	for i, f := range c.fixers {
		out[i] = StageResult{Fixer: f.Name(), Stats: c.stats[i]}
	}
	return out
}

func (c *Chain) record(i int, fn func(*ResolveStats)) {
	c.mu.Lock()
	fn(&c.stats[i])
	c.mu.Unlock()
}

// Resolve merges what every fixer knows about site. It returns nil when no
// slot was committed. Only context errors are returned; fixer failures
// leave the site to later fixers.
func (c *Chain) Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error) {
	if site.TypeCommented {
		c.logger.Debug("site already has a type comment", "site", site.String())
		for i := range c.fixers {
			c.record(i, func(s *ResolveStats) { s.Skipped++ })
		}
		return nil, nil
	}

	merged := &typeinfo.TypeInfo{}
	for i, f := range c.fixers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !f.MayOverride() && site.Annotated() {
			c.record(i, func(s *ResolveStats) { s.Skipped++ })
			continue
		}

		ti, err := f.Resolve(ctx, site, file)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.logger.Warn("fixer failed", "fixer", f.Name(), "site", site.String(), "err", err)
			c.record(i, func(s *ResolveStats) { s.Attempted++; s.Failed++ })
			continue
		}
		if ti.Empty() {
			c.record(i, func(s *ResolveStats) { s.Attempted++ })
			continue
		}

		committed, overrides := merge(merged, ti, site, f.MayOverride())
		c.record(i, func(s *ResolveStats) {
			s.Attempted++
			if committed > 0 {
				s.Resolved++
			}
			s.Overrides += overrides
		})
	}

	if merged.Empty() {
		return nil, nil
	}
	finish(merged, site)
	return merged, nil
}

// ResolveFile resolves every site of file. The result is indexed like
// file.Sites; unresolved sites are nil.
func (c *Chain) ResolveFile(ctx context.Context, file *source.File) ([]*typeinfo.TypeInfo, error) {
	out := make([]*typeinfo.TypeInfo, len(file.Sites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, site := range file.Sites {
		g.Go(func() error {
			ti, err := c.Resolve(gctx, site, file)
			if err != nil {
				return err
			}
			out[i] = ti
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// merge folds src into dst and reports how many slots were written and how
// many of those replaced an earlier fixer's slot.
func merge(dst, src *typeinfo.TypeInfo, site *source.CallSite, override bool) (committed, overrides int) {
	for _, s := range src.Params {
		p := site.Param(s.Name)
		if p == nil || p.Implicit || p.Kind == source.KindSeparator {
			continue
		}
		if wins, replaced := decide(dst.Param(s.Name), s, p.Annotation, override); wins {
			put(dst, s)
			committed++
			if replaced {
				overrides++
			}
		}
	}
	if src.Return != nil {
		if wins, replaced := decide(dst.Return, *src.Return, site.ReturnAnnotation, override); wins {
			r := *src.Return
			dst.Return = &r
			committed++
			if replaced {
				overrides++
			}
		}
	}
	return committed, overrides
}

// decide reports whether candidate should be committed over the current
// slot (nil when none) and the existing annotation text of the source.
func decide(current *typeinfo.Slot, candidate typeinfo.Slot, annotation string, override bool) (wins, replaced bool) {
	if current == nil {
		if annotation == "" {
			return true, false
		}
		return override && !candidate.Defaulted && candidate.Type != annotation, false
	}
	if candidate.Defaulted {
		return false, false
	}
	if current.Defaulted {
		return true, true
	}
	if override && candidate.Type != current.Type {
		return true, true
	}
	return false, false
}

func put(ti *typeinfo.TypeInfo, s typeinfo.Slot) {
	if cur := ti.Param(s.Name); cur != nil {
		*cur = s
		return
	}
	ti.Params = append(ti.Params, s)
}

// finish orders the slots like the signature and fills in provenance.
func finish(ti *typeinfo.TypeInfo, site *source.CallSite) {
	pos := make(map[string]int, len(site.Params))
	for i, p := range site.Params {
		pos[p.Name] = i
	}
	sort.SliceStable(ti.Params, func(a, b int) bool {
		return pos[ti.Params[a].Name] < pos[ti.Params[b].Name]
	})

	for _, s := range ti.Params {
		ti.Qualified = ti.Qualified || s.Qualified
		if ti.Source == "" {
			ti.Source = s.Source
		}
	}
	if ti.Return != nil {
		ti.Qualified = ti.Qualified || ti.Return.Qualified
		if ti.Source == "" {
			ti.Source = ti.Return.Source
		}
	}
}
