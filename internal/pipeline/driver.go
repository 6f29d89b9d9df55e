package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"typeright/internal/crawler"
	"typeright/internal/fixer"
	"typeright/internal/git"
	"typeright/internal/patch"
	"typeright/internal/render"
	"typeright/internal/source"
	"typeright/internal/storage"
	"typeright/internal/typeinfo"
)

// Options configure a Driver.
type Options struct {
	Style         render.Style
	PrintFunction bool

	// Write sends output to files; otherwise only diffs are produced.
	Write bool
	// WriteUnchanged also writes files without edits, and implies Write.
	WriteUnchanged bool
	// OutputDir mirrors written files under this directory, relative to
	// the first directory above each input that is not a package.
	OutputDir string
	Processes int

	// Since restricts the run to files changed relative to a git ref.
	Since string
	Git   *git.Client

	Crawler *crawler.Crawler
	// Store has stale suggestions of each processed file pruned.
	Store  storage.SuggestionStore
	Logger *slog.Logger
}

// Driver annotates files: parse, resolve, render, patch, emit.
type Driver struct {
	chain  *fixer.Chain
	opts   Options
	logger *slog.Logger
}

func NewDriver(chain *fixer.Chain, opts Options) *Driver {
	if opts.Processes < 1 {
		opts.Processes = 1
	}
	if opts.WriteUnchanged {
		opts.Write = true
	}
	if opts.Crawler == nil {
		opts.Crawler = crawler.NewCrawler()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{chain: chain, opts: opts, logger: opts.Logger}
}

// Run processes every Python file under paths with at most Processes files
// in flight. A failing file never stops the others; the returned error is
// only set when discovery fails or ctx is cancelled.
func (d *Driver) Run(ctx context.Context, paths []string) (*Summary, error) {
	files, err := d.discoverStage(ctx, paths)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, len(files))
	var g errgroup.Group
	g.SetLimit(d.opts.Processes)
	for i, path := range files {
		g.Go(func() error {
			jobs[i] = d.Process(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	summary := summarize(jobs, d.chain.Stats())
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (d *Driver) discoverStage(ctx context.Context, paths []string) ([]string, error) {
	files, err := d.opts.Crawler.Discover(paths)
	if err != nil {
		return nil, err
	}
	if d.opts.Since == "" {
		return files, nil
	}

	client := d.opts.Git
	if client == nil {
		client = git.NewClient(".")
	}
	changed, err := client.ChangedSet(ctx, d.opts.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to get git changes: %w", err)
	}
	kept := files[:0]
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		if changed[abs] {
			kept = append(kept, f)
		}
	}
	d.logger.Info("filtered files by git changes", "since", d.opts.Since, "kept", len(kept), "changed", len(changed))
	return kept, nil
}

// Process runs one file through every stage. The returned job is always in
// a terminal state.
func (d *Driver) Process(ctx context.Context, path string) *Job {
	job := &Job{Path: path, OutPath: path, State: StatePending, Write: d.opts.Write}

	file, err := d.parseStage(ctx, job)
	if err != nil {
		return d.failed(job, err)
	}
	infos, err := d.resolveStage(ctx, job, file)
	if err != nil {
		return d.failed(job, err)
	}
	edits, err := d.renderStage(job, file, infos)
	if err != nil {
		return d.failed(job, err)
	}
	res, err := d.patchStage(job, file, edits)
	if err != nil {
		return d.failed(job, err)
	}
	if err := d.emitStage(job, res); err != nil {
		return d.failed(job, err)
	}
	return job
}

func (d *Driver) failed(job *Job, err error) *Job {
	job.fail(err)
	d.logger.Error("failed to annotate file", "file", job.Path, "kind", job.ErrorKind(), "error", err)
	return job
}

func (d *Driver) parseStage(ctx context.Context, job *Job) (*source.File, error) {
	text, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, err
	}
	base, module := source.CrawlUp(job.Path)
	job.Module = module
	job.OutPath = d.outPath(job.Path, base)

	file, err := source.ParseCtx(ctx, job.Path, text, source.ParseOptions{
		PrintFunction: d.opts.PrintFunction,
		Module:        module,
	})
	if err != nil {
		return nil, err
	}
	job.State = StateParsed

	if d.opts.Store != nil {
		n, err := d.opts.Store.Prune(ctx, file.Path, file.Hash())
		switch {
		case err != nil:
			d.logger.Warn("failed to prune cached suggestions", "file", file.Path, "error", err)
		case n > 0:
			d.logger.Debug("pruned stale suggestions", "file", file.Path, "rows", n)
		}
	}
	return file, nil
}

func (d *Driver) resolveStage(ctx context.Context, job *Job, file *source.File) ([]*typeinfo.TypeInfo, error) {
	job.State = StateResolving
	return d.chain.ResolveFile(ctx, file)
}

func (d *Driver) renderStage(job *Job, file *source.File, infos []*typeinfo.TypeInfo) ([]patch.Edit, error) {
	job.State = StateRendering
	r := render.New(file, d.opts.Style)

	var edits []patch.Edit
	for i, site := range file.Sites {
		ti := infos[i]
		if ti.Empty() {
			continue
		}
		rendered, err := r.Render(ti, site)
		var unsupported *render.UnsupportedStyleError
		if errors.As(err, &unsupported) {
			d.logger.Warn("falling back to type comments", "site", site.String(), "reason", err)
			r.UseStyle(r.Style().Comment())
			job.Fallbacks++
			rendered, err = r.Render(ti, site)
		}
		if err != nil {
			return nil, err
		}
		if len(rendered.Edits) > 0 {
			job.Sites++
			d.logger.Debug("annotated", "site", site.String(), "form", rendered.Form, "source", ti.Source)
		}
		edits = append(edits, rendered.Edits...)
	}
	return append(edits, r.ImportEdits()...), nil
}

func (d *Driver) patchStage(job *Job, file *source.File, edits []patch.Edit) (*patch.Result, error) {
	res, err := patch.Apply(file.Path, file.Text(), edits)
	if err != nil {
		return nil, err
	}
	job.Edits = res.Applied
	job.Diff = res.Diff
	job.State = StatePatched
	return res, nil
}

func (d *Driver) emitStage(job *Job, res *patch.Result) error {
	if !res.Changed() && !d.opts.WriteUnchanged {
		job.State = StateSkipped
		return nil
	}
	if !job.Write {
		job.State = StateWritten
		return nil
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(job.Path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(job.OutPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(job.OutPath, res.Text, mode); err != nil {
		return err
	}
	job.Wrote = true
	job.State = StateWritten
	return nil
}

// outPath mirrors path under OutputDir relative to base.
func (d *Driver) outPath(path, base string) string {
	if d.opts.OutputDir == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(path)
	}
	return filepath.Join(d.opts.OutputDir, rel)
}
