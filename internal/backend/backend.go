// Package backend asks an external "suggest types" command about call sites.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"typeright/internal/typeinfo"
)

// ExitNoSuggestion is the status a suggest command uses for "nothing to say".
const ExitNoSuggestion = 2

// Query identifies one call site.
type Query struct {
	File     string
	Line     int
	FuncName string
	// Hash fingerprints the file contents for the persistent cache.
	Hash string
}

// Key is the in-flight and in-memory cache key.
func (q Query) Key() string {
	return fmt.Sprintf("%s:%d:%s", q.File, q.Line, q.FuncName)
}

// Error is a failed invocation. Callers treat it as "site unresolved".
type Error struct {
	Query    Query
	Command  []string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("line %d: failed calling %q", e.Query.Line, strings.Join(e.Command, " "))
	if e.ExitCode > 0 {
		msg += fmt.Sprintf(" (exit %d)", e.ExitCode)
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// RunFunc executes argv and returns its stdout, combined output for
// diagnostics and the exit status. It is injectable for tests.
type RunFunc func(ctx context.Context, argv []string) (stdout []byte, output string, exitCode int, err error)

// Store persists replies across runs.
type Store interface {
	GetSuggestion(ctx context.Context, file string, line int, funcName, hash string) ([]typeinfo.Record, bool, error)
	PutSuggestion(ctx context.Context, file string, line int, funcName, hash string, recs []typeinfo.Record) error
}

// Options configure a Backend.
type Options struct {
	Template  string
	Timeout   time.Duration
	CacheSize int
	Run       RunFunc
	Store     Store
	Logger    *slog.Logger
}

// Backend runs the suggest command with per-site deduplication and caching.
type Backend struct {
	template string
	timeout  time.Duration
	run      RunFunc
	store    Store
	logger   *slog.Logger

	cache *lru.Cache[string, []typeinfo.Record]
	group singleflight.Group
}

// New validates the command template and builds a Backend.
func New(opts Options) (*Backend, error) {
	if strings.TrimSpace(opts.Template) == "" {
		return nil, errors.New("empty command template")
	}
	if _, err := expand(opts.Template, Query{File: "f.py", Line: 1, FuncName: "f"}); err != nil {
		return nil, fmt.Errorf("invalid command template: %w", err)
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []typeinfo.Record](size)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		template: opts.Template,
		timeout:  opts.Timeout,
		run:      opts.Run,
		store:    opts.Store,
		logger:   opts.Logger,
		cache:    cache,
	}
	if b.run == nil {
		b.run = execRun
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b, nil
}

// Suggest returns the records the command produced for q. An empty result
// with a nil error means the command had no suggestion.
func (b *Backend) Suggest(ctx context.Context, q Query) ([]typeinfo.Record, error) {
	key := q.Key()
	if recs, ok := b.cache.Get(key); ok {
		return recs, nil
	}
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		if recs, ok := b.cache.Get(key); ok {
			return recs, nil
		}
		recs, err := b.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		b.cache.Add(key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]typeinfo.Record), nil
}

func (b *Backend) fetch(ctx context.Context, q Query) ([]typeinfo.Record, error) {
	if b.store != nil && q.Hash != "" {
		recs, ok, err := b.store.GetSuggestion(ctx, q.File, q.Line, q.FuncName, q.Hash)
		if err != nil {
			b.logger.Warn("suggestion cache read failed", "site", q.Key(), "err", err)
		} else if ok {
			return recs, nil
		}
	}

	argv, err := expand(b.template, q)
	if err != nil {
		return nil, &Error{Query: q, Err: err}
	}
	runCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.logger.Debug("running suggest command", "site", q.Key(), "argv", argv)
	stdout, output, code, err := b.run(runCtx, argv)
	switch {
	case code == ExitNoSuggestion:
		recs := []typeinfo.Record{}
		b.remember(ctx, q, recs)
		return recs, nil
	case err != nil || code != 0:
		return nil, &Error{Query: q, Command: argv, ExitCode: code, Output: strings.TrimSpace(output), Err: err}
	}

	recs, err := typeinfo.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, &Error{Query: q, Command: argv, Err: err}
	}
	for i := range recs {
		sig := &recs[i].Signature
		for j, a := range sig.ArgTypes {
			sig.ArgTypes[j] = Cleanup(a)
		}
		sig.ReturnType = Cleanup(sig.ReturnType)
	}
	b.remember(ctx, q, recs)
	return recs, nil
}

func (b *Backend) remember(ctx context.Context, q Query, recs []typeinfo.Record) {
	if b.store == nil || q.Hash == "" {
		return
	}
	if err := b.store.PutSuggestion(ctx, q.File, q.Line, q.FuncName, q.Hash, recs); err != nil {
		b.logger.Warn("suggestion cache write failed", "site", q.Key(), "err", err)
	}
}

var placeholderRe = regexp.MustCompile(`\{(\w*)\}`)

// expand splits the template shell-style, then fills {filename},
// {lineno} and {funcname} inside each argument so substituted values never
// split into extra arguments.
func expand(template string, q Query) ([]string, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("command expands to nothing")
	}
	var unknown string
	for i, arg := range argv {
		argv[i] = placeholderRe.ReplaceAllStringFunc(arg, func(m string) string {
			switch m[1 : len(m)-1] {
			case "filename":
				return q.File
			case "lineno":
				return strconv.Itoa(q.Line)
			case "funcname":
				return q.FuncName
			}
			if unknown == "" {
				unknown = m
			}
			return m
		})
	}
	if unknown != "" {
		return nil, fmt.Errorf("unknown placeholder %s", unknown)
	}
	return argv, nil
}

var backtickSuffix = regexp.MustCompile("`-?\\d+")

// Cleanup repairs artefacts of dmypy-style output: `Tuple[]` becomes
// `Tuple[Any, ...]` and type-variable ids like T`1 lose their suffix.
func Cleanup(t string) string {
	if t == "Tuple[]" {
		return "Tuple[Any, ...]"
	}
	return backtickSuffix.ReplaceAllString(t, "")
}

func execRun(ctx context.Context, argv []string) ([]byte, string, int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := stderr.String()
	if output == "" {
		output = stdout.String()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), output, exitErr.ExitCode(), nil
	}
	if err != nil {
		return nil, output, -1, err
	}
	return stdout.Bytes(), output, 0, nil
}
