package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeright/internal/fixer"
	"typeright/internal/git"
	"typeright/internal/render"
	"typeright/internal/typeinfo"
)

const docFunc = `def f(a, b):
    """Compare.

    :param int a: left
    :param str b: right
    :rtype: bool
    """
    return str(a) == b
`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// project lays out files under a fresh directory and returns its path.
func project(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func docChain() *fixer.Chain {
	return fixer.NewDefaultChain(fixer.Options{DocFormat: "auto", DocDefaultReturn: "Any", Logger: quiet})
}

func style(t *testing.T, annotation, comment string, major int) render.Style {
	t.Helper()
	s, err := render.StyleFor(annotation, comment, major)
	require.NoError(t, err)
	return s
}

func TestDriver_InlineScenarioIsIdempotent(t *testing.T) {
	root := project(t, map[string]string{"pkg/__init__.py": "", "pkg/mod.py": docFunc})
	path := filepath.Join(root, "pkg", "mod.py")
	opts := Options{Style: style(t, "auto", "auto", 3), Write: true, Logger: quiet}

	summary, err := NewDriver(docChain(), opts).Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.True(t, summary.OK())

	first := read(t, path)
	assert.True(t, strings.HasPrefix(first, "def f(a: int, b: str) -> bool:\n"))
	assert.Equal(t, docFunc, strings.Replace(first, "def f(a: int, b: str) -> bool:", "def f(a, b):", 1),
		"nothing but the signature changes")

	var job *Job
	for _, j := range summary.Jobs {
		if j.Path == path {
			job = j
		}
	}
	require.NotNil(t, job)
	assert.Equal(t, StateWritten, job.State)
	assert.True(t, job.Wrote)
	assert.Equal(t, "pkg.mod", job.Module)
	assert.Equal(t, 1, job.Sites)

	summary, err = NewDriver(docChain(), opts).Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, summary.Jobs, 1)
	assert.Equal(t, StateSkipped, summary.Jobs[0].State)
	assert.Equal(t, first, read(t, path))
}

func TestDriver_MultiCommentScenario(t *testing.T) {
	root := project(t, map[string]string{"pkg/__init__.py": "", "pkg/mod.py": docFunc})
	path := filepath.Join(root, "pkg", "mod.py")
	out := filepath.Join(t.TempDir(), "out")
	opts := Options{Style: style(t, "auto", "multi", 2), Write: true, OutputDir: out, Logger: quiet}

	summary, err := NewDriver(docChain(), opts).Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, summary.Jobs, 1)
	job := summary.Jobs[0]
	require.Equal(t, StateWritten, job.State, "err: %v", job.Err)
	assert.Equal(t, filepath.Join(out, "pkg", "mod.py"), job.OutPath)

	got := read(t, job.OutPath)
	assert.True(t, strings.HasPrefix(got, "def f(a,  # type: int\n      b,  # type: str\n      ):\n    # type: (...) -> bool\n"))
	assert.NotContains(t, got, "import", "fully resolved comments need no typing import")
	assert.Equal(t, docFunc, read(t, path), "input is left alone when mirroring")

	// Running over the output again changes nothing.
	summary, err = NewDriver(docChain(), Options{Style: opts.Style, Write: true, Logger: quiet}).
		Run(context.Background(), []string{job.OutPath})
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, summary.Jobs[0].State)
	assert.Equal(t, got, read(t, job.OutPath))
}

func TestDriver_BlanketAnyOnAnnotatedFunction(t *testing.T) {
	src := "def g(a: int) -> int:\n    return a\n"
	root := project(t, map[string]string{"g.py": src})
	chain := fixer.NewDefaultChain(fixer.Options{DocFormat: "off", AutoAny: true, PythonMajor: 3, Logger: quiet})

	summary, err := NewDriver(chain, Options{Style: style(t, "auto", "auto", 3), Write: true, Logger: quiet}).
		Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, summary.Jobs, 1)
	assert.Equal(t, StateSkipped, summary.Jobs[0].State)
	assert.Zero(t, summary.Jobs[0].Edits)
	assert.Equal(t, src, read(t, filepath.Join(root, "g.py")))
}

func TestDriver_DryRunAndFailures(t *testing.T) {
	root := project(t, map[string]string{
		"a.py":   docFunc,
		"bad.py": "def broken(:\n    pass\n",
		"c.py":   "x = 1\n",
	})

	summary, err := NewDriver(docChain(), Options{Style: style(t, "py3", "auto", 3), Processes: 3, Logger: quiet}).
		Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, summary.Jobs, 3)
	assert.False(t, summary.OK())
	assert.Equal(t, "1 written, 1 skipped, 1 failed", summary.String())

	byName := map[string]*Job{}
	for _, j := range summary.Jobs {
		byName[filepath.Base(j.Path)] = j
		assert.True(t, j.Done())
	}

	a := byName["a.py"]
	assert.Equal(t, StateWritten, a.State)
	assert.False(t, a.Wrote)
	assert.Contains(t, a.Diff, "+def f(a: int, b: str) -> bool:")
	assert.Equal(t, docFunc, read(t, a.Path), "dry run writes nothing")

	bad := byName["bad.py"]
	assert.Equal(t, StateFailed, bad.State)
	assert.Equal(t, "syntax error", bad.ErrorKind())

	assert.Equal(t, StateSkipped, byName["c.py"].State)
}

func TestDriver_WriteUnchangedMirrorsEverything(t *testing.T) {
	root := project(t, map[string]string{"c.py": "x = 1\n"})
	out := t.TempDir()

	summary, err := NewDriver(docChain(), Options{Style: style(t, "auto", "auto", 3), WriteUnchanged: true, OutputDir: out, Logger: quiet}).
		Run(context.Background(), []string{filepath.Join(root, "c.py")})
	require.NoError(t, err)
	job := summary.Jobs[0]
	assert.Equal(t, StateWritten, job.State)
	assert.True(t, job.Wrote)
	assert.Equal(t, "x = 1\n", read(t, filepath.Join(out, "c.py")))
}

func TestDriver_InlineFallsBackToComments(t *testing.T) {
	root := project(t, map[string]string{"m.py": docFunc})
	s := render.Style{Surface: render.SurfaceInline, Granularity: render.GranularitySingle, PythonMajor: 2, Default: "Any"}

	summary, err := NewDriver(docChain(), Options{Style: s, Logger: quiet}).Run(context.Background(), []string{root})
	require.NoError(t, err)
	job := summary.Jobs[0]
	assert.Equal(t, StateWritten, job.State)
	assert.Equal(t, 1, job.Fallbacks)
	assert.Contains(t, job.Diff, "+    # type: (int, str) -> bool")
}

func TestDriver_SinceFiltersUnchangedFiles(t *testing.T) {
	root := project(t, map[string]string{"a.py": docFunc, "b.py": docFunc})
	client := git.NewClient(root).WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
		if args[0] == "rev-parse" {
			return []byte(root + "\n"), nil
		}
		return []byte("diff --git a/b.py b/b.py\n--- a/b.py\n+++ b/b.py\n@@ -1 +1 @@\n"), nil
	})

	summary, err := NewDriver(docChain(), Options{Style: style(t, "auto", "auto", 3), Since: "main", Git: client, Logger: quiet}).
		Run(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, summary.Jobs, 1)
	assert.Equal(t, filepath.Join(root, "b.py"), summary.Jobs[0].Path)
}

type memStore struct {
	pruned map[string]string
}

func (m *memStore) GetSuggestion(context.Context, string, int, string, string) ([]typeinfo.Record, bool, error) {
	return nil, false, nil
}

func (m *memStore) PutSuggestion(context.Context, string, int, string, string, []typeinfo.Record) error {
	return nil
}

func (m *memStore) Prune(_ context.Context, file, keepHash string) (int64, error) {
	m.pruned[file] = keepHash
	return 0, nil
}

func TestDriver_PrunesStaleSuggestions(t *testing.T) {
	root := project(t, map[string]string{"a.py": "x = 1\n"})
	store := &memStore{pruned: map[string]string{}}

	_, err := NewDriver(docChain(), Options{Style: style(t, "auto", "auto", 3), Store: store, Logger: quiet}).
		Run(context.Background(), []string{root})
	require.NoError(t, err)
	assert.Len(t, store.pruned[filepath.Join(root, "a.py")], 64)
}
