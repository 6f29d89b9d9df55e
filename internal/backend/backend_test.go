package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeright/internal/typeinfo"
)

type fakeRunner struct {
	calls  atomic.Int32
	argv   [][]string
	mu     sync.Mutex
	stdout string
	code   int
	err    error
	delay  time.Duration
}

func (f *fakeRunner) run(ctx context.Context, argv []string) ([]byte, string, int, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.argv = append(f.argv, argv)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, "", -1, ctx.Err()
		}
	}
	return []byte(f.stdout), "boom", f.code, f.err
}

func newBackend(t *testing.T, r *fakeRunner, opts Options) *Backend {
	t.Helper()
	if opts.Template == "" {
		opts.Template = "suggest --file {filename} --line {lineno} --func '{funcname}'"
	}
	opts.Run = r.run
	b, err := New(opts)
	require.NoError(t, err)
	return b
}

func TestSuggest_ExpandsTemplateAndCleansTypes(t *testing.T) {
	r := &fakeRunner{stdout: `[{"func_name": "f", "signature": {"arg_types": ["T` + "`1" + `", "Tuple[]"], "return_type": "List[T` + "`-2" + `]"}}]`}
	b := newBackend(t, r, Options{})

	recs, err := b.Suggest(context.Background(), Query{File: "pkg/m.py", Line: 7, FuncName: "A.f"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"T", "Tuple[Any, ...]"}, recs[0].Signature.ArgTypes)
	assert.Equal(t, "List[T]", recs[0].Signature.ReturnType)
	require.Len(t, r.argv, 1)
	assert.Equal(t, []string{"suggest", "--file", "pkg/m.py", "--line", "7", "--func", "A.f"}, r.argv[0])
}

func TestSuggest_PlaceholderValuesStayOneArgument(t *testing.T) {
	r := &fakeRunner{stdout: `[]`}
	b := newBackend(t, r, Options{Template: "suggest --file={filename} {funcname}"})

	_, err := b.Suggest(context.Background(), Query{File: "my dir/it's.py", Line: 3, FuncName: "f"})
	require.NoError(t, err)
	require.Len(t, r.argv, 1)
	assert.Equal(t, []string{"suggest", "--file=my dir/it's.py", "f"}, r.argv[0])
}

func TestSuggest_ExitTwoMeansNoSuggestion(t *testing.T) {
	r := &fakeRunner{code: ExitNoSuggestion}
	b := newBackend(t, r, Options{})

	recs, err := b.Suggest(context.Background(), Query{File: "m.py", Line: 1, FuncName: "f"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSuggest_FailureIsTypedError(t *testing.T) {
	tests := []struct {
		name string
		r    *fakeRunner
	}{
		{name: "non-zero exit", r: &fakeRunner{code: 1}},
		{name: "spawn error", r: &fakeRunner{code: -1, err: errors.New("not found")}},
		{name: "bad json", r: &fakeRunner{stdout: "{nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, tt.r, Options{})
			_, err := b.Suggest(context.Background(), Query{File: "m.py", Line: 3, FuncName: "f"})
			var be *Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, 3, be.Query.Line)
		})
	}
}

func TestSuggest_Timeout(t *testing.T) {
	r := &fakeRunner{delay: time.Second}
	b := newBackend(t, r, Options{Timeout: 10 * time.Millisecond})

	_, err := b.Suggest(context.Background(), Query{File: "m.py", Line: 1, FuncName: "f"})
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSuggest_DeduplicatesAndCaches(t *testing.T) {
	r := &fakeRunner{stdout: `{"func_name": "f", "signature": {"arg_types": [], "return_type": "int"}}`, delay: 20 * time.Millisecond}
	b := newBackend(t, r, Options{})
	q := Query{File: "m.py", Line: 1, FuncName: "f"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs, err := b.Suggest(context.Background(), q)
			assert.NoError(t, err)
			assert.Len(t, recs, 1)
		}()
	}
	wg.Wait()
	_, err := b.Suggest(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load())
}

type memStore struct {
	data map[string][]typeinfo.Record
}

func (m *memStore) key(file string, line int, fn, hash string) string {
	return Query{File: file, Line: line, FuncName: fn}.Key() + "@" + hash
}

func (m *memStore) GetSuggestion(_ context.Context, file string, line int, fn, hash string) ([]typeinfo.Record, bool, error) {
	recs, ok := m.data[m.key(file, line, fn, hash)]
	return recs, ok, nil
}

func (m *memStore) PutSuggestion(_ context.Context, file string, line int, fn, hash string, recs []typeinfo.Record) error {
	m.data[m.key(file, line, fn, hash)] = recs
	return nil
}

func TestSuggest_PersistentStore(t *testing.T) {
	store := &memStore{data: map[string][]typeinfo.Record{}}
	r := &fakeRunner{stdout: `[{"func_name": "f", "signature": {"arg_types": ["int"], "return_type": "str"}}]`}
	q := Query{File: "m.py", Line: 2, FuncName: "f", Hash: "abc"}

	first := newBackend(t, r, Options{Store: store})
	_, err := first.Suggest(context.Background(), q)
	require.NoError(t, err)

	second := newBackend(t, r, Options{Store: store})
	recs, err := second.Suggest(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "str", recs[0].Signature.ReturnType)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestNew_RejectsBadTemplates(t *testing.T) {
	for _, tmpl := range []string{"", "   ", "tool {file}", "tool 'unterminated"} {
		_, err := New(Options{Template: tmpl})
		assert.Error(t, err, tmpl)
	}
}
