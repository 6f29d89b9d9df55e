package git

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDiff = `diff --git a/pkg/mod.py b/pkg/mod.py
index 1111111..2222222 100644
--- a/pkg/mod.py
+++ b/pkg/mod.py
@@ -3 +3,2 @@ def f(a):
-    return a
+    b = a
+    return b
@@ -10,0 +12 @@ def g():
+    pass
diff --git a/old.py b/old.py
deleted file mode 100644
index 3333333..0000000
--- a/old.py
+++ /dev/null
@@ -1,2 +0,0 @@
-x = 1
-y = 2
diff --git a/README.md b/README.md
index 4444444..5555555 100644
--- a/README.md
+++ b/README.md
@@ -1,0 +2,0 @@
`

func TestParseDiff(t *testing.T) {
	changes, err := parseDiff([]byte(sampleDiff))
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, "pkg/mod.py", changes[0].Path)
	assert.Equal(t, []int{3, 4, 12}, changes[0].ChangedLines)
	assert.Equal(t, "README.md", changes[1].Path)
	assert.Empty(t, changes[1].ChangedLines)
}

func TestClient_ChangedSet(t *testing.T) {
	var calls [][]string
	c := NewClient("/work/repo/sub").WithRunner(func(_ context.Context, dir string, args ...string) ([]byte, error) {
		assert.Equal(t, "/work/repo/sub", dir)
		calls = append(calls, args)
		if args[0] == "rev-parse" {
			return []byte("/work/repo\n"), nil
		}
		return []byte(sampleDiff), nil
	})

	set, err := c.ChangedSet(context.Background(), "main")
	require.NoError(t, err)
	assert.True(t, set[filepath.Join("/work/repo", "pkg", "mod.py")])
	assert.False(t, set[filepath.Join("/work/repo", "old.py")])
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"diff", "-U0", "--no-color", "main", "--"}, calls[1])
}

func TestClient_Failure(t *testing.T) {
	c := NewClient(".").WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("not a git repository")
	})
	_, err := c.ChangedFiles(context.Background(), "HEAD")
	assert.ErrorContains(t, err, "git diff failed")
}
