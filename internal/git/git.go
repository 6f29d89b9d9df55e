package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int
}

// Runner runs git with args in dir and returns its stdout.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

// Client queries the repository that contains Dir.
type Client struct {
	Dir string
	run Runner
}

// NewClient returns a client running the git binary.
func NewClient(dir string) *Client {
	return &Client{Dir: dir, run: execGit}
}

// WithRunner replaces the git invocation.
func (c *Client) WithRunner(r Runner) *Client {
	c.run = r
	return c
}

// Root returns the top-level directory of the work tree.
func (c *Client) Root(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.Dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ChangedFiles runs git diff against baseRef and returns the changed files
// with their changed line numbers. Paths are relative to the repository root.
func (c *Client) ChangedFiles(ctx context.Context, baseRef string) ([]ChangedFile, error) {
	output, err := c.run(ctx, c.Dir, "diff", "-U0", "--no-color", baseRef, "--")
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}
	return parseDiff(output)
}

// ChangedSet returns the absolute paths of the files changed since baseRef.
func (c *Client) ChangedSet(ctx context.Context, baseRef string) (map[string]bool, error) {
	root, err := c.Root(ctx)
	if err != nil {
		return nil, err
	}
	changes, err := c.ChangedFiles(ctx, baseRef)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(changes))
	for _, ch := range changes {
		set[filepath.Join(root, filepath.FromSlash(ch.Path))] = true
	}
	return set, nil
}

func execGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// chunkHeader matches `@@ -oldStart,oldLen +newStart,newLen @@`.
var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil {
			continue
		}

		// A deleted file has no new side to annotate.
		if line == "+++ /dev/null" {
			currentFile = nil
			continue
		}

		if strings.HasPrefix(line, "@@") {
			matches := chunkHeader.FindStringSubmatch(line)
			if len(matches) > 1 {
				startLine, _ := strconv.Atoi(matches[1])
				count := 1
				if len(matches) > 2 && matches[2] != "" {
					count, _ = strconv.Atoi(matches[2])
				}
				for i := 0; i < count; i++ {
					currentFile.ChangedLines = append(currentFile.ChangedLines, startLine+i)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read git diff: %w", err)
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}
	return changes, nil
}
