// Package report prints diffs and run summaries for humans.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"typeright/internal/pipeline"
)

// Printer writes to out, colored when the mode asks for it.
type Printer struct {
	out io.Writer

	add, del, hunk, bold, warn *color.Color
}

// New returns a printer. mode is "always", "never" or "auto", which colors
// only when out is a terminal.
func New(out io.Writer, mode string) *Printer {
	p := &Printer{
		out:  out,
		add:  color.New(color.FgGreen),
		del:  color.New(color.FgRed),
		hunk: color.New(color.FgCyan),
		bold: color.New(color.Bold),
		warn: color.New(color.FgYellow),
	}
	enabled := mode == "always" || (mode == "auto" && isTerminal(out))
	for _, c := range []*color.Color{p.add, p.del, p.hunk, p.bold, p.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Diff prints a unified diff line by line.
func (p *Printer) Diff(diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			p.bold.Fprint(p.out, line)
		case strings.HasPrefix(line, "@@"):
			p.hunk.Fprint(p.out, line)
		case strings.HasPrefix(line, "+"):
			p.add.Fprint(p.out, line)
		case strings.HasPrefix(line, "-"):
			p.del.Fprint(p.out, line)
		default:
			fmt.Fprint(p.out, line)
		}
	}
}

// Diffs prints the diff of every job that has one, in input order.
func (p *Printer) Diffs(s *pipeline.Summary) {
	for _, j := range s.Jobs {
		if j.Diff != "" {
			p.Diff(j.Diff)
		}
	}
}

// Summary prints per-file outcomes of interest and the totals.
func (p *Printer) Summary(s *pipeline.Summary) {
	for _, j := range s.Jobs {
		switch j.State {
		case pipeline.StateFailed:
			p.del.Fprintf(p.out, "❌ %s: %s: %v\n", j.Path, j.ErrorKind(), j.Err)
		case pipeline.StateWritten:
			if j.Wrote {
				fmt.Fprintf(p.out, "✍️  %s (%d edits)\n", j.OutPath, j.Edits)
			}
			if j.Fallbacks > 0 {
				p.warn.Fprintf(p.out, "⚠️  %s: %d sites used type comments\n", j.Path, j.Fallbacks)
			}
		}
	}

	for _, st := range s.Stages {
		fmt.Fprintf(p.out, "  -> %-9s attempted=%d resolved=%d skipped=%d failed=%d overrides=%d\n",
			st.Fixer, st.Stats.Attempted, st.Stats.Resolved, st.Stats.Skipped, st.Stats.Failed, st.Stats.Overrides)
	}

	mark := p.add.Sprint("✅")
	if !s.OK() {
		mark = p.del.Sprint("❌")
	}
	fmt.Fprintf(p.out, "%s %s\n", mark, s)
}
