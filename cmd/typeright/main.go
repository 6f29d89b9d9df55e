package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Exit statuses.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// runError is a failure after the command line was accepted.
type runError struct{ err error }

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

var errFilesFailed = errors.New("some files could not be annotated")

var rootCmd = &cobra.Command{
	Use:   "typeright [flags] FILE_OR_DIR...",
	Short: "Insert PEP 484 type annotations into Python sources",
	Long: `typeright reads candidate types from a JSON type-info file, an external
suggest command and docstrings, and inserts them into Python sources as inline
annotations or type comments without touching anything else.

Without --write it prints the diff it would apply.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnnotate,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var re *runError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errFilesFailed):
		return exitFailed
	case errors.As(err, &re):
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return exitFailed
	default:
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return exitUsage
	}
}

func init() {
	bindFlags(rootCmd)
}
