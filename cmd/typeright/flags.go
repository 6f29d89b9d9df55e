package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"typeright/internal/config"
)

var (
	configPath string
	flagValues = config.Default()
)

func bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	v := flagValues

	f.StringVarP(&configPath, "config", "c", "", "YAML configuration file (default ./"+config.DefaultFile+" when present)")

	f.StringVar(&v.TypeInfo, "type-info", "", "JSON file with type information")
	f.IntVar(&v.MaxLineDrift, "max-line-drift", v.MaxLineDrift, "Maximum line distance between a type-info record and its def")
	f.BoolVar(&v.UsesSignature, "uses-signature", false, "Type info carries signatures, not collected type comments")
	f.BoolVar(&v.OnlySimple, "only-simple", false, "Only use type info whose types are single names")

	f.StringVar(&v.Command, "command", "", "Suggest command template using {filename}, {lineno} and {funcname}")
	f.BoolVar(&v.ExcludeAny, "exclude-any", false, "Ignore suggestions that mention Any")
	f.IntVar(&v.BackendConcurrency, "backend-concurrency", v.BackendConcurrency, "Concurrent suggest queries per file")
	f.DurationVar(&v.BackendTimeout, "backend-timeout", v.BackendTimeout, "Timeout of one suggest query")
	f.StringVar(&v.CacheDB, "cache-db", "", "SQLite file caching suggest replies across runs")

	f.StringVar(&v.DocFormat, "doc-format", v.DocFormat, "Docstring convention: auto, numpydoc, googledoc, restdoc or off")
	f.StringVar(&v.DocDefaultReturnType, "doc-default-return-type", v.DocDefaultReturnType, "Return type used when a docstring documents none")
	f.BoolVar(&v.AutoAny, "auto-any", false, "Annotate everything left unresolved with Any")

	f.StringVar(&v.AnnotationStyle, "annotation-style", v.AnnotationStyle, "auto, py2 (type comments) or py3 (inline)")
	f.StringVar(&v.Py2CommentStyle, "py2-comment-style", v.Py2CommentStyle, "Type comment layout: auto, single or multi")
	f.IntVar(&v.PythonVersion, "python-version", v.PythonVersion, "Major Python version of the sources")
	f.BoolVar(&v.PrintFunction, "print-function", false, "Reject sources that use the print statement")

	f.BoolVarP(&v.Write, "write", "w", false, "Write changes back instead of printing diffs")
	f.StringVarP(&v.OutputDir, "output-dir", "o", "", "Write files under this directory instead of in place")
	f.IntVarP(&v.Processes, "processes", "j", v.Processes, "Files processed in parallel")
	f.BoolVar(&v.WriteUnchangedFiles, "write-unchanged-files", false, "Also write files without changes (implies --write)")
	f.BoolVarP(&v.Quiet, "quiet", "q", false, "Print no diffs or summary")
	f.BoolVarP(&v.Verbose, "verbose", "v", false, "Log debug details")
	f.StringVar(&v.Since, "since", "", "Only process files changed relative to this git ref")
	f.StringVar(&v.Color, "color", v.Color, "Color output: auto, always or never")
}

// applyFlags copies the flags set on the command line over cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	v := flagValues
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "type-info":
			cfg.TypeInfo = v.TypeInfo
		case "max-line-drift":
			cfg.MaxLineDrift = v.MaxLineDrift
		case "uses-signature":
			cfg.UsesSignature = v.UsesSignature
		case "only-simple":
			cfg.OnlySimple = v.OnlySimple
		case "command":
			cfg.Command = v.Command
		case "exclude-any":
			cfg.ExcludeAny = v.ExcludeAny
		case "backend-concurrency":
			cfg.BackendConcurrency = v.BackendConcurrency
		case "backend-timeout":
			cfg.BackendTimeout = v.BackendTimeout
		case "cache-db":
			cfg.CacheDB = v.CacheDB
		case "doc-format":
			cfg.DocFormat = v.DocFormat
		case "doc-default-return-type":
			cfg.DocDefaultReturnType = v.DocDefaultReturnType
		case "auto-any":
			cfg.AutoAny = v.AutoAny
		case "annotation-style":
			cfg.AnnotationStyle = v.AnnotationStyle
		case "py2-comment-style":
			cfg.Py2CommentStyle = v.Py2CommentStyle
		case "python-version":
			cfg.PythonVersion = v.PythonVersion
		case "print-function":
			cfg.PrintFunction = v.PrintFunction
		case "write":
			cfg.Write = v.Write
		case "output-dir":
			cfg.OutputDir = v.OutputDir
		case "processes":
			cfg.Processes = v.Processes
		case "write-unchanged-files":
			cfg.WriteUnchangedFiles = v.WriteUnchangedFiles
		case "quiet":
			cfg.Quiet = v.Quiet
		case "verbose":
			cfg.Verbose = v.Verbose
		case "since":
			cfg.Since = v.Since
		case "color":
			cfg.Color = v.Color
		}
	})
}
