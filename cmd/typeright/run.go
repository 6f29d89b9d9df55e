package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"typeright/internal/backend"
	"typeright/internal/config"
	"typeright/internal/fixer"
	"typeright/internal/pipeline"
	"typeright/internal/render"
	"typeright/internal/report"
	"typeright/internal/storage"
	"typeright/internal/typeinfo"
)

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	style, err := render.StyleFor(cfg.AnnotationStyle, cfg.Py2CommentStyle, cfg.PythonVersion)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	printer := report.New(os.Stdout, cfg.Color)

	opts := fixer.Options{
		MaxLineDrift:     cfg.MaxLineDrift,
		ExcludeAny:       cfg.ExcludeAny,
		DocFormat:        cfg.DocFormat,
		DocDefaultReturn: cfg.DocDefaultReturnType,
		AutoAny:          cfg.AutoAny,
		PythonMajor:      cfg.PythonVersion,
		Concurrency:      cfg.BackendConcurrency,
		Logger:           logger,
	}

	if cfg.TypeInfo != "" {
		table, err := loadTable(cfg, os.Getwd)
		if err != nil {
			return err
		}
		opts.Table = table
		logger.Debug("loaded type info", "file", cfg.TypeInfo, "records", table.Len())
	}

	var store storage.Store
	if cfg.CacheDB != "" {
		sqlite, err := storage.NewSQLiteStore(cfg.CacheDB)
		if err != nil {
			return &runError{fmt.Errorf("failed to initialize database: %w", err)}
		}
		defer sqlite.Close()
		store = sqlite
	}

	if cfg.Command != "" {
		bopts := backend.Options{
			Template: cfg.Command,
			Timeout:  cfg.BackendTimeout,
			Logger:   logger,
		}
		if store != nil {
			bopts.Store = store
		}
		b, err := backend.New(bopts)
		if err != nil {
			return err
		}
		opts.Backend = b
	}

	popts := pipeline.Options{
		Style:          style,
		PrintFunction:  cfg.PrintFunction,
		Write:          cfg.Write,
		WriteUnchanged: cfg.WriteUnchangedFiles,
		OutputDir:      cfg.OutputDir,
		Processes:      cfg.Processes,
		Since:          cfg.Since,
		Logger:         logger,
	}
	if store != nil {
		popts.Store = store
	}

	driver := pipeline.NewDriver(fixer.NewDefaultChain(opts), popts)
	summary, err := driver.Run(ctx, args)
	if err != nil {
		return &runError{err}
	}

	if !cfg.Quiet {
		printer.Diffs(summary)
		printer.Summary(summary)
	}
	if !summary.OK() {
		return errFilesFailed
	}
	return nil
}

// loadTable reads the type-info file and keys it against the working directory.
func loadTable(cfg *config.Config, getwd func() (string, error)) (*typeinfo.Table, error) {
	records, err := typeinfo.LoadFile(cfg.TypeInfo, typeinfo.LoadOptions{
		UsesSignature: cfg.UsesSignature,
		OnlySimple:    cfg.OnlySimple,
	})
	if err != nil {
		return nil, &runError{err}
	}
	wd, err := getwd()
	if err != nil {
		return nil, &runError{fmt.Errorf("failed to resolve working directory: %w", err)}
	}
	return typeinfo.NewTable(records, wd), nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cfg.Verbose:
		level = slog.LevelDebug
	case cfg.Quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
