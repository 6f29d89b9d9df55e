package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file read when no path is given.
const DefaultFile = "typeright.yaml"

type Config struct {
	// Type sources.
	TypeInfo      string `yaml:"type_info" toml:"type_info"`
	MaxLineDrift  int    `yaml:"max_line_drift" toml:"max_line_drift"`
	UsesSignature bool   `yaml:"uses_signature" toml:"uses_signature"`
	OnlySimple    bool   `yaml:"only_simple" toml:"only_simple"`

	Command            string        `yaml:"command" toml:"command"`
	ExcludeAny         bool          `yaml:"exclude_any" toml:"exclude_any"`
	BackendConcurrency int           `yaml:"backend_concurrency" toml:"backend_concurrency"`
	BackendTimeout     time.Duration `yaml:"backend_timeout" toml:"backend_timeout"`
	CacheDB            string        `yaml:"cache_db" toml:"cache_db"`

	DocFormat            string `yaml:"doc_format" toml:"doc_format"`
	DocDefaultReturnType string `yaml:"doc_default_return_type" toml:"doc_default_return_type"`
	AutoAny              bool   `yaml:"auto_any" toml:"auto_any"`

	// Rendering.
	AnnotationStyle string `yaml:"annotation_style" toml:"annotation_style"`
	Py2CommentStyle string `yaml:"py2_comment_style" toml:"py2_comment_style"`
	PythonVersion   int    `yaml:"python_version" toml:"python_version"`
	PrintFunction   bool   `yaml:"print_function" toml:"print_function"`

	// Output.
	Write               bool   `yaml:"write" toml:"write"`
	OutputDir           string `yaml:"output_dir" toml:"output_dir"`
	Processes           int    `yaml:"processes" toml:"processes"`
	WriteUnchangedFiles bool   `yaml:"write_unchanged_files" toml:"write_unchanged_files"`
	Quiet               bool   `yaml:"quiet" toml:"quiet"`
	Verbose             bool   `yaml:"verbose" toml:"verbose"`
	Since               string `yaml:"since" toml:"since"`
	Color               string `yaml:"color" toml:"color"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MaxLineDrift:         5,
		BackendConcurrency:   4,
		BackendTimeout:       30 * time.Second,
		DocFormat:            "auto",
		DocDefaultReturnType: "Any",
		AnnotationStyle:      "auto",
		Py2CommentStyle:      "auto",
		PythonVersion:        3,
		Processes:            1,
		Color:                "auto",
	}
}

type pyproject struct {
	Tool struct {
		Typeright *Config `toml:"typeright"`
	} `toml:"tool"`
}

// LoadConfig layers, from lowest to highest precedence: defaults,
// [tool.typeright] of the pyproject.toml next to path, the YAML file at path
// and TYPERIGHT_* environment variables (a .env file is loaded first).
// A missing DefaultFile is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	cfg := Default()

	// 2. pyproject.toml
	pp := filepath.Join(filepath.Dir(path), "pyproject.toml")
	if _, err := os.Stat(pp); err == nil {
		doc := pyproject{}
		doc.Tool.Typeright = cfg
		if _, err := toml.DecodeFile(pp, &doc); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", pp, err)
		}
	}

	// 3. YAML config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	// 4. Override with Environment Variables if present
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"TYPERIGHT_TYPE_INFO":        &c.TypeInfo,
		"TYPERIGHT_COMMAND":          &c.Command,
		"TYPERIGHT_CACHE_DB":         &c.CacheDB,
		"TYPERIGHT_DOC_FORMAT":       &c.DocFormat,
		"TYPERIGHT_ANNOTATION_STYLE": &c.AnnotationStyle,
		"TYPERIGHT_OUTPUT_DIR":       &c.OutputDir,
		"TYPERIGHT_COLOR":            &c.Color,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TYPERIGHT_PYTHON_VERSION":      &c.PythonVersion,
		"TYPERIGHT_PROCESSES":           &c.Processes,
		"TYPERIGHT_MAX_LINE_DRIFT":      &c.MaxLineDrift,
		"TYPERIGHT_BACKEND_CONCURRENCY": &c.BackendConcurrency,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := getenv("TYPERIGHT_BACKEND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TYPERIGHT_BACKEND_TIMEOUT: %w", err)
		}
		c.BackendTimeout = d
	}
	return nil
}

// Validate rejects unknown enum values and out-of-range numbers.
func (c *Config) Validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"doc_format", c.DocFormat, []string{"auto", "numpydoc", "googledoc", "restdoc", "off"}},
		{"annotation_style", c.AnnotationStyle, []string{"auto", "py2", "py3"}},
		{"py2_comment_style", c.Py2CommentStyle, []string{"auto", "single", "multi"}},
		{"color", c.Color, []string{"auto", "always", "never"}},
	}
	for _, chk := range checks {
		if !contains(chk.allowed, chk.value) {
			return fmt.Errorf("invalid %s %q (want one of %v)", chk.key, chk.value, chk.allowed)
		}
	}
	switch {
	case c.PythonVersion != 2 && c.PythonVersion != 3:
		return fmt.Errorf("invalid python_version %d (want 2 or 3)", c.PythonVersion)
	case c.MaxLineDrift < 0:
		return fmt.Errorf("invalid max_line_drift %d", c.MaxLineDrift)
	case c.Processes < 1:
		return fmt.Errorf("invalid processes %d", c.Processes)
	case c.BackendConcurrency < 1:
		return fmt.Errorf("invalid backend_concurrency %d", c.BackendConcurrency)
	case c.BackendTimeout < 0:
		return fmt.Errorf("invalid backend_timeout %s", c.BackendTimeout)
	case c.Quiet && c.Verbose:
		return errors.New("quiet and verbose are mutually exclusive")
	case c.TypeInfo == "" && c.Command == "" && c.DocFormat == "off" && !c.AutoAny:
		return errors.New("no type source: set type_info, command, doc_format or auto_any")
	}
	return nil
}

// WritesFiles reports whether output goes to files rather than diffs.
func (c *Config) WritesFiles() bool {
	return c.Write || c.WriteUnchangedFiles
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
