package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pyproject.toml"), `
[project]
name = "demo"

[tool.typeright]
type_info = "from-pyproject.json"
max_line_drift = 3
backend_timeout = "5s"
auto_any = true
`)
	writeFile(t, filepath.Join(dir, "typeright.yaml"), `
type_info: from-yaml.json
processes: 4
py2_comment_style: multi
`)
	t.Setenv("TYPERIGHT_PYTHON_VERSION", "2")

	cfg, err := LoadConfig(filepath.Join(dir, "typeright.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "from-yaml.json", cfg.TypeInfo, "yaml wins over pyproject")
	assert.Equal(t, 3, cfg.MaxLineDrift)
	assert.Equal(t, 5*time.Second, cfg.BackendTimeout)
	assert.True(t, cfg.AutoAny)
	assert.Equal(t, 4, cfg.Processes)
	assert.Equal(t, "multi", cfg.Py2CommentStyle)
	assert.Equal(t, 2, cfg.PythonVersion, "environment wins over files")
	assert.Equal(t, "auto", cfg.DocFormat, "defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFiles(t *testing.T) {
	t.Run("explicit path must exist", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("default file is optional", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
}

func TestLoadConfig_BadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typeright.yaml")
	writeFile(t, path, "auto_any: true\n")
	t.Setenv("TYPERIGHT_PROCESSES", "many")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "TYPERIGHT_PROCESSES")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "doc format", mutate: func(c *Config) { c.DocFormat = "epydoc" }, wantErr: "doc_format"},
		{name: "annotation style", mutate: func(c *Config) { c.AnnotationStyle = "py4" }, wantErr: "annotation_style"},
		{name: "comment style", mutate: func(c *Config) { c.Py2CommentStyle = "double" }, wantErr: "py2_comment_style"},
		{name: "python version", mutate: func(c *Config) { c.PythonVersion = 4 }, wantErr: "python_version"},
		{name: "processes", mutate: func(c *Config) { c.Processes = 0 }, wantErr: "processes"},
		{name: "quiet and verbose", mutate: func(c *Config) { c.Quiet, c.Verbose = true, true }, wantErr: "mutually exclusive"},
		{name: "no source", mutate: func(c *Config) { c.DocFormat = "off" }, wantErr: "no type source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
