package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sample")
	require.NoError(t, os.Mkdir(dir, 0o755))

	cfg, err := Load(filepath.Join(dir, "chore.yaml"))
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "sample", cfg.Project)
	assert.Equal(t, "sample/_version.py", filepath.ToSlash(cfg.Release.VersionFile))
	assert.Equal(t, "sample", cfg.Docs.Watch)
	assert.Equal(t, dir+"/sample:"+dir+":"+dir+"/tests", cfg.Notebook.Env["PYTHONPATH"])
	assert.Equal(t, dir+"/notebooks", cfg.Notebook.Env["JUPYTER_CONFIG_DIR"])
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, []string{"build", "dist", "*.egg-info"}, cfg.Clean.Paths)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chore.yaml")
	writeFile(t, path, `
project: widgets
test:
  runner: pytest -x
loc:
  pattern: "*.go"
  excludes: [vendor]
history:
  enabled: false
profile:
  modules:
    bench: "{root}/bench.star"
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "widgets", cfg.Project)
	assert.Equal(t, "pytest -x", cfg.Test.Runner)
	assert.Equal(t, "flake8 .", cfg.Test.Lint, "unset keys keep defaults")
	assert.Equal(t, "*.go", cfg.Loc.Pattern)
	assert.Equal(t, []string{"vendor"}, cfg.Loc.Excludes)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(dir, "bench.star"), cfg.Profile.Modules["bench"])
	assert.Equal(t, "widgets/_version.py", filepath.ToSlash(cfg.Release.VersionFile))
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_CUE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chore.cue")
	writeFile(t, path, `
project: "gadgets"
docs: {
	dir:       "documentation"
	build_dir: "documentation/out"
}
release: version_file: "gadgets/__init__.py"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gadgets", cfg.Project)
	assert.Equal(t, "documentation", cfg.Docs.Dir)
	assert.Equal(t, "documentation/out", cfg.Docs.BuildDir)
	assert.Equal(t, "gadgets/__init__.py", cfg.Release.VersionFile)
	assert.Equal(t, "pytest", cfg.Test.Runner)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "project: [unclosed"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad loc pattern", "loc:\n  pattern: \"[\"\n"},
		{"empty version file", "release:\n  version_file: \"\"\n"},
		{"history without path", "history:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "chore.yaml")
			writeFile(t, path, tt.content)

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "chore.yml"), "project: found\n")

	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Project)
	assert.Equal(t, dir, cfg.Root)
}

func TestDiscover_NoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), cfg.Project)
}

func TestPath(t *testing.T) {
	cfg := &Config{Root: "/work/proj"}

	assert.Equal(t, filepath.Join("/work/proj", "docs"), cfg.Path("docs"))
	assert.Equal(t, "/abs", cfg.Path("/abs"))
}
