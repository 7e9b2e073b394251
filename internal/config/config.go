// Package config loads the chore project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// FileNames are the config files looked up in the project root, in order.
var FileNames = []string{"chore.yaml", "chore.yml", "chore.cue"}

// Config holds the project configuration.
type Config struct {
	// Project is the package name; defaults to the root directory name.
	Project string `yaml:"project" json:"project"`
	// Root is the directory every relative path is resolved against.
	Root string `yaml:"-" json:"-"`
	// Shell runs command lines; empty picks bash or sh.
	Shell string `yaml:"shell" json:"shell"`

	Notebook NotebookConfig `yaml:"notebook" json:"notebook"`
	Docs     DocsConfig     `yaml:"docs" json:"docs"`
	Test     TestConfig     `yaml:"test" json:"test"`
	Release  ReleaseConfig  `yaml:"release" json:"release"`
	Clean    CleanConfig    `yaml:"clean" json:"clean"`
	Loc      LocConfig      `yaml:"loc" json:"loc"`
	Profile  ProfileConfig  `yaml:"profile" json:"profile"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// NotebookConfig configures the notebook server tasks.
type NotebookConfig struct {
	Dir string `yaml:"dir" json:"dir"`
	// Env is passed to the notebook server process only.
	Env      map[string]string `yaml:"env" json:"env"`
	Setup    string            `yaml:"setup" json:"setup"`
	Server   string            `yaml:"server" json:"server"`
	Remote   string            `yaml:"remote" json:"remote"`
	ShareURL string            `yaml:"share_url" json:"share_url"`
}

// DocsConfig configures the documentation tasks.
type DocsConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	BuildDir string `yaml:"build_dir" json:"build_dir"`
	Builder  string `yaml:"builder" json:"builder"`
	Watcher  string `yaml:"watcher" json:"watcher"`
	// Watch is the extra directory the watcher rebuilds on.
	Watch string `yaml:"watch" json:"watch"`
}

// TestConfig configures the test and lint tasks.
type TestConfig struct {
	Runner         string `yaml:"runner" json:"runner"`
	Lint           string `yaml:"lint" json:"lint"`
	CoverageReport string `yaml:"coverage_report" json:"coverage_report"`
}

// ReleaseConfig configures versioning and publishing.
type ReleaseConfig struct {
	VersionFile   string `yaml:"version_file" json:"version_file"`
	CommitMessage string `yaml:"commit_message" json:"commit_message"`
	Build         string `yaml:"build" json:"build"`
	Upload        string `yaml:"upload" json:"upload"`
	TestBuild     string `yaml:"test_build" json:"test_build"`
	TestUpload    string `yaml:"test_upload" json:"test_upload"`
}

// CleanConfig lists the build artifacts removed by clean.
type CleanConfig struct {
	Paths []string `yaml:"paths" json:"paths"`
}

// LocConfig configures line counting.
type LocConfig struct {
	Pattern  string   `yaml:"pattern" json:"pattern"`
	Excludes []string `yaml:"excludes" json:"excludes"`
}

// ProfileConfig configures profile targets.
type ProfileConfig struct {
	// Modules maps a module name to a starlark file.
	Modules map[string]string `yaml:"modules" json:"modules"`
	// Env is set in-process while a target runs.
	Env map[string]string `yaml:"env" json:"env"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	Journal bool   `yaml:"journal" json:"journal"`
}

// DefaultConfig returns the defaults for a Python project laid out with a
// package directory, tests, docs and notebooks.
func DefaultConfig() *Config {
	return &Config{
		Notebook: NotebookConfig{
			Dir: "notebooks",
			Env: map[string]string{
				"PYTHONPATH":         "{root}/{project}:{root}:{root}/tests",
				"JUPYTER_CONFIG_DIR": "{root}/notebooks",
			},
			Setup:    "jupyter nbextension enable --py widgetsnbextension",
			Server:   "jupyter notebook --ip=*",
			Remote:   "origin",
			ShareURL: "https://mybinder.org/v2/gh/{org}/{name}/{branch}?filepath=notebooks",
		},
		Docs: DocsConfig{
			Dir:      "docs",
			BuildDir: filepath.Join("docs", "_build"),
			Builder:  "sphinx-build",
			Watcher:  "sphinx-autobuild",
			Watch:    "{project}",
		},
		Test: TestConfig{
			Runner:         "pytest",
			Lint:           "flake8 .",
			CoverageReport: filepath.Join("htmlcov", "index.html"),
		},
		Release: ReleaseConfig{
			VersionFile:   "{project}/_version.py",
			CommitMessage: "version bump",
			Build:         "python setup.py register sdist bdist_wheel",
			Upload:        "twine upload dist/*",
			TestBuild:     "python setup.py register -r test sdist bdist_wheel",
			TestUpload:    "twine upload dist/* -r test",
		},
		Clean: CleanConfig{
			Paths: []string{"build", "dist", "*.egg-info"},
		},
		Loc: LocConfig{
			Pattern:  "*py",
			Excludes: []string{"/test/", "docs", "htmlcov", "README.md", "README.rst", ".eggs"},
		},
		Profile: ProfileConfig{
			Modules: map[string]string{},
			Env:     map[string]string{},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(".chore", "history.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML or CUE file. A missing file yields
// the defaults rooted at the file's directory.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Root = filepath.Dir(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.finalize()
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(abs), ".cue") {
		err = decodeCUE(abs, data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Discover loads the first of FileNames found in dir, or the defaults
// rooted at dir when there is none.
func Discover(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Load(filepath.Join(dir, FileNames[0]))
}

func decodeCUE(path string, data []byte, cfg *Config) error {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return err
	}
	return value.Decode(cfg)
}

func (c *Config) finalize() error {
	if c.Project == "" {
		c.Project = filepath.Base(c.Root)
	}
	for _, s := range []*string{
		&c.Notebook.Dir,
		&c.Docs.Dir,
		&c.Docs.BuildDir,
		&c.Docs.Watch,
		&c.Test.CoverageReport,
		&c.Release.VersionFile,
		&c.History.Path,
		&c.Log.File,
	} {
		*s = c.Expand(*s)
	}
	for k, v := range c.Notebook.Env {
		c.Notebook.Env[k] = c.Expand(v)
	}
	for k, v := range c.Profile.Env {
		c.Profile.Env[k] = c.Expand(v)
	}
	for k, v := range c.Profile.Modules {
		c.Profile.Modules[k] = c.Expand(v)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("project cannot be empty")
	}
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level %q, must be: debug, info, warn, or error", c.Log.Level)
	}
	if _, err := filepath.Match(c.Loc.Pattern, ""); err != nil || c.Loc.Pattern == "" {
		return fmt.Errorf("invalid loc pattern %q", c.Loc.Pattern)
	}
	if c.Release.VersionFile == "" {
		return fmt.Errorf("release.version_file cannot be empty")
	}
	if c.Docs.Dir == "" || c.Docs.BuildDir == "" {
		return fmt.Errorf("docs.dir and docs.build_dir cannot be empty")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path cannot be empty when history is enabled")
	}
	return nil
}

// Expand replaces {root} and {project} placeholders.
func (c *Config) Expand(s string) string {
	return strings.NewReplacer("{root}", c.Root, "{project}", c.Project).Replace(s)
}

// Path resolves a path relative to the project root.
func (c *Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}
