package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fentz26/chore/internal/audit"
	"github.com/fentz26/chore/internal/browser"
	"github.com/fentz26/chore/internal/config"
	"github.com/fentz26/chore/internal/connectors"
	"github.com/fentz26/chore/internal/connectors/localexec"
	"github.com/fentz26/chore/internal/logging"
	"github.com/fentz26/chore/internal/registry"
	"github.com/fentz26/chore/internal/store"
	"github.com/fentz26/chore/internal/tui"
)

// setup builds the runtime shared by every task of one invocation.
func setup(_ context.Context, g registry.Globals) (*registry.Runtime, func(), error) {
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}

	logger, closeLog, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	var runner connectors.Connector = localexec.New(cfg.Root,
		localexec.WithShell(cfg.Shell),
		localexec.WithLogger(logger),
		localexec.WithEchoFormat(tui.Echo),
	)

	rt := &registry.Runtime{
		Config:   cfg,
		Logger:   logger,
		Prompter: tui.NewPrompter(os.Stdin, os.Stdout),
		Browser:  browser.New(cfg.Root),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Echo:     g.Echo,
	}

	cleanup := func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: closing log file: %v\n", err)
		}
	}

	if cfg.History.Enabled {
		s, err := store.New(cfg.Path(cfg.History.Path))
		if err != nil {
			// Tasks still run without history.
			logger.Warn("run history disabled", "path", cfg.History.Path, "error", err)
		} else {
			recorder := audit.NewRecorder(s, logger)
			runner = recorder.Wrap(runner)
			rt.Journal = recorder
			rt.History = s
			closeLogOnly := cleanup
			cleanup = func() {
				s.Close()
				closeLogOnly()
			}
		}
	}
	rt.Runner = runner

	logger.Debug("runtime ready", "root", cfg.Root, "project", cfg.Project, "history", rt.History != nil)
	return rt, cleanup, nil
}

// loadConfig reads the file named by --config, or discovers one in the
// working directory.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	return config.Discover(wd)
}
