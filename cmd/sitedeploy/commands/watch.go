package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before re-assembling" default:"500ms"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg, w.Debounce, root.Verbose)
}

// RunWatch assembles once and then again after every settled change, until ctx ends.
func RunWatch(ctx context.Context, cfg *config.Config, debounce time.Duration, verbose bool) error {
	rt := newRuntime(ctx, cfg, verbose)
	defer rt.Close()

	opts := build.Options{SkipInstall: true, SkipBuild: true}
	assembleOnce := func(ctx context.Context) error {
		defer rt.flushMetrics(cfg)
		res, err := rt.service.Run(ctx, build.Request{Config: cfg, Options: opts})
		if err != nil {
			return err
		}
		slog.Info("Manifest assembled",
			"build_id", res.BuildID,
			"artifacts", len(res.Envelope.Manifest.Output),
			"unchanged", res.Unchanged)
		return nil
	}

	if err := assembleOnce(ctx); err != nil {
		slog.Error("Initial assembly failed; waiting for changes", "error", err)
	}

	watcher, err := watch.New(debounce,
		watch.Target{Path: cfg.Resolve(cfg.Project.RegistryPath)},
		watch.Target{Path: cfg.Resolve(cfg.Project.RoutesFile)},
		watch.Target{Path: cfg.Resolve(cfg.Project.StaticDir), Recursive: true},
		watch.Target{Path: cfg.Resolve(cfg.Project.APIDir), Recursive: true},
	)
	if err != nil {
		return err
	}
	slog.Info("Watching for changes", "static_dir", cfg.Resolve(cfg.Project.StaticDir))
	return watcher.Run(ctx, func(ctx context.Context, changed []string) error {
		slog.Info("Change detected, re-assembling", "paths", len(changed))
		return assembleOnce(ctx)
	})
}
