package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/history"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/notify"
	"git.home.luguber.info/inful/sitedeploy/internal/process"
)

// runtime holds the long-lived collaborators of a build service.
type runtime struct {
	service   *build.DefaultService
	recorder  *metrics.PrometheusRecorder
	history   history.Store
	publisher notify.Publisher
	textfile  string
}

// newRuntime wires the build service from configuration. Optional integrations that
// fail to start are logged and replaced by no-ops; a build never fails because
// history or notifications are unavailable.
func newRuntime(ctx context.Context, cfg *config.Config, verbose bool) *runtime {
	var stream io.Writer
	if verbose {
		stream = os.Stderr
	}
	rt := &runtime{
		service:   build.NewService(process.NewShellExecutor(stream)),
		history:   history.NoopStore{},
		publisher: notify.NoopPublisher{},
		textfile:  cfg.Metrics.Textfile,
	}

	if rt.textfile != "" {
		rt.recorder = metrics.NewPrometheusRecorder(nil)
		rt.service.WithRecorder(rt.recorder)
	}

	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
		if err != nil {
			slog.Warn("Build history unavailable", "error", err)
		} else {
			rt.history = store
		}
	}
	rt.service.WithHistory(rt.history)

	if cfg.Notify.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(ctx, notify.NATSOptions{
			URL:     cfg.Notify.NATSURL,
			Subject: cfg.Notify.Subject,
			Stream:  cfg.Notify.Stream,
			Timeout: cfg.NotifyTimeout(),
		})
		if err != nil {
			slog.Warn("Build notifications unavailable", "error", err)
		} else {
			rt.publisher = pub
		}
	}
	rt.service.WithPublisher(rt.publisher)
	return rt
}

// flushMetrics writes the textfile export if configured.
func (rt *runtime) flushMetrics(cfg *config.Config) {
	if rt.recorder == nil {
		return
	}
	path := cfg.Resolve(rt.textfile)
	if err := rt.recorder.WriteTextfile(path); err != nil {
		slog.Warn("Failed to write metrics textfile", "path", path, "error", err)
	}
}

func (rt *runtime) Close() {
	if err := rt.publisher.Close(); err != nil {
		slog.Warn("Failed to close notifier", "error", err)
	}
	if err := rt.history.Close(); err != nil {
		slog.Warn("Failed to close build history", "error", err)
	}
}
