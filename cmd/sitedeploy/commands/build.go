package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/vcs"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SkipInstall bool `name:"skip-install" help:"Do not install dependencies"`
	SkipBuild   bool `name:"skip-build" help:"Do not run the site generator"`
	DryRun      bool `name:"dry-run" help:"Assemble without writing the manifest"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	return RunBuild(cfg, build.Options{SkipInstall: b.SkipInstall, SkipBuild: b.SkipBuild, DryRun: b.DryRun}, root.Verbose, os.Stdout)
}

// RunBuild executes one pipeline run and prints a summary to out.
func RunBuild(cfg *config.Config, opts build.Options, verbose bool, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt := newRuntime(ctx, cfg, verbose)
	defer rt.Close()
	defer rt.flushMetrics(cfg)

	res, err := rt.service.Run(ctx, build.Request{Config: cfg, Options: opts})
	if err != nil {
		return err
	}
	printSummary(out, res)
	return nil
}

func printSummary(out io.Writer, res *build.Result) {
	env := res.Envelope
	_, _ = fmt.Fprintf(out, "Build %s %s in %s\n", res.BuildID, res.Status, res.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(out, "  runtime:   %s\n", env.Runtime)
	if env.Revision != "" {
		_, _ = fmt.Fprintf(out, "  revision:  %s\n", (&vcs.Revision{Commit: env.Revision}).Short())
	}
	_, _ = fmt.Fprintf(out, "  artifacts: %d\n", len(env.Manifest.Output))
	_, _ = fmt.Fprintf(out, "  routes:    %d\n", len(env.Manifest.Routes))
	switch {
	case res.ManifestPath != "":
		_, _ = fmt.Fprintf(out, "  manifest:  %s\n", res.ManifestPath)
	default:
		_, _ = fmt.Fprintln(out, "  manifest:  not written (dry run)")
	}
	if res.Unchanged {
		_, _ = fmt.Fprintln(out, "  unchanged since previous build")
	}
}
