package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/history"
	"git.home.luguber.info/inful/sitedeploy/internal/vcs"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of builds to list" default:"20"`
	ID    string `arg:"" optional:"" help:"Show one build with its stages"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	path := cfg.Resolve(cfg.History.Path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return derrors.NewError(derrors.CategoryNotFound, "no build history recorded (enable history.enabled)").
			WithContext("path", path).
			UserAction().
			Build()
	}
	store, err := history.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if h.ID != "" {
		return ShowBuild(context.Background(), store, h.ID, os.Stdout)
	}
	return ListBuilds(context.Background(), store, h.Limit, os.Stdout)
}

// ListBuilds prints recent builds as a table.
func ListBuilds(ctx context.Context, store history.Store, limit int, out io.Writer) error {
	entries, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No builds recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tREVISION\tARTIFACTS\tROUTES\tDURATION")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID,
			e.StartedAt.Local().Format(time.DateTime),
			e.Status,
			(&vcs.Revision{Commit: e.Revision}).Short(),
			e.Artifacts,
			e.Routes,
			e.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

// ShowBuild prints one build including its stage timings.
func ShowBuild(ctx context.Context, store history.Store, id string, out io.Writer) error {
	e, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Build %s (%s)\n", e.ID, e.Status)
	_, _ = fmt.Fprintf(out, "  project:   %s\n", e.Project)
	_, _ = fmt.Fprintf(out, "  started:   %s\n", e.StartedAt.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(out, "  runtime:   %s (%s)\n", e.Runtime, e.PackageManager)
	_, _ = fmt.Fprintf(out, "  revision:  %s\n", e.Revision)
	_, _ = fmt.Fprintf(out, "  manifest:  %s\n", e.ManifestHash)
	if e.Error != "" {
		_, _ = fmt.Fprintf(out, "  error:     %s\n", e.Error)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  STAGE\tSTATUS\tDURATION")
	for _, st := range e.Stages {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", st.Name, st.Status, st.Duration)
	}
	return tw.Flush()
}
