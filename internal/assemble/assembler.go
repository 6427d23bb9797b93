package assemble

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/observability"
	"git.home.luguber.info/inful/sitedeploy/internal/registry"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

// Request carries the inputs of one assembly. Pages must be the finalized registry.
type Request struct {
	Pages     []registry.Page
	StaticDir string
	APIDir    string
	Routing   *routes.Config
	Runtime   string
}

// Assembler runs the classification → routing → artifact → merge pipeline.
type Assembler struct {
	transformer routes.Transformer
	static      StaticBuilder
	api         *APIBuilder
	recorder    metrics.Recorder
}

// New returns an Assembler with the default transformer and globber.
func New() *Assembler {
	return &Assembler{
		transformer: routes.NewPatternTransformer(),
		api:         NewAPIBuilder(),
		recorder:    metrics.NoopRecorder{},
	}
}

// WithTransformer overrides the route transform engine.
func (a *Assembler) WithTransformer(t routes.Transformer) *Assembler {
	if t != nil {
		a.transformer = t
	}
	return a
}

// WithGlobber overrides API handler discovery.
func (a *Assembler) WithGlobber(g Globber) *Assembler {
	if g != nil {
		a.api = &APIBuilder{Globber: g}
	}
	return a
}

// WithRecorder sets the metrics recorder.
func (a *Assembler) WithRecorder(r metrics.Recorder) *Assembler {
	if r != nil {
		a.recorder = r
	}
	return a
}

// Assemble produces the manifest. It is all-or-nothing: any error returns no manifest.
// The static walk and API discovery run concurrently; their inputs are disjoint.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*manifest.OutputManifest, error) {
	classification := Classify(req.Pages)
	observability.InfoContext(ctx, "Classified page registry",
		slog.Int("ssr", len(classification.SSRRoutes)),
		slog.Int("dsg", len(classification.DSGRoutes)),
		slog.Int("static", classification.Static))

	table, err := routes.Build(req.Routing, a.transformer)
	if err != nil {
		return nil, err
	}

	var static, api manifest.Output
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		static, err = a.timed(gctx, "static", func(ctx context.Context) (manifest.Output, error) {
			return a.static.Build(ctx, req.StaticDir)
		})
		return err
	})
	g.Go(func() error {
		var err error
		api, err = a.timed(gctx, "api", func(ctx context.Context) (manifest.Output, error) {
			return a.api.Build(ctx, req.APIDir, req.Runtime)
		})
		return err
	})
	dynamic := BuildDynamic(classification, req.Runtime)
	reserved := BuildReserved(req.Runtime)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := Merge(table, static, dynamic, api, reserved)

	a.recorder.SetArtifactCount(string(manifest.TypeFile), len(static))
	a.recorder.SetArtifactCount(string(manifest.KindAPI), len(api))
	a.recorder.SetArtifactCount("total", len(m.Output))
	a.recorder.SetRouteCount(len(m.Routes))
	observability.InfoContext(ctx, "Assembled deployment manifest",
		slog.Int("static_files", len(static)),
		slog.Int("api_functions", len(api)),
		slog.Int("artifacts", len(m.Output)),
		slog.Int("routes", len(m.Routes)))
	return m, nil
}

func (a *Assembler) timed(ctx context.Context, stage string, fn func(context.Context) (manifest.Output, error)) (manifest.Output, error) {
	ctx = observability.WithStage(ctx, stage)
	start := time.Now()
	out, err := fn(ctx)
	a.recorder.ObserveStageDuration(stage, time.Since(start))
	if err != nil {
		a.recorder.IncStageResult(stage, metrics.ResultFatal)
		observability.ErrorContext(ctx, "Artifact builder failed", logfields.Error(err))
		return nil, err
	}
	a.recorder.IncStageResult(stage, metrics.ResultSuccess)
	observability.DebugContext(ctx, "Artifact builder finished", logfields.Count(len(out)))
	return out, nil
}
