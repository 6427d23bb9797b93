package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitedeploy/internal/assemble"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/history"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/notify"
	"git.home.luguber.info/inful/sitedeploy/internal/observability"
	"git.home.luguber.info/inful/sitedeploy/internal/output"
	"git.home.luguber.info/inful/sitedeploy/internal/process"
	"git.home.luguber.info/inful/sitedeploy/internal/registry"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
	"git.home.luguber.info/inful/sitedeploy/internal/toolchain"
	"git.home.luguber.info/inful/sitedeploy/internal/vcs"
)

// Stage names, used for logs, metrics and history.
const (
	StageToolchain = "toolchain"
	StageInstall   = "install"
	StageBuild     = "build"
	StageRegistry  = "registry"
	StageRouting   = "routing"
	StageAssemble  = "assemble"
	StageWrite     = "write"
)

// ResolverFactory builds a toolchain resolver from configuration overrides.
type ResolverFactory func(cfg *config.Config) toolchain.Resolver

// ReaderFactory opens the page registry at path.
type ReaderFactory func(path string) registry.Reader

// RevisionFunc returns the source revision of dir; nil when unknown.
type RevisionFunc func(dir string) (*vcs.Revision, error)

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	executor        process.Executor
	resolverFactory ResolverFactory
	readerFactory   ReaderFactory
	revision        RevisionFunc
	assembler       *assemble.Assembler
	recorder        metrics.Recorder
	history         history.Store
	publisher       notify.Publisher
	newID           func() string
	now             func() time.Time
}

// NewService creates a DefaultService that runs commands through executor.
func NewService(executor process.Executor) *DefaultService {
	return &DefaultService{
		executor: executor,
		resolverFactory: func(cfg *config.Config) toolchain.Resolver {
			return toolchain.NewResolver(toolchain.Options{
				NodeVersion:    cfg.Toolchain.NodeVersion,
				PackageManager: cfg.Toolchain.PackageManager,
			})
		},
		readerFactory: func(path string) registry.Reader { return registry.NewFileReader(path) },
		revision:      vcs.Head,
		assembler:     assemble.New(),
		recorder:      metrics.NoopRecorder{},
		history:       history.NoopStore{},
		publisher:     notify.NoopPublisher{},
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// WithResolverFactory allows injecting a custom toolchain resolver (for testing).
func (s *DefaultService) WithResolverFactory(f ResolverFactory) *DefaultService {
	s.resolverFactory = f
	return s
}

// WithReaderFactory allows injecting a custom registry reader (for testing).
func (s *DefaultService) WithReaderFactory(f ReaderFactory) *DefaultService {
	s.readerFactory = f
	return s
}

// WithRevisionFunc overrides source revision lookup.
func (s *DefaultService) WithRevisionFunc(f RevisionFunc) *DefaultService {
	s.revision = f
	return s
}

// WithRecorder sets the metrics recorder for the service and its assembler.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r != nil {
		s.recorder = r
		s.assembler.WithRecorder(r)
	}
	return s
}

// WithHistory sets the build history store.
func (s *DefaultService) WithHistory(h history.Store) *DefaultService {
	if h != nil {
		s.history = h
	}
	return s
}

// WithPublisher sets the build event publisher.
func (s *DefaultService) WithPublisher(p notify.Publisher) *DefaultService {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithIDGenerator overrides build id generation (for testing).
func (s *DefaultService) WithIDGenerator(f func() string) *DefaultService {
	s.newID = f
	return s
}

// Run executes the complete pipeline.
func (s *DefaultService) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{BuildID: s.newID(), StartTime: s.now()}
	ctx = observability.WithBuildID(ctx, result.BuildID)

	cfg := req.Config
	if cfg == nil {
		return s.fail(ctx, result, "", derrors.ConfigError("config required").Build())
	}
	project := cfg.Project.Name
	ctx = observability.WithProject(ctx, project)
	root := cfg.Project.Root
	observability.InfoContext(ctx, "Starting deployment build", logfields.Path(root))

	// Stage 1: toolchain
	err := s.stage(ctx, result, StageToolchain, func(ctx context.Context) error {
		tc, err := s.resolverFactory(cfg).Resolve(ctx, root)
		result.Toolchain = tc
		return err
	})
	if err != nil {
		return s.fail(ctx, result, project, err)
	}
	tc := result.Toolchain
	env := commandEnv(cfg, tc, result.BuildID)

	// Stage 2: install
	if req.Options.SkipInstall || cfg.Toolchain.SkipInstall {
		observability.InfoContext(ctx, "Skipping dependency install")
	} else {
		line := cfg.Toolchain.InstallCommand
		if line == "" {
			line = tc.InstallCommand()
		}
		err = s.stage(ctx, result, StageInstall, func(ctx context.Context) error {
			return s.exec(ctx, process.Command{Stage: StageInstall, Line: line, Dir: root, Env: env}, derrors.CategoryInstall)
		})
		if err != nil {
			return s.fail(ctx, result, project, err)
		}
	}

	// Stage 3: site generator build
	if req.Options.SkipBuild || cfg.Toolchain.SkipBuild {
		observability.InfoContext(ctx, "Skipping site build")
	} else {
		line, source := tc.BuildCommand(cfg.Toolchain.BuildCommand)
		observability.InfoContext(ctx, "Selected build command", logfields.Command(line), slog.String("source", source))
		err = s.stage(ctx, result, StageBuild, func(ctx context.Context) error {
			return s.exec(ctx, process.Command{Stage: StageBuild, Line: line, Dir: root, Env: env}, derrors.CategoryBuild)
		})
		if err != nil {
			return s.fail(ctx, result, project, err)
		}
	}

	// Stage 4: registry, read only after the generator has exited.
	var pages []registry.Page
	err = s.stage(ctx, result, StageRegistry, func(ctx context.Context) error {
		pages, err = s.readerFactory(cfg.Resolve(cfg.Project.RegistryPath)).Read(ctx)
		return err
	})
	if err != nil {
		return s.fail(ctx, result, project, err)
	}

	// Stage 5: routing configuration
	var routing *routes.Config
	err = s.stage(ctx, result, StageRouting, func(context.Context) error {
		routing, err = config.LoadRouting(cfg.Resolve(cfg.Project.RoutesFile))
		return err
	})
	if err != nil {
		return s.fail(ctx, result, project, err)
	}

	// Stage 6: assemble
	var m *manifest.OutputManifest
	err = s.stage(ctx, result, StageAssemble, func(ctx context.Context) error {
		m, err = s.assembler.Assemble(ctx, assemble.Request{
			Pages:     pages,
			StaticDir: cfg.Resolve(cfg.Project.StaticDir),
			APIDir:    cfg.Resolve(cfg.Project.APIDir),
			Routing:   routing,
			Runtime:   tc.Runtime(),
		})
		return err
	})
	if err != nil {
		return s.fail(ctx, result, project, err)
	}

	hash, err := m.Hash()
	if err != nil {
		return s.fail(ctx, result, project, derrors.WrapError(err, derrors.CategoryInternal, "hash manifest").Build())
	}
	result.Envelope = &manifest.Envelope{
		ID:             result.BuildID,
		Project:        project,
		Revision:       s.lookupRevision(ctx, root),
		Runtime:        tc.Runtime(),
		PackageManager: string(tc.PackageManager),
		CreatedAt:      s.now().UTC(),
		Hash:           hash,
		Manifest:       m,
	}

	// Stage 7: write
	outDir := cfg.Resolve(cfg.Output.Directory)
	if prev, perr := output.ReadEnvelope(outDir); perr != nil {
		observability.WarnContext(ctx, "Ignoring unreadable previous manifest", logfields.Error(perr))
	} else if prev != nil && prev.Hash == hash {
		result.Unchanged = true
		observability.InfoContext(ctx, "Manifest unchanged since previous build", slog.String("previous_build", prev.ID))
	}
	if req.Options.DryRun {
		observability.InfoContext(ctx, "Dry run, manifest not written")
	} else {
		err = s.stage(ctx, result, StageWrite, func(ctx context.Context) error {
			res, err := (&output.Writer{Dir: outDir, Clean: cfg.Output.Clean}).Write(ctx, result.Envelope)
			if err == nil {
				result.ManifestPath = res.ManifestPath
			}
			return err
		})
		if err != nil {
			return s.fail(ctx, result, project, err)
		}
	}

	return s.succeed(ctx, result, project)
}

// stage runs fn as a named pipeline stage, recording its duration and outcome.
func (s *DefaultService) stage(ctx context.Context, result *Result, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
		result.Stages = append(result.Stages, history.Stage{Name: name, Status: history.StatusCanceled})
		return err
	}
	ctx = observability.WithStage(ctx, name)
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)
	s.recorder.ObserveStageDuration(name, d)

	st := history.Stage{Name: name, Status: history.StatusSuccess, Duration: d}
	switch {
	case err == nil:
		s.recorder.IncStageResult(name, metrics.ResultSuccess)
		observability.DebugContext(ctx, "Stage complete", logfields.DurationMS(float64(d.Milliseconds())))
	case isCancel(ctx, err):
		st.Status = history.StatusCanceled
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
	default:
		st.Status = history.StatusFailed
		s.recorder.IncStageResult(name, metrics.ResultFatal)
		observability.ErrorContext(ctx, "Stage failed", logfields.Error(err))
	}
	result.Stages = append(result.Stages, st)
	return err
}

// exec runs a command and classifies a non-zero exit under category.
func (s *DefaultService) exec(ctx context.Context, cmd process.Command, category derrors.ErrorCategory) error {
	err := s.executor.Run(ctx, cmd)
	if err == nil || isCancel(ctx, err) {
		return err
	}
	b := derrors.WrapError(err, category, cmd.Stage+" command failed").
		Fatal().
		WithContext("command", cmd.Line)
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode)
	}
	return b.Build()
}

func (s *DefaultService) lookupRevision(ctx context.Context, root string) string {
	if s.revision == nil {
		return ""
	}
	rev, err := s.revision(root)
	if err != nil {
		observability.WarnContext(ctx, "Could not determine source revision", logfields.Error(err))
		return ""
	}
	if rev == nil {
		return ""
	}
	return rev.Commit
}

func (s *DefaultService) succeed(ctx context.Context, result *Result, project string) (*Result, error) {
	s.finish(result, StatusSuccess)
	s.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	s.recorder.ObserveBuildDuration(result.Duration)

	env := result.Envelope
	entry := s.entry(result, project)
	s.recordHistory(ctx, entry)
	s.publish(ctx, notify.Event{
		Type:         notify.TypeManifestAssembled,
		BuildID:      result.BuildID,
		Project:      project,
		Revision:     env.Revision,
		Runtime:      env.Runtime,
		Artifacts:    len(env.Manifest.Output),
		Routes:       len(env.Manifest.Routes),
		ManifestHash: env.Hash,
		ManifestPath: result.ManifestPath,
		Timestamp:    result.EndTime.UTC(),
	})
	observability.InfoContext(ctx, "Deployment build complete",
		logfields.DurationMS(float64(result.Duration.Milliseconds())),
		logfields.Revision(env.Revision),
		slog.Int("artifacts", entry.Artifacts),
		slog.Int("routes", entry.Routes),
		slog.Bool("unchanged", result.Unchanged))
	return result, nil
}

func (s *DefaultService) fail(ctx context.Context, result *Result, project string, err error) (*Result, error) {
	status := StatusFailed
	outcome := metrics.BuildOutcomeFailed
	if isCancel(ctx, err) {
		status = StatusCancelled
		outcome = metrics.BuildOutcomeCanceled
	}
	s.finish(result, status)
	s.recorder.IncBuildOutcome(outcome)
	s.recorder.ObserveBuildDuration(result.Duration)

	entry := s.entry(result, project)
	entry.Error = err.Error()
	// The caller's context may already be done; persist the record regardless.
	bg := context.WithoutCancel(ctx)
	s.recordHistory(bg, entry)
	s.publish(bg, notify.Event{
		Type:      notify.TypeBuildFailed,
		BuildID:   result.BuildID,
		Project:   project,
		Runtime:   entry.Runtime,
		Error:     err.Error(),
		Timestamp: result.EndTime.UTC(),
	})
	return result, err
}

func (s *DefaultService) finish(result *Result, status Status) {
	result.Status = status
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}

func (s *DefaultService) entry(result *Result, project string) history.Entry {
	e := history.Entry{
		ID:        result.BuildID,
		Project:   project,
		Status:    result.Status.historyStatus(),
		StartedAt: result.StartTime,
		Duration:  result.Duration,
		Stages:    result.Stages,
	}
	if tc := result.Toolchain; tc != nil {
		e.Runtime = tc.Runtime()
		e.PackageManager = string(tc.PackageManager)
	}
	if env := result.Envelope; env != nil {
		e.Revision = env.Revision
		e.ManifestHash = env.Hash
		e.Artifacts = len(env.Manifest.Output)
		e.Routes = len(env.Manifest.Routes)
	}
	return e
}

func (s *DefaultService) recordHistory(ctx context.Context, e history.Entry) {
	if err := s.history.Record(ctx, e); err != nil {
		observability.WarnContext(ctx, "Failed to record build history", logfields.Error(err))
	}
}

func (s *DefaultService) publish(ctx context.Context, e notify.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		observability.WarnContext(ctx, "Failed to publish build event", logfields.Error(err))
	}
}

func commandEnv(cfg *config.Config, tc *toolchain.Toolchain, buildID string) map[string]string {
	env := map[string]string{
		"CI":                  "1",
		"SITEDEPLOY":          "1",
		"SITEDEPLOY_BUILD_ID": buildID,
		"SITEDEPLOY_RUNTIME":  tc.Runtime(),
	}
	for k, v := range cfg.Toolchain.Env {
		env[k] = v
	}
	return env
}

func isCancel(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil
}
