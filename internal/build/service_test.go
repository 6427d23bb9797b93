package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/assemble"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/history"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/notify"
	"git.home.luguber.info/inful/sitedeploy/internal/output"
	"git.home.luguber.info/inful/sitedeploy/internal/process"
	"git.home.luguber.info/inful/sitedeploy/internal/registry"
	"git.home.luguber.info/inful/sitedeploy/internal/vcs"
)

type fixture struct {
	cfg       *config.Config
	exec      *process.Recorder
	history   *history.SQLiteStore
	publisher *notify.MemoryPublisher
	svc       *DefaultService
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	for name, body := range files {
		write(t, filepath.Join(root, name), body)
	}
	write(t, filepath.Join(root, "public", "index.html"), "<html></html>")

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Project.Name = "shop"

	store, err := history.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		cfg:       cfg,
		exec:      &process.Recorder{},
		history:   store,
		publisher: &notify.MemoryPublisher{},
	}
	n := 0
	f.svc = NewService(f.exec).
		WithHistory(store).
		WithPublisher(f.publisher).
		WithIDGenerator(func() string { n++; return fmt.Sprintf("build-%d", n) }).
		WithRevisionFunc(func(string) (*vcs.Revision, error) {
			return &vcs.Revision{Commit: "0123456789abcdef", Branch: "main"}, nil
		}).
		WithReaderFactory(func(string) registry.Reader {
			return registry.StaticReader{
				{Path: "/a", Mode: registry.ModeSSR},
				{Path: "/b", Mode: registry.ModeDSG},
			}
		})
	return f
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusSuccess.IsSuccess())
	assert.False(t, StatusFailed.IsSuccess())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, Status("running").IsTerminal())
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t, map[string]string{
		"package.json":      `{"scripts": {"build": "gatsby build"}, "engines": {"node": "^20"}}`,
		"package-lock.json": `{"lockfileVersion": 3}`,
		"src/api/hello.js":  "export default () => {}",
	})

	res, err := f.svc.Run(t.Context(), Request{Config: f.cfg})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "build-1", res.BuildID)
	assert.Equal(t, []string{"npm ci", "npm run build"}, f.exec.Lines())
	assert.Equal(t, f.cfg.Project.Root, f.exec.Commands[0].Dir)
	assert.Equal(t, "build-1", f.exec.Commands[0].Env["SITEDEPLOY_BUILD_ID"])
	assert.Equal(t, "nodejs20.x", f.exec.Commands[1].Env["SITEDEPLOY_RUNTIME"])

	env := res.Envelope
	require.NotNil(t, env)
	assert.Equal(t, "0123456789abcdef", env.Revision)
	assert.Equal(t, "nodejs20.x", env.Runtime)
	assert.Contains(t, env.Manifest.Output, "index.html")
	assert.Contains(t, env.Manifest.Output, "hello.js")
	assert.Contains(t, env.Manifest.Output, assemble.DynamicKey)
	assert.Equal(t, manifest.KindPageData, env.Manifest.Output[assemble.PageDataKey].(*manifest.Function).Kind)

	written, err := output.ReadEnvelope(filepath.Join(f.cfg.Project.Root, ".sitedeploy"))
	require.NoError(t, err)
	require.NotNil(t, written)
	assert.Equal(t, env.Hash, written.Hash)
	assert.Equal(t, filepath.Join(f.cfg.Project.Root, ".sitedeploy", output.ManifestFile), res.ManifestPath)

	var stages []string
	for _, st := range res.Stages {
		stages = append(stages, st.Name)
	}
	assert.Equal(t, []string{StageToolchain, StageInstall, StageBuild, StageRegistry, StageRouting, StageAssemble, StageWrite}, stages)

	entry, err := f.history.Get(t.Context(), "build-1")
	require.NoError(t, err)
	assert.Equal(t, history.StatusSuccess, entry.Status)
	assert.Equal(t, "npm", entry.PackageManager)
	assert.Equal(t, env.Hash, entry.ManifestHash)
	assert.Len(t, entry.Stages, 7)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TypeManifestAssembled, events[0].Type)
	assert.Equal(t, len(env.Manifest.Output), events[0].Artifacts)
}

func TestRun_BuildCommandFallback(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Run(t.Context(), Request{Config: f.cfg})
	require.NoError(t, err)
	assert.Equal(t, []string{"npm install", "npx gatsby build"}, f.exec.Lines())
}

func TestRun_ConfiguredCommands(t *testing.T) {
	f := newFixture(t, map[string]string{"package.json": `{"scripts": {"sitedeploy-build": "x", "build": "y"}}`})
	f.cfg.Toolchain.InstallCommand = "make deps"
	f.cfg.Toolchain.Env = map[string]string{"NODE_OPTIONS": "--max-old-space-size=4096"}

	_, err := f.svc.Run(t.Context(), Request{Config: f.cfg})
	require.NoError(t, err)
	assert.Equal(t, []string{"make deps", "npm run sitedeploy-build"}, f.exec.Lines())
	assert.Equal(t, "--max-old-space-size=4096", f.exec.Commands[1].Env["NODE_OPTIONS"])
}

func TestRun_SkipOptions(t *testing.T) {
	f := newFixture(t, nil)
	f.cfg.Toolchain.SkipInstall = true

	res, err := f.svc.Run(t.Context(), Request{Config: f.cfg, Options: Options{SkipBuild: true}})
	require.NoError(t, err)
	assert.Empty(t, f.exec.Lines())
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestRun_InstallFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.Fail = map[string]error{"npm install": &process.ExitError{ExitCode: 1, Output: "ERESOLVE", Err: errors.New("exit status 1")}}

	res, err := f.svc.Run(t.Context(), Request{Config: f.cfg})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryInstall))
	assert.True(t, derrors.HasSeverity(err, derrors.SeverityFatal))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Envelope)
	assert.Equal(t, []string{"npm install"}, f.exec.Lines())

	env, rerr := output.ReadEnvelope(filepath.Join(f.cfg.Project.Root, ".sitedeploy"))
	require.NoError(t, rerr)
	assert.Nil(t, env, "no manifest is written on failure")

	entry, herr := f.history.Get(t.Context(), res.BuildID)
	require.NoError(t, herr)
	assert.Equal(t, history.StatusFailed, entry.Status)
	assert.Contains(t, entry.Error, "install command failed")

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, notify.TypeBuildFailed, events[0].Type)
}

func TestRun_BuildFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.exec.Fail = map[string]error{"npx gatsby build": errors.New("exit status 2")}

	_, err := f.svc.Run(t.Context(), Request{Config: f.cfg})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryBuild))
}

func TestRun_MissingStaticDir(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.RemoveAll(filepath.Join(f.cfg.Project.Root, "public")))

	res, err := f.svc.Run(t.Context(), Request{Config: f.cfg, Options: Options{SkipInstall: true, SkipBuild: true}})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryFileSystem))
	assert.Nil(t, res.Envelope)
}

func TestRun_UnchangedAndDryRun(t *testing.T) {
	f := newFixture(t, nil)
	opts := Options{SkipInstall: true, SkipBuild: true}

	first, err := f.svc.Run(t.Context(), Request{Config: f.cfg, Options: opts})
	require.NoError(t, err)
	assert.False(t, first.Unchanged)

	opts.DryRun = true
	second, err := f.svc.Run(t.Context(), Request{Config: f.cfg, Options: opts})
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Empty(t, second.ManifestPath)
	assert.Equal(t, first.Envelope.Hash, second.Envelope.Hash)

	written, err := output.ReadEnvelope(filepath.Join(f.cfg.Project.Root, ".sitedeploy"))
	require.NoError(t, err)
	assert.Equal(t, first.BuildID, written.ID, "dry run leaves the previous manifest in place")
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := f.svc.Run(ctx, Request{Config: f.cfg})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCancelled, res.Status)

	entry, herr := f.history.Get(t.Context(), res.BuildID)
	require.NoError(t, herr)
	assert.Equal(t, history.StatusCanceled, entry.Status)
}

func TestRun_NilConfig(t *testing.T) {
	res, err := NewService(&process.Recorder{}).Run(t.Context(), Request{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
	assert.Equal(t, StatusFailed, res.Status)
}
