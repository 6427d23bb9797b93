package assemble

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/registry"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

type countingRecorder struct {
	metrics.NoopRecorder
	mu        sync.Mutex
	results   map[string]metrics.ResultLabel
	artifacts map[string]int
	routes    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: map[string]metrics.ResultLabel{}, artifacts: map[string]int{}}
}

func (c *countingRecorder) IncStageResult(stage string, r metrics.ResultLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[stage] = r
}

func (c *countingRecorder) SetArtifactCount(kind string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.artifacts[kind] = n
}

func (c *countingRecorder) SetRouteCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = n
}

type failingTransformer struct{}

func (failingTransformer) Transform([]routes.Rule, *bool) ([]routes.Route, error) {
	return nil, derrors.ConfigError("bad rule").Fatal().Build()
}

func fixture(t *testing.T) (staticDir, apiDir string) {
	t.Helper()
	root := t.TempDir()
	staticDir = filepath.Join(root, "public")
	apiDir = filepath.Join(root, "src", "api")
	writeFile(t, filepath.Join(staticDir, "index.html"), "<html></html>")
	writeFile(t, filepath.Join(staticDir, "c", "index.html"), "<p>c</p>")
	return staticDir, apiDir
}

func scenarioPages() []registry.Page {
	return []registry.Page{
		{Path: "/a", Mode: registry.ModeSSR},
		{Path: "/b", Mode: registry.ModeDSG},
		{Path: "/c", Mode: registry.ModeStatic},
	}
}

func TestAssemble_WithoutAPIDirectory(t *testing.T) {
	staticDir, apiDir := fixture(t)
	rec := newCountingRecorder()

	m, err := New().WithRecorder(rec).Assemble(t.Context(), Request{
		Pages:     scenarioPages(),
		StaticDir: staticDir,
		APIDir:    apiDir,
		Runtime:   "nodejs20.x",
	})
	require.NoError(t, err)

	assert.Len(t, m.Output, 4)
	assert.IsType(t, &manifest.FileRef{}, m.Output["index.html"])
	assert.IsType(t, &manifest.FileRef{}, m.Output["c/index.html"])
	require.Contains(t, m.Output, DynamicKey)
	require.Contains(t, m.Output, PageDataKey)
	assert.Equal(t, manifest.KindPageData, m.Output[PageDataKey].(*manifest.Function).Kind)

	dyn := m.Output[DynamicKey].(*manifest.Function)
	assert.Equal(t, []manifest.FunctionRoute{
		{Path: "/a", Caching: manifest.CachingNoStore},
		{Path: "/b", Caching: manifest.CachingStaleWhileRevalidate},
	}, dyn.Routes)

	require.Len(t, m.Routes, 1)
	assert.Equal(t, routes.KindRewrite, m.Routes[0].Kind)
	assert.Equal(t, routes.PageDataDestination, m.Routes[0].Dest)

	assert.Equal(t, metrics.ResultSuccess, rec.results["static"])
	assert.Equal(t, metrics.ResultSuccess, rec.results["api"])
	assert.Equal(t, 0, rec.artifacts[string(manifest.KindAPI)])
	assert.Equal(t, 4, rec.artifacts["total"])
	assert.Equal(t, 1, rec.routes)
}

func TestAssemble_UserRoutesFollowReserved(t *testing.T) {
	staticDir, apiDir := fixture(t)
	writeFile(t, filepath.Join(apiDir, "hello.js"), "export default () => {}")

	m, err := New().Assemble(t.Context(), Request{
		StaticDir: staticDir,
		APIDir:    apiDir,
		Runtime:   "nodejs20.x",
		Routing: &routes.Config{
			Rewrites:  []routes.Rule{{Source: "/old", Destination: "/new"}},
			Redirects: []routes.Rule{{Source: "/x", Destination: "/y"}},
		},
	})
	require.NoError(t, err)

	require.Len(t, m.Routes, 3)
	assert.Equal(t, routes.PageDataDestination, m.Routes[0].Dest)
	assert.Equal(t, "/new", m.Routes[1].Dest)
	assert.Equal(t, routes.KindRedirect, m.Routes[2].Kind)
	assert.Equal(t, "/y", m.Routes[2].Headers["Location"])
	assert.Contains(t, m.Output, "hello.js")
}

func TestAssemble_StrayPageDataFileIsShadowed(t *testing.T) {
	staticDir, apiDir := fixture(t)
	writeFile(t, filepath.Join(staticDir, "page-data"), "stray")

	m, err := New().Assemble(t.Context(), Request{StaticDir: staticDir, APIDir: apiDir, Runtime: "nodejs20.x"})
	require.NoError(t, err)

	fn, ok := m.Output[PageDataKey].(*manifest.Function)
	require.True(t, ok, "page-data must resolve to the reserved function")
	assert.Equal(t, manifest.KindPageData, fn.Kind)
}

func TestAssemble_Idempotent(t *testing.T) {
	staticDir, apiDir := fixture(t)
	writeFile(t, filepath.Join(apiDir, "users", "list.ts"), "export default () => {}")
	req := Request{
		Pages:     scenarioPages(),
		StaticDir: staticDir,
		APIDir:    apiDir,
		Runtime:   "nodejs22.x",
		Routing:   &routes.Config{Rewrites: []routes.Rule{{Source: "/blog/:slug", Destination: "/posts/:slug"}}},
	}

	first, err := New().Assemble(t.Context(), req)
	require.NoError(t, err)
	second, err := New().Assemble(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	h1, err := first.Hash()
	require.NoError(t, err)
	h2, err := second.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestAssemble_MissingStaticDir(t *testing.T) {
	root := t.TempDir()
	rec := newCountingRecorder()

	m, err := New().WithRecorder(rec).Assemble(t.Context(), Request{
		Pages:     scenarioPages(),
		StaticDir: filepath.Join(root, "public"),
		APIDir:    filepath.Join(root, "src", "api"),
	})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryFileSystem))
	assert.Equal(t, metrics.ResultFatal, rec.results["static"])
}

func TestAssemble_RoutingErrorReturnsNoManifest(t *testing.T) {
	staticDir, apiDir := fixture(t)
	m, err := New().WithTransformer(failingTransformer{}).Assemble(t.Context(), Request{StaticDir: staticDir, APIDir: apiDir})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

type blockingGlobber struct{}

func (blockingGlobber) Glob(ctx context.Context, _ string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, errors.New("globber was not canceled")
	}
}

func TestAssemble_StaticFailureCancelsDiscovery(t *testing.T) {
	root := t.TempDir()
	apiDir := filepath.Join(root, "api")
	writeFile(t, filepath.Join(apiDir, "a.js"), "x")

	start := time.Now()
	_, err := New().WithGlobber(blockingGlobber{}).Assemble(t.Context(), Request{
		StaticDir: filepath.Join(root, "missing"),
		APIDir:    apiDir,
	})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryFileSystem))
	assert.Less(t, time.Since(start), 4*time.Second)
}
