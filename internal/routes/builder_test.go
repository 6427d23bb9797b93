package routes

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

const reservedSrc = `^/page-data(?:/(?P<path>.*))?/page-data\.json$`

func TestBuild_NoConfig(t *testing.T) {
	got, err := Build(nil, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Route{Kind: KindRewrite, Src: reservedSrc, Dest: PageDataDestination}, got[0])
}

func TestBuild_RewritesThenRedirects(t *testing.T) {
	cfg := &Config{
		Rewrites:  []Rule{{Source: "/old", Destination: "/new"}},
		Redirects: []Rule{{Source: "/x", Destination: "/y"}},
	}

	got, err := Build(cfg, NewPatternTransformer())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, reservedSrc, got[0].Src)
	assert.Equal(t, Route{Kind: KindRewrite, Src: "^/old/?$", Dest: "/new"}, got[1])
	assert.Equal(t, Route{
		Kind:    KindRedirect,
		Src:     "^/x/?$",
		Status:  307,
		Headers: map[string]string{"Location": "/y"},
	}, got[2])
}

func TestCompose_ReservedAlwaysFirst(t *testing.T) {
	cfgs := []*Config{
		nil,
		{},
		{Redirects: []Rule{{Source: "/page-data/:p*/page-data.json", Destination: "/elsewhere"}}},
		{Rewrites: []Rule{{Source: "/(.*)", Destination: "/index.html"}}},
		{
			Redirects: []Rule{{Source: "/r1", Destination: "/d1"}, {Source: "/r2", Destination: "/d2"}},
			Rewrites:  []Rule{{Source: "/w1", Destination: "/d1"}, {Source: "/w2", Destination: "/d2"}},
		},
	}
	for _, cfg := range cfgs {
		rules := Compose(cfg)
		require.NotEmpty(t, rules)
		assert.Equal(t, ReservedRule(), rules[0])

		seenRedirect := false
		for _, r := range rules[1:] {
			if r.Kind == KindRedirect {
				seenRedirect = true
				continue
			}
			assert.False(t, seenRedirect, "rewrite %s placed after a redirect", r.Source)
		}
	}
}

func TestCompose_PreservesUserOrder(t *testing.T) {
	cfg := &Config{
		Rewrites:  []Rule{{Source: "/b", Destination: "/1"}, {Source: "/a", Destination: "/2"}},
		Redirects: []Rule{{Source: "/z", Destination: "/3"}, {Source: "/y", Destination: "/4"}},
	}
	rules := Compose(cfg)
	sources := make([]string, 0, len(rules))
	for _, r := range rules {
		sources = append(sources, r.Source)
	}
	assert.Equal(t, []string{PageDataSource, "/b", "/a", "/z", "/y"}, sources)
}

func TestBuild_MalformedRuleIsConfigError(t *testing.T) {
	cfg := &Config{Rewrites: []Rule{{Source: "no-slash", Destination: "/x"}}}
	_, err := Build(cfg, nil)
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

type shortTransformer struct{}

func (shortTransformer) Transform([]Rule, *bool) ([]Route, error) { return nil, nil }

type failingTransformer struct{ err error }

func (f failingTransformer) Transform([]Rule, *bool) ([]Route, error) { return nil, f.err }

func TestBuild_TransformerContract(t *testing.T) {
	_, err := Build(nil, shortTransformer{})
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryInternal))

	boom := errors.New("boom")
	_, err = Build(nil, failingTransformer{err: boom})
	require.ErrorIs(t, err, boom)
}

func TestReservedRouteMatchesPageDataRequests(t *testing.T) {
	got, err := Build(nil, nil)
	require.NoError(t, err)
	re := regexp.MustCompile(got[0].Src)

	assert.True(t, re.MatchString("/page-data/index/page-data.json"))
	assert.True(t, re.MatchString("/page-data/blog/post-1/page-data.json"))
	assert.False(t, re.MatchString("/page-data/index/app-data.json"))
	assert.False(t, re.MatchString("/blog/page-data.json"))
}

func TestReservedRouteIgnoresTrailingSlashPolicy(t *testing.T) {
	on := true
	got, err := Build(&Config{TrailingSlash: &on}, nil)
	require.NoError(t, err)
	assert.Equal(t, reservedSrc, got[0].Src)
}
