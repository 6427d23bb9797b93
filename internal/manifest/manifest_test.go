package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

func sampleManifest() *OutputManifest {
	return &OutputManifest{
		Output: Output{
			"index.html": &FileRef{FSPath: "/site/public/index.html", Size: 12, Mode: 0o644, ContentType: "text/html; charset=utf-8"},
			"page-data":  &Function{Kind: KindPageData, Handler: "index.handler", Runtime: "nodejs20.x", Source: "template:page-data"},
			"__dynamic": &Function{
				Kind: KindDynamic, Handler: "index.handler", Runtime: "nodejs20.x", Source: "template:dynamic",
				Routes: []FunctionRoute{{Path: "/a", Caching: CachingNoStore}},
			},
		},
		Routes: []routes.Route{{Kind: routes.KindRewrite, Src: "^/x$", Dest: "/y"}},
	}
}

func TestEnvelopeJSONPreservesArtifactTypes(t *testing.T) {
	env := &Envelope{
		ID:        "b-1",
		Project:   "/site",
		Runtime:   "nodejs20.x",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Manifest:  sampleManifest(),
	}
	data, err := env.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "function"`)
	assert.Contains(t, string(data), `"type": "file"`)

	back, err := FromJSON(data)
	require.NoError(t, err)
	require.IsType(t, &FileRef{}, back.Manifest.Output["index.html"])
	require.IsType(t, &Function{}, back.Manifest.Output["page-data"])
	assert.Equal(t, env.Manifest, back.Manifest)
}

func TestOutputUnmarshalRejectsUnknownType(t *testing.T) {
	_, err := FromJSON([]byte(`{"manifest":{"output":{"x":{"type":"mystery"}},"routes":[]}}`))
	require.Error(t, err)
}

func TestHashIsStable(t *testing.T) {
	a, err := sampleManifest().Hash()
	require.NoError(t, err)
	b, err := sampleManifest().Hash()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	m := sampleManifest()
	m.Routes = nil
	c, err := m.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFunctions(t *testing.T) {
	fns := sampleManifest().Functions()
	assert.Len(t, fns, 2)
	assert.Equal(t, KindPageData, fns["page-data"].Kind)
}
