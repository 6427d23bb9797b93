package assemble

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
)

// DefaultAPIDir is the conventional location of request handlers, relative to the project root.
const DefaultAPIDir = "src/api"

// Globber lists files beneath root as slash-separated relative paths.
type Globber interface {
	Glob(ctx context.Context, root string) ([]string, error)
}

// DoublestarGlobber matches every file under root recursively.
type DoublestarGlobber struct {
	Pattern string
}

// NewGlobber returns a globber matching all files.
func NewGlobber() *DoublestarGlobber {
	return &DoublestarGlobber{Pattern: "**"}
}

func (g *DoublestarGlobber) Glob(ctx context.Context, root string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := g.Pattern
	if pattern == "" {
		pattern = "**"
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, ctx.Err()
}

// APIBuilder wraps each discovered handler file in its own function.
type APIBuilder struct {
	Globber Globber
}

// NewAPIBuilder returns an APIBuilder backed by doublestar.
func NewAPIBuilder() *APIBuilder {
	return &APIBuilder{Globber: NewGlobber()}
}

// Build wraps every file under dir in its own function, keyed by the file's path relative
// to dir (users/list.ts). The served route drops the extension (/api/users/list). A missing
// dir yields an empty set; API routes are optional. Files are not inspected; a broken
// handler fails when invoked.
func (b *APIBuilder) Build(ctx context.Context, dir, runtime string) (manifest.Output, error) {
	out := make(manifest.Output)

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		slog.Debug("No API directory, skipping API functions", logfields.Path(dir))
		return out, nil
	case err != nil:
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "stat API directory").
			Fatal().
			WithContext("path", dir).
			Build()
	case !info.IsDir():
		slog.Warn("API path is not a directory, skipping API functions", logfields.Path(dir))
		return out, nil
	}

	globber := b.Globber
	if globber == nil {
		globber = NewGlobber()
	}
	files, err := globber.Glob(ctx, dir)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "discover API handlers").
			Fatal().
			WithContext("path", dir).
			Build()
	}

	for _, rel := range files {
		rel = filepath.ToSlash(rel)
		src := filepath.Join(dir, filepath.FromSlash(rel))
		key := outputKey(rel)
		if existing, ok := out[key]; ok {
			// Only distinct byte spellings of one Unicode name can collide here.
			slog.Warn("API handlers normalize to the same key, keeping first",
				logfields.Key(key),
				slog.String("kept", existing.(*manifest.Function).Source),
				slog.String("ignored", src))
			continue
		}
		route := strings.TrimSuffix(key, path.Ext(key))
		out[key] = &manifest.Function{
			Kind:    manifest.KindAPI,
			Handler: path.Base(route) + ".default",
			Runtime: runtime,
			Source:  src,
			Routes:  []manifest.FunctionRoute{{Path: "/api/" + route, Caching: manifest.CachingNoStore}},
		}
	}
	return out, nil
}
