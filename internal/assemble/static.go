package assemble

import (
	"context"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
)

// StaticBuilder snapshots the static output tree. Contents are never read or changed.
type StaticBuilder struct{}

// Build returns one FileRef per regular file beneath root, keyed by relative path.
// Symlinked directories are walked under the link's name; a link back into one of its
// own ancestors is skipped. A missing or unreadable root is fatal: the static tree is
// the build's primary product.
func (StaticBuilder) Build(ctx context.Context, root string) (manifest.Output, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "static output directory is not readable").
			Fatal().
			WithContext("path", root).
			Build()
	}
	if !info.IsDir() {
		return nil, derrors.FileSystemError("static output path is not a directory").WithContext("path", root).Build()
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err == nil {
		start := root
		// WalkDir does not descend into a symlinked root.
		if li, lerr := os.Lstat(root); lerr == nil && li.Mode()&fs.ModeSymlink != 0 {
			start = realRoot
		}
		w := &staticWalk{ctx: ctx, out: make(manifest.Output)}
		err = w.walk(start, "", []string{realRoot})
		if err == nil {
			return w.out, nil
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "walk static output").
		Fatal().
		WithContext("path", root).
		Build()
}

type staticWalk struct {
	ctx context.Context
	out manifest.Output
}

// walk adds the files under dir with keys prefixed by prefix. chain holds the resolved
// directories entered so far through the root and symlinks.
func (w *staticWalk) walk(dir, prefix string, chain []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.Join(prefix, rel)

		// Follow symlinks; skip sockets, devices and dangling links.
		fi, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if fi.IsDir() {
			return w.followDir(path, rel, chain)
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		w.add(outputKey(rel), &manifest.FileRef{
			FSPath:      path,
			Size:        fi.Size(),
			Mode:        uint32(fi.Mode().Perm()),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
		})
		return nil
	})
}

// followDir walks a symlinked directory unless it points back at an ancestor.
func (w *staticWalk) followDir(link, rel string, chain []string) error {
	target, err := filepath.EvalSymlinks(link)
	if err != nil {
		return nil
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(link))
	if err != nil {
		return err
	}
	for _, anc := range append([]string{parent}, chain...) {
		if within(anc, target) {
			slog.Warn("Skipping symlink cycle in static output", logfields.Path(link), slog.String("target", target))
			return nil
		}
	}
	return w.walk(target, rel, append(chain[:len(chain):len(chain)], target))
}

// add keeps the first file for a key. Distinct on-disk spellings of one Unicode name
// (NFD and NFC) collide after normalization.
func (w *staticWalk) add(key string, ref *manifest.FileRef) {
	if existing, ok := w.out[key]; ok {
		slog.Warn("Static files normalize to the same key, keeping first",
			logfields.Key(key),
			slog.String("kept", existing.(*manifest.FileRef).FSPath),
			slog.String("ignored", ref.FSPath))
		return
	}
	w.out[key] = ref
}

// within reports whether path equals dir or lies beneath it.
func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
