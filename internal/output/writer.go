// Package output persists an assembled manifest and materializes function sources
// beside it for the deploy step.
package output

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/functions"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
)

const (
	// ManifestFile is the envelope file name inside the output directory.
	ManifestFile = "manifest.json"
	// FunctionsDir holds one subdirectory per function key.
	FunctionsDir = "functions"
)

// Result lists what Write produced.
type Result struct {
	ManifestPath string
	// Functions maps function keys to their materialized entry file.
	Functions map[string]string
}

// Writer writes into Dir. With Clean set, previously materialized functions are
// removed first; other files in Dir (such as the history database) are left alone.
type Writer struct {
	Dir   string
	Clean bool
}

// Write materializes every function and then atomically replaces manifest.json.
func (w *Writer) Write(ctx context.Context, env *manifest.Envelope) (*Result, error) {
	if env == nil || env.Manifest == nil {
		return nil, derrors.InternalError("nothing to write: manifest is nil").Build()
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, fsError(err, "create output directory", w.Dir)
	}
	fnRoot := filepath.Join(w.Dir, FunctionsDir)
	if w.Clean {
		if err := os.RemoveAll(fnRoot); err != nil {
			return nil, fsError(err, "clean functions directory", fnRoot)
		}
	}

	fns := env.Manifest.Functions()
	keys := make([]string, 0, len(fns))
	for k := range fns {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &Result{Functions: make(map[string]string, len(fns))}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := materialize(fnRoot, key, fns[key])
		if err != nil {
			return nil, err
		}
		res.Functions[key] = entry
	}

	data, err := env.ToJSON()
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryInternal, "encode manifest").Build()
	}
	res.ManifestPath = filepath.Join(w.Dir, ManifestFile)
	if err := writeAtomic(res.ManifestPath, data); err != nil {
		return nil, fsError(err, "write manifest", res.ManifestPath)
	}
	slog.Info("Wrote deployment manifest",
		logfields.Path(res.ManifestPath),
		logfields.Count(len(env.Manifest.Output)),
		slog.Int("functions", len(fns)))
	return res, nil
}

// materialize writes a function's handler source into fnRoot/<key>/.
func materialize(fnRoot, key string, fn *manifest.Function) (string, error) {
	dir := filepath.Join(fnRoot, filepath.FromSlash(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fsError(err, "create function directory", dir)
	}

	if name, ok := functions.TemplateName(fn.Source); ok {
		body, err := functions.Template(name)
		if err != nil {
			return "", derrors.WrapError(err, derrors.CategoryInternal, "load function template").
				WithContext("key", key).
				Build()
		}
		entry := filepath.Join(dir, "index.js")
		if err := os.WriteFile(entry, body, 0o644); err != nil {
			return "", fsError(err, "write function template", entry)
		}
		return entry, nil
	}

	entry := filepath.Join(dir, path.Base(filepath.ToSlash(fn.Source)))
	if err := copyFile(fn.Source, entry); err != nil {
		return "", fsError(err, "copy function source", fn.Source)
	}
	return entry, nil
}

// ReadEnvelope loads a previously written manifest. It returns nil without error
// when none exists.
func ReadEnvelope(dir string) (*manifest.Envelope, error) {
	p := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fsError(err, "read manifest", p)
	}
	env, err := manifest.FromJSON(data)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryValidation, "malformed manifest").
			WithContext("path", p).
			Build()
	}
	return env, nil
}

func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fsError(err error, msg, p string) error {
	return derrors.WrapError(err, derrors.CategoryFileSystem, msg).Fatal().WithContext("path", p).Build()
}
