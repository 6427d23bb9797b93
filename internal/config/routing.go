package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/routes"
)

// LoadRouting reads the optional JSON routing file. A missing file yields an empty config.
// Rule shape is validated later by the route transform engine.
func LoadRouting(path string) (*routes.Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No routing file, using reserved routes only", logfields.Path(path))
		return &routes.Config{}, nil
	}
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to read routing file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &routes.Config{}, nil
	}

	var cfg routes.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "malformed routing file").
			Fatal().
			UserAction().
			WithContext("path", path).
			Build()
	}
	return &cfg, nil
}
