package toolchain

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

type packageJSON struct {
	Name           string            `json:"name"`
	PackageManager string            `json:"packageManager"`
	Engines        map[string]string `json:"engines"`
	Scripts        map[string]string `json:"scripts"`
}

// readPackageJSON returns an empty document when the project has no package.json.
func readPackageJSON(root string) (*packageJSON, error) {
	path := filepath.Join(root, "package.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &packageJSON{}, nil
	}
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryToolchain, "failed to read package.json").
			WithContext("path", path).
			Build()
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryToolchain, "malformed package.json").
			Fatal().
			UserAction().
			WithContext("path", path).
			Build()
	}
	return &pkg, nil
}
