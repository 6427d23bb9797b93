package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried most specific first; godotenv never overrides a variable that is
// already set, so earlier files win.
var envFiles = []string{".env.local", ".env"}

// LoadEnv loads .env.local and .env from dir into the process environment without
// overriding existing variables. It returns the files that were loaded.
func LoadEnv(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
