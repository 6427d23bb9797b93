package assemble

import (
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// outputKey turns a path relative to some root into a manifest key: slash separated and
// NFC normalized, since macOS file systems hand back decomposed names.
func outputKey(rel string) string {
	return norm.NFC.String(filepath.ToSlash(rel))
}
