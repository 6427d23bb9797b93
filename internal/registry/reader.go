package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// DefaultPath is where the generator writes its registry snapshot, relative to the project root.
const DefaultPath = ".cache/page-registry.json"

// Reader returns the finalized page registry. It must only be called after the
// external build has completed.
type Reader interface {
	Read(ctx context.Context) ([]Page, error)
}

// FileReader reads a JSON registry snapshot from disk.
//
// Accepted shapes are a bare array of pages or an object with a "pages" array.
// A missing file yields an empty registry; the site is then served fully static.
type FileReader struct {
	Path string
}

// NewFileReader returns a FileReader for path.
func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

func (r *FileReader) Read(ctx context.Context) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("Page registry not found, treating site as fully static", logfields.Path(r.Path))
			return []Page{}, nil
		}
		return nil, fmt.Errorf("read page registry: %w", err)
	}
	return Decode(data)
}

// Decode parses a registry snapshot.
func Decode(data []byte) ([]Page, error) {
	var pages []Page
	if err := json.Unmarshal(data, &pages); err == nil {
		return pages, nil
	}
	var wrapped struct {
		Pages []Page `json:"pages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode page registry: %w", err)
	}
	if wrapped.Pages == nil {
		return []Page{}, nil
	}
	return wrapped.Pages, nil
}

// StaticReader serves a fixed registry. Useful when the registry is already in memory.
type StaticReader []Page

func (s StaticReader) Read(context.Context) ([]Page, error) {
	out := make([]Page, len(s))
	copy(out, s)
	return out, nil
}
