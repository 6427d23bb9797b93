// Package history persists a record of every build in SQLite.
package history

import (
	"context"
	"time"
)

// Status is the outcome of a build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Stage is the timing of one pipeline stage within a build.
type Stage struct {
	Name     string
	Status   Status
	Duration time.Duration
}

// Entry is one recorded build.
type Entry struct {
	ID             string
	Project        string
	Status         Status
	Revision       string
	Runtime        string
	PackageManager string
	Artifacts      int
	Routes         int
	ManifestHash   string
	Error          string
	StartedAt      time.Time
	Duration       time.Duration
	Stages         []Stage
}

// Store records and lists builds.
type Store interface {
	Record(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NoopStore discards everything; used when history is disabled.
type NoopStore struct{}

func (NoopStore) Record(context.Context, Entry) error { return nil }
func (NoopStore) Get(context.Context, string) (*Entry, error) {
	return nil, ErrNotFound
}
func (NoopStore) List(context.Context, int) ([]Entry, error) { return nil, nil }
func (NoopStore) Close() error                               { return nil }
