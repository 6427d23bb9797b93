// Package notify announces finished builds to downstream deployers.
package notify

import (
	"context"
	"sync"
	"time"
)

// Event types.
const (
	TypeManifestAssembled = "manifest.assembled"
	TypeBuildFailed       = "build.failed"
)

// Event is the JSON payload published for every build.
type Event struct {
	Type         string    `json:"type"`
	BuildID      string    `json:"build_id"`
	Project      string    `json:"project"`
	Revision     string    `json:"revision,omitempty"`
	Runtime      string    `json:"runtime,omitempty"`
	Artifacts    int       `json:"artifacts"`
	Routes       int       `json:"routes"`
	ManifestHash string    `json:"manifest_hash,omitempty"`
	ManifestPath string    `json:"manifest_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher delivers events. Publish failures never fail a build.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops events; used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
