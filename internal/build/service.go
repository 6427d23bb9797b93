package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/history"
	"git.home.luguber.info/inful/sitedeploy/internal/manifest"
	"git.home.luguber.info/inful/sitedeploy/internal/toolchain"
)

// Service executes deployment builds.
type Service interface {
	// Run executes the pipeline: toolchain → install → build → registry → assemble → write.
	// It returns a Result even on failure.
	Run(ctx context.Context, req Request) (*Result, error)
}

// Request contains all inputs required to execute a build.
type Request struct {
	// Config is the loaded configuration for this build.
	Config *config.Config

	Options Options
}

// Options modify a single run on top of the configuration.
type Options struct {
	// SkipInstall and SkipBuild are ORed with the configuration's toolchain flags.
	SkipInstall bool
	SkipBuild   bool

	// DryRun assembles the manifest without writing it.
	DryRun bool
}

// Result contains the outcome of a build execution.
type Result struct {
	BuildID string
	Status  Status

	Toolchain *toolchain.Toolchain

	// Envelope is the assembled manifest; nil unless the assemble stage succeeded.
	Envelope *manifest.Envelope

	// ManifestPath is where the manifest was written; empty for dry runs.
	ManifestPath string

	// Unchanged reports that the manifest hash equals the previously written one.
	Unchanged bool

	Stages []history.Stage

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status represents the outcome of a build execution.
type Status string

const (
	// StatusSuccess indicates the build completed successfully.
	StatusSuccess Status = "success"

	// StatusFailed indicates the build encountered an error.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the build was cancelled.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// IsSuccess returns true if the build completed successfully.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

func (s Status) historyStatus() history.Status {
	switch s {
	case StatusSuccess:
		return history.StatusSuccess
	case StatusCancelled:
		return history.StatusCanceled
	default:
		return history.StatusFailed
	}
}
