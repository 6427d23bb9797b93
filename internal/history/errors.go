package history

import (
	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

var (
	// ErrNotFound indicates no build with the requested id was recorded.
	ErrNotFound = errors.NewError(errors.CategoryNotFound, "build not found in history").Build()

	// ErrOpenFailed indicates the history database could not be opened.
	ErrOpenFailed = errors.HistoryError("could not open build history database").Build()

	// ErrWriteFailed indicates a build row could not be stored.
	ErrWriteFailed = errors.HistoryError("failed to record build").Build()

	// ErrQueryFailed indicates reading build rows failed.
	ErrQueryFailed = errors.HistoryError("failed to query build history").Build()
)
