// Package vcs reads the source revision a build was produced from.
package vcs

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	derrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// Revision identifies the checked-out commit.
type Revision struct {
	Commit string
	// Branch is empty for a detached HEAD.
	Branch string
}

// Short returns the abbreviated commit hash.
func (r *Revision) Short() string {
	if r == nil {
		return ""
	}
	if len(r.Commit) > 12 {
		return r.Commit[:12]
	}
	return r.Commit
}

// Head returns the HEAD revision of the repository containing dir. It returns nil
// without error when dir is not inside a repository or the repository has no commits.
func Head(dir string) (*Revision, error) {
	repository, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "open git repository").
			WithContext("path", dir).
			Build()
	}

	ref, err := repository.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "resolve git HEAD").
			WithContext("path", dir).
			Build()
	}

	rev := &Revision{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		rev.Branch = ref.Name().Short()
	}
	return rev, nil
}
