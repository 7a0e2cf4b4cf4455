// Package vcs reads the repository state that analysis results depend on.
package vcs

import "github.com/go-git/go-git/v5/plumbing"

// Repository is the slice of a git repository used to key cached results.
type Repository interface {
	// Head resolves HEAD to a commit hash.
	Head() (plumbing.Hash, error)
	// IsClean reports whether the given repository-relative paths have no
	// uncommitted changes. No paths means the whole worktree.
	IsClean(paths ...string) (bool, error)
	RepoPath() string
}

// Opener opens repositories; tests substitute it to avoid touching git.
type Opener interface {
	PlainOpen(path string) (Repository, error)
	// PlainOpenWithDetect searches parent directories for .git.
	PlainOpenWithDetect(path string) (Repository, error)
}
