package vcs

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned by Revision outside a git repository.
var ErrNotRepository = errors.New("not a git repository")

// GitOpener opens git repositories using go-git.
type GitOpener struct{}

// NewGitOpener creates a new GitOpener.
func NewGitOpener() *GitOpener {
	return &GitOpener{}
}

// PlainOpen opens an existing git repository.
func (o *GitOpener) PlainOpen(path string) (Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, err
	}
	return newGitRepository(repo), nil
}

// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
func (o *GitOpener) PlainOpenWithDetect(path string) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, err
	}
	return newGitRepository(repo), nil
}

// gitRepository wraps go-git Repository.
type gitRepository struct {
	repo *git.Repository
	root string
}

func newGitRepository(repo *git.Repository) *gitRepository {
	r := &gitRepository{repo: repo}
	if wt, err := repo.Worktree(); err == nil {
		r.root = wt.Filesystem.Root()
	}
	return r
}

func (r *gitRepository) Head() (plumbing.Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

func (r *gitRepository) IsClean(paths ...string) (bool, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	if len(paths) == 0 {
		return status.IsClean(), nil
	}
	for _, p := range paths {
		p = filepath.ToSlash(p)
		for file, st := range status {
			if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
				continue
			}
			if file == p || strings.HasPrefix(file, strings.TrimSuffix(p, "/")+"/") {
				return false, nil
			}
		}
	}
	return true, nil
}

func (r *gitRepository) RepoPath() string {
	return r.root
}

// Revision describes the repository state an analysis ran against.
type Revision struct {
	Head  string `json:"head"`
	Clean bool   `json:"clean"`
}

// String renders the revision for cache keys, marking dirty worktrees.
func (r Revision) String() string {
	if r.Clean {
		return r.Head
	}
	return r.Head + "+dirty"
}

// CurrentRevision reads HEAD and worktree cleanliness for the repository
// containing path, restricted to the given repository-relative paths.
func CurrentRevision(opener Opener, path string, paths ...string) (Revision, error) {
	repo, err := opener.PlainOpenWithDetect(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, ErrNotRepository
		}
		return Revision{}, err
	}
	head, err := repo.Head()
	if err != nil {
		return Revision{}, err
	}
	clean, err := repo.IsClean(paths...)
	if err != nil {
		return Revision{}, err
	}
	return Revision{Head: head.String(), Clean: clean}, nil
}

// Default opener singleton
var defaultOpener Opener = NewGitOpener()

// DefaultOpener returns the default git opener.
func DefaultOpener() Opener {
	return defaultOpener
}

// SetDefaultOpener sets the default git opener (useful for testing).
func SetDefaultOpener(opener Opener) {
	defaultOpener = opener
}
