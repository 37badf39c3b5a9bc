package workspace

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/pkg/errors"

	"github.com/cs217/hlsweep/log"
)

// Repo is the git repository a workspace lives in.
type Repo struct {
	root string
	repo *git.Repository
}

// Open opens the repository containing dir.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrapf(err, "'%s' is not inside a git repository", dir)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get repo worktree")
	}
	return &Repo{worktree.Filesystem.Root(), repo}, nil
}

// Revision returns the commit hash of HEAD.
func (r *Repo) Revision() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "failed to get repo HEAD")
	}
	return head.Hash().String(), nil
}

// IsDirty returns whether the repository has any uncommited changes.
func (r *Repo) IsDirty() (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return false, errors.Wrap(err, "failed to get repo worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return false, errors.Wrap(err, "failed to get repo status")
	}
	return !status.IsClean(), nil
}

// Modified returns those of files that differ from HEAD. Paths are relative
// to dir, or absolute.
func (r *Repo) Modified(dir string, files []string) ([]string, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get repo worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get repo status")
	}
	modified := []string{}
	for _, file := range files {
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		rel, err := filepath.Rel(r.root, file)
		if err != nil {
			return nil, err
		}
		fileStatus, ok := status[filepath.ToSlash(rel)]
		if !ok {
			continue
		}
		if fileStatus.Worktree != git.Unmodified || fileStatus.Staging != git.Unmodified {
			log.Debug("'%s' is modified.\n", rel)
			modified = append(modified, file)
		}
	}
	return modified, nil
}

// Revision returns the HEAD commit of the repository containing dir, or
// "unknown" when there is none.
func Revision(dir string) string {
	repo, err := Open(dir)
	if err != nil {
		log.Debug("%s.\n", err)
		return "unknown"
	}
	revision, err := repo.Revision()
	if err != nil {
		log.Debug("%s.\n", err)
		return "unknown"
	}
	if dirty, err := repo.IsDirty(); err == nil && dirty {
		revision += " (modified)"
	}
	return revision
}
