// Package gitinfo reads commit metadata from the repository containing the
// content tree. Pages without an explicit date in front matter get the
// committer time of the last commit that touched them.
package gitinfo

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"git.home.luguber.info/inful/wikigen/internal/logfields"
)

// ErrNoRepository indicates the content directory is not inside a git worktree.
var ErrNoRepository = errors.New("no git repository found")

// LastModified returns the committer time of the most recent non-merge commit
// touching each path. Paths are relative to contentDir, slash-separated.
// Paths with no commit history are absent from the result.
func LastModified(contentDir string, paths []string) (map[string]time.Time, error) {
	repo, err := git.PlainOpenWithOptions(contentDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			slog.Debug("Repository has no commits yet", logfields.Path(contentDir))
			return map[string]time.Time{}, nil
		}
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}

	prefix, err := repoRelativePrefix(wt.Filesystem.Root(), contentDir)
	if err != nil {
		return nil, err
	}

	// pending maps repo-relative path back to the caller's path.
	pending := make(map[string]string, len(paths))
	for _, p := range paths {
		repoPath := p
		if prefix != "" {
			repoPath = prefix + "/" + p
		}
		pending[repoPath] = p
	}

	dates := make(map[string]time.Time, len(paths))

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("read commit log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		if len(pending) == 0 {
			return storer.ErrStop
		}
		// Merge commits are skipped: the branch commits that actually
		// changed the files are visited anyway.
		if c.NumParents() > 1 {
			return nil
		}
		stats, err := c.Stats()
		if err != nil {
			slog.Debug("Skipping commit with unreadable stats", slog.String("commit", c.Hash.String()[:8]), logfields.Error(err))
			return nil
		}
		for _, st := range stats {
			if orig, ok := pending[st.Name]; ok {
				dates[orig] = c.Committer.When
				delete(pending, st.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk commit log: %w", err)
	}

	slog.Debug("Resolved commit dates", logfields.Path(contentDir), logfields.Pages(len(dates)))
	return dates, nil
}

// repoRelativePrefix converts the content directory location into a
// slash-separated prefix under the worktree root ("" when they coincide).
func repoRelativePrefix(worktreeRoot, contentDir string) (string, error) {
	absRoot, err := filepath.Abs(worktreeRoot)
	if err != nil {
		return "", fmt.Errorf("resolve worktree root: %w", err)
	}
	absContent, err := filepath.Abs(contentDir)
	if err != nil {
		return "", fmt.Errorf("resolve content dir: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absContent)
	if err != nil {
		return "", fmt.Errorf("content dir outside worktree: %w", err)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}
