// Package gitsource keeps the flashcards directory in step with a git remote.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author is the identity used for commits made by sync.
var Author = object.Signature{Name: "kindlenotes", Email: "kindlenotes@localhost"}

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(filepath.Join(localPath, git.GitDirName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("cloning repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{URL: url})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
	case err == nil:
		slog.Info("pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// Commit stages files (absolute or relative to localPath) and commits them.
// It reports false when there was nothing to commit.
func Commit(localPath, message string, files []string) (bool, error) {
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return false, fmt.Errorf("failed to open repo at %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
	}

	for _, file := range files {
		rel := file
		if filepath.IsAbs(file) {
			if rel, err = filepath.Rel(localPath, file); err != nil {
				return false, fmt.Errorf("failed to stage %s: %w", file, err)
			}
		}
		if _, err := worktree.Add(filepath.ToSlash(rel)); err != nil {
			return false, fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}

	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read status of %s: %w", localPath, err)
	}
	staged := false
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return false, nil
	}

	author := Author
	author.When = time.Now()
	if _, err := worktree.Commit(message, &git.CommitOptions{Author: &author}); err != nil {
		return false, fmt.Errorf("failed to commit in %s: %w", localPath, err)
	}
	return true, nil
}

// Push sends local commits to origin.
func Push(ctx context.Context, localPath string) error {
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("failed to open repo at %s: %w", localPath, err)
	}
	err = repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", localPath, err)
	}
	return nil
}
