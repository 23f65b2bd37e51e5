// Package archive keeps a git-versioned mirror of every accepted
// submission, one commit each, so the full submission history survives
// database restores and can be inspected with ordinary git tooling.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

type Service struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

// Record writes the submission payload under
// submitted/<user>/<radar_key>/<filename> and commits it. The repository is
// initialized on first use.
func (s *Service) Record(username, radarKey, filename string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.open()
	if err != nil {
		return err
	}

	relpath := filepath.Join("submitted", username, radarKey, filename)
	abspath := filepath.Join(s.dir, relpath)
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		return fmt.Errorf("create submission dir: %w", err)
	}
	if err := os.WriteFile(abspath, payload, 0o644); err != nil {
		return fmt.Errorf("write submission: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(relpath)); err != nil {
		return fmt.Errorf("git add submission: %w", err)
	}
	message := fmt.Sprintf("Record submission for %s by %s", radarKey, username)
	if _, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  username,
			Email: username + "@local.firnline.dev",
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

func (s *Service) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open archive repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init archive repo: %w", err)
	}
	return repo, nil
}
