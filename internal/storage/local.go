package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs under a directory and records them in SQLite.
type LocalStore struct {
	dir     string
	baseURL string
	repo    BlobRepository
	logger  *slog.Logger
}

// NewLocalStore creates dir if needed. baseURL is the public origin of the
// service; blob URLs take the form <baseURL>/media/<name>.
func NewLocalStore(dir, baseURL string, repo BlobRepository, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		repo:    repo,
		logger:  logger,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, name string, data io.Reader, opts Options) (string, error) {
	if opts.CollisionSuffix {
		name = withCollisionSuffix(name)
	}
	if !validObjectName(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.repo.CreatePending(ctx, name, contentType); err != nil {
		return "", fmt.Errorf("failed to record blob: %w", err)
	}

	size, err := s.writeFile(name, data)
	if err != nil {
		if derr := s.repo.Delete(context.WithoutCancel(ctx), name); derr != nil {
			s.logger.Warn("failed to remove blob record", "name", name, "error", derr)
		}
		return "", err
	}

	if err := s.repo.MarkReady(ctx, name, size); err != nil {
		if rerr := os.Remove(s.Path(name)); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			s.logger.Warn("failed to remove unfinalized blob", "name", name, "error", rerr)
		}
		if derr := s.repo.Delete(context.WithoutCancel(ctx), name); derr != nil {
			s.logger.Warn("failed to remove blob record", "name", name, "error", derr)
		}
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}

	s.logger.Debug("stored blob", "name", name, "size", size, "content_type", contentType)
	return s.URL(name), nil
}

// writeFile streams into a temp file and renames it into place.
func (s *LocalStore) writeFile(name string, data io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return 0, fmt.Errorf("failed to move blob into place: %w", err)
	}
	return size, nil
}

// URL returns the public URL for a stored blob name.
func (s *LocalStore) URL(name string) string {
	return s.baseURL + "/media/" + url.PathEscape(name)
}

// Path returns the on-disk location of name.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Stat returns the metadata of a ready blob, or ErrNotFound.
func (s *LocalStore) Stat(ctx context.Context, name string) (*Blob, error) {
	if !validObjectName(name) {
		return nil, ErrNotFound
	}
	b, err := s.repo.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up blob: %w", err)
	}
	if b == nil || b.Status != BlobStatusReady {
		return nil, ErrNotFound
	}
	return b, nil
}
