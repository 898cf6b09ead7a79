package storage

import (
	"context"
	"database/sql"
	"time"
)

// BlobRepository records local blob metadata.
type BlobRepository interface {
	CreatePending(ctx context.Context, name, contentType string) error
	MarkReady(ctx context.Context, name string, size int64) error
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*Blob, error)
}

type SQLiteBlobRepository struct {
	db *sql.DB
}

func NewBlobRepository(db *sql.DB) *SQLiteBlobRepository {
	return &SQLiteBlobRepository{db: db}
}

func (r *SQLiteBlobRepository) CreatePending(ctx context.Context, name, contentType string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blobs (name, content_type, size, status, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?, ?)
	`, name, contentType, BlobStatusPending, now, now)
	return err
}

func (r *SQLiteBlobRepository) MarkReady(ctx context.Context, name string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE blobs SET status = ?, size = ?, updated_at = ? WHERE name = ?
	`, BlobStatusReady, size, time.Now().UTC().Format(time.RFC3339), name)
	return err
}

func (r *SQLiteBlobRepository) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE name = ?`, name)
	return err
}

// Get returns nil, nil when no row exists.
func (r *SQLiteBlobRepository) Get(ctx context.Context, name string) (*Blob, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT name, content_type, size, status, created_at, updated_at
		FROM blobs WHERE name = ?
	`, name)

	var b Blob
	var createdAt, updatedAt string
	err := row.Scan(&b.Name, &b.ContentType, &b.Size, &b.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &b, nil
}
