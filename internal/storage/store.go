// Package storage persists media blobs (uploads, synthesized and extracted
// audio, exports) and returns publicly reachable URLs for them.
//
// Two backends exist: SupabaseStore writes to a Supabase Storage bucket and
// LocalStore keeps files under the data directory with their metadata in
// SQLite, served back by the /media route.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("blob not found")

// Options controls how a blob is stored.
type Options struct {
	ContentType string
	// Public requests an unauthenticated URL.
	Public bool
	// CollisionSuffix appends a short random suffix to the name so repeated
	// names never overwrite each other.
	CollisionSuffix bool
}

// Store persists a blob and returns its URL.
type Store interface {
	Put(ctx context.Context, name string, data io.Reader, opts Options) (string, error)
}

// Blob describes a locally stored object.
type Blob struct {
	Name        string
	ContentType string
	Size        int64
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const (
	BlobStatusPending   = "pending"
	BlobStatusReady     = "ready"
	BlobStatusAbandoned = "abandoned"
)
