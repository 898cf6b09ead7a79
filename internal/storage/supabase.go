package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/supabase-community/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStore uploads blobs into a Supabase Storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	bucket string
	logger *slog.Logger
}

func NewSupabaseStore(projectURL, serviceKey, bucket string, logger *slog.Logger) (*SupabaseStore, error) {
	client, err := supabase.NewClient(projectURL, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *SupabaseStore) Put(ctx context.Context, name string, data io.Reader, opts Options) (string, error) {
	if opts.CollisionSuffix {
		name = withCollisionSuffix(name)
	}
	if !validObjectName(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := false

	// storage-go takes no context. Callers wrap Put in generation.Bounded,
	// which returns at the stage deadline and leaves this call to finish on
	// its own.
	_, err := s.client.Storage.UploadFile(s.bucket, name, data, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", name, s.bucket, err)
	}

	if opts.Public {
		return s.client.Storage.GetPublicUrl(s.bucket, name).SignedURL, nil
	}

	signed, err := s.client.Storage.CreateSignedUrl(s.bucket, name, signedURLTTLSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to sign url for %s: %w", name, err)
	}
	return signed.SignedURL, nil
}

const signedURLTTLSeconds = 3600
