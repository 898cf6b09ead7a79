// Package playback serves locally stored media blobs with byte-range support
// so browsers can seek in generated videos.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/avatarstudio/avatar-studio/internal/storage"
)

// BlobSource resolves blob names to metadata and on-disk files.
type BlobSource interface {
	Stat(ctx context.Context, name string) (*storage.Blob, error)
	Path(name string) string
}

type Server struct {
	blobs  BlobSource
	logger *slog.Logger
}

func NewServer(blobs BlobSource, logger *slog.Logger) *Server {
	return &Server{blobs: blobs, logger: logger}
}

// ServeBlob writes the named blob. A non-empty download value requests an
// attachment disposition; "1" keeps the blob's own name, anything else is
// used as the suggested file name.
func (s *Server) ServeBlob(w http.ResponseWriter, r *http.Request, name, download string) error {
	blob, err := s.blobs.Stat(r.Context(), name)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return err
	}

	file, err := os.Open(s.blobs.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("blob record without file", "name", name)
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat blob: %w", err)
	}
	size := stat.Size()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType(blob))
	if download != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
			map[string]string{"filename": attachmentName(blob.Name, download)}))
	}

	span, partial, err := ParseRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		setUnsatisfiedHeaders(w.Header(), size)
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if !partial {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			io.Copy(w, file)
		}
		return nil
	}

	span.setHeaders(w.Header(), size)
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}

	if _, err := file.Seek(span.First, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	io.CopyN(w, file, span.Len())
	return nil
}

func contentType(b *storage.Blob) string {
	if b.ContentType != "" {
		return b.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(b.Name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func attachmentName(blobName, download string) string {
	if download == "1" || download == "true" {
		return blobName
	}
	name := storage.SanitizeName(download, 128)
	if name == "upload" {
		return blobName
	}
	return name
}
