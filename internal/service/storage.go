package service

import (
	"context"
	"io"

	"github.com/noah-isme/campus-core-api/internal/models"
)

// FileStorage persists raw uploaded bytes and reports back the stored file's
// metadata. The grading engine never keeps bytes, only this metadata.
type FileStorage interface {
	Store(ctx context.Context, filename string, size int64, mimeType string, reader io.Reader) (models.FileMetadata, error)
}
