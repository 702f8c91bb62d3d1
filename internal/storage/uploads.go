package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/wauterstoon/tickets/pkg/util"
)

// Upload ceilings. Batches beyond these limits are rejected before any file
// touches disk.
const (
	MaxFilesPerBatch = 10
	MaxFileSizeBytes = 10 << 20 // 10 MB
)

var allowedMimeTypes = map[string]struct{}{
	"image/png":       {},
	"image/jpeg":      {},
	"image/webp":      {},
	"application/pdf": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]`)

// StoredFile is the metadata handed to the lifecycle controller after a file
// has been written to disk.
type StoredFile struct {
	StoredFilename   string
	OriginalFilename string
	MimeType         string
	SizeBytes        int64
	RelativePath     string
}

// Store writes uploaded files under a single directory and serves their
// metadata to the rest of the system. It owns the intake ceilings (file
// count, size, mime allow-list).
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore ensures the upload directory exists.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// ValidateBatch checks the intake ceilings without touching disk.
func ValidateBatch(files []*multipart.FileHeader) error {
	if len(files) > MaxFilesPerBatch {
		return apperrors.NewValidationError("too many files", map[string]any{
			"max_files": MaxFilesPerBatch,
			"received":  len(files),
		})
	}
	for _, file := range files {
		if file.Size > MaxFileSizeBytes {
			return apperrors.NewValidationError("file too large", map[string]any{
				"file":      file.Filename,
				"max_bytes": MaxFileSizeBytes,
			})
		}
		mimeType := file.Header.Get("Content-Type")
		if _, ok := allowedMimeTypes[mimeType]; !ok {
			return apperrors.NewValidationError("file type not allowed", map[string]any{
				"file":      file.Filename,
				"mime_type": mimeType,
			})
		}
	}
	return nil
}

// SaveBatch validates and persists the uploaded files, returning their
// stored metadata. An empty batch yields an empty slice, not an error; the
// add-attachments path rejects empties at the controller.
func (s *Store) SaveBatch(files []*multipart.FileHeader) ([]StoredFile, error) {
	if err := ValidateBatch(files); err != nil {
		return nil, err
	}

	stored := make([]StoredFile, 0, len(files))
	for _, file := range files {
		name := storedName(file.Filename)
		if err := s.writeFile(file, name); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		stored = append(stored, StoredFile{
			StoredFilename:   name,
			OriginalFilename: file.Filename,
			MimeType:         file.Header.Get("Content-Type"),
			SizeBytes:        file.Size,
			RelativePath:     "/uploads/" + name,
		})
		s.logger.Debug("stored upload", zap.String("file", name), zap.Int64("size", file.Size))
	}
	return stored, nil
}

func (s *Store) writeFile(file *multipart.FileHeader, name string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	return nil
}

func storedName(original string) string {
	safe := unsafeFilenameChars.ReplaceAllString(filepath.Base(original), "_")
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), suffix, safe)
}
