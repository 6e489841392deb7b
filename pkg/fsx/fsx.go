// Package fsx stores the binary artifacts of a review session (the uploaded
// source image) behind a small path-addressed interface with local-disk and
// S3 implementations.
package fsx

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/errx"
)

var fsErrors = errx.NewRegistry("FS")

var (
	CodeNotFound    = fsErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "File not found")
	CodeInvalidPath = fsErrors.Register("INVALID_PATH", errx.TypeValidation, 400, "Invalid file path")
	CodeIOFailed    = fsErrors.Register("IO_FAILED", errx.TypeInternal, 500, "File operation failed")
)

func ErrNotFound(p string) *errx.Error {
	return fsErrors.New(CodeNotFound).WithDetail("path", p)
}

func ErrInvalidPath(p string) *errx.Error {
	return fsErrors.New(CodeInvalidPath).WithDetail("path", p)
}

func ErrIOFailed(op, p string, cause error) *errx.Error {
	return fsErrors.NewWithCause(CodeIOFailed, cause).WithDetail("op", op).WithDetail("path", p)
}

// FileInfo represents information about a stored file
type FileInfo struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
}

// FileReader provides read-only operations
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	Stat(ctx context.Context, path string) (FileInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// FileWriter provides write operations
type FileWriter interface {
	WriteFile(ctx context.Context, path string, data []byte, contentType string) error
}

// FileDeleter provides deletion operations. Deleting a missing file is not
// an error.
type FileDeleter interface {
	DeleteFile(ctx context.Context, path string) error
}

// FileSystem combines all file operations
type FileSystem interface {
	FileReader
	FileWriter
	FileDeleter
	Join(elem ...string) string
}

// CleanPath normalizes p to a slash-separated relative path and rejects
// anything that would escape the storage root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	clean := path.Clean("/" + p)[1:]
	if clean == "" || strings.HasPrefix(p, "../") || strings.Contains(p, "/../") || p == ".." {
		return "", ErrInvalidPath(p)
	}
	return clean, nil
}

// ContentTypeOf guesses a MIME type from the file extension.
func ContentTypeOf(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// ExtensionOf is the inverse of ContentTypeOf for the image types sessions
// accept.
func ExtensionOf(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
