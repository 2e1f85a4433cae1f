// Package storage persists uploaded files and hands back the public URLs
// stored alongside messages and profiles.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"messenger-service/internal/apperr"
)

// allowedImageTypes is the mime allowlist for avatars and image
// attachments.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/webp": ".webp",
	"image/tiff": ".tiff",
}

// IsAllowedImageType reports whether the mime type may be stored.
func IsAllowedImageType(mimeType string) bool {
	_, ok := allowedImageTypes[strings.ToLower(mimeType)]
	return ok
}

// FileStore saves raw file bytes and returns a URL clients can fetch.
type FileStore interface {
	Save(subdir string, originalName string, mimeType string, data []byte) (string, error)
	Remove(fileURL string) error
}

// LocalStore writes files under a base directory served as static content.
type LocalStore struct {
	baseDir string
	baseURL string
}

// NewLocalStore constructs a LocalStore rooted at baseDir and serving from
// baseURL.
func NewLocalStore(baseDir string, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save stores the bytes under a random name, keeping the extension implied
// by the mime type.
func (s *LocalStore) Save(subdir string, originalName string, mimeType string, data []byte) (string, error) {
	ext, ok := allowedImageTypes[strings.ToLower(mimeType)]
	if !ok {
		// fall back to the original extension for non-image attachments
		ext = strings.ToLower(filepath.Ext(originalName))
		if ext == "" {
			return "", apperr.Validation("unsupported file type")
		}
	}

	dir := filepath.Join(s.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create subdir: %w", err)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.baseURL, subdir, name), nil
}

// Remove deletes a previously saved file; unknown URLs are ignored.
func (s *LocalStore) Remove(fileURL string) error {
	rel, ok := strings.CutPrefix(fileURL, s.baseURL+"/")
	if !ok {
		return nil
	}
	rel = filepath.Clean(rel)
	if strings.HasPrefix(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.baseDir, rel))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
