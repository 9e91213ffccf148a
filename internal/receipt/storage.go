package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Image variants stored for every receipt
const (
	VariantOriginal  = "original"
	VariantWarped    = "warped"
	VariantBinarized = "binarized"
)

// originalFilename is the stored name of the upload as received.
func originalFilename(id, ext string) string {
	return id + "_original" + ext
}

// warpedFilename is the stored name of the perspective-corrected display copy.
func warpedFilename(id string) string {
	return id + "_warped.jpg"
}

// binarizedFilename is the stored name of the black and white copy fed to OCR.
func binarizedFilename(id string) string {
	return id + "_binarized.png"
}

// artifactFilenames lists every stored file for a receipt.
func artifactFilenames(receipt *Receipt) []string {
	return []string{
		originalFilename(receipt.ID, strings.ToLower(filepath.Ext(receipt.Filename))),
		warpedFilename(receipt.ID),
		binarizedFilename(receipt.ID),
	}
}

// contentTypeForExtension maps an upload extension to the content type used
// when serving it back.
func contentTypeForExtension(ext string) string {
	switch ext {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Save saves a file and returns the path/filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by path
	Get(path string) ([]byte, error)

	// Delete removes a file
	Delete(path string) error
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(path string) ([]byte, error) {
	fullPath := filepath.Join(l.basePath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(path string) error {
	fullPath := filepath.Join(l.basePath, path)
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

