package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tendant/archive-dump/pkg/archive"
)

// contentTypeDir holds one sidecar file per object recording the content
// type it was uploaded with.
const contentTypeDir = ".content-types"

// Backend is a filesystem implementation of the archive.BlobStore interface.
// Keys map to paths below BaseDir. Objects uploaded without a content type
// get one detected on read.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory for storing files
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) path(objectKey string) (string, error) {
	clean := path.Clean("/" + objectKey)
	if clean == "/" || clean == "/"+contentTypeDir || strings.HasPrefix(clean, "/"+contentTypeDir+"/") {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(b.baseDir, filepath.FromSlash(clean)), nil
}

func (b *Backend) contentTypePath(filePath string) string {
	rel, _ := filepath.Rel(b.baseDir, filePath)
	return filepath.Join(b.baseDir, contentTypeDir, rel)
}

func (b *Backend) writeContentType(filePath, contentType string) error {
	sidecar := b.contentTypePath(filePath)
	if contentType == "" {
		if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear content type: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(sidecar), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(sidecar, []byte(contentType), 0644); err != nil {
		return fmt.Errorf("failed to write content type: %w", err)
	}
	return nil
}

// GetObjectMeta retrieves metadata for an object in the filesystem
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*archive.ObjectMeta, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, archive.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	var contentType string
	if stored, err := os.ReadFile(b.contentTypePath(filePath)); err == nil {
		contentType = string(stored)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(objectKey))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
		if file, err := os.Open(filePath); err == nil {
			defer file.Close()
			buffer := make([]byte, 512)
			if n, err := file.Read(buffer); err == nil {
				contentType = http.DetectContentType(buffer[:n])
			}
		}
	}

	return &archive.ObjectMeta{
		Key:         objectKey,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// Upload stores content with no recorded content type
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, archive.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams writes to a temporary file and renames it into place so
// readers never see a partial object, then records the content type
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params archive.UploadParams) error {
	filePath, err := b.path(params.ObjectKey)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return b.writeContentType(filePath, params.MimeType)
}

// Download downloads content directly from the filesystem
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	filePath, err := b.path(objectKey)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, archive.ErrObjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// List returns the keys under prefix in lexical order
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if strings.HasPrefix(prefix, contentTypeDir) {
		return nil, nil
	}
	root := b.baseDir
	if dir := path.Dir(prefix); strings.Contains(prefix, "/") && dir != "." {
		root = filepath.Join(b.baseDir, filepath.FromSlash(dir))
	}

	var keys []string
	err := filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return iofs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if p == filepath.Join(b.baseDir, contentTypeDir) {
				return iofs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(b.baseDir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}
