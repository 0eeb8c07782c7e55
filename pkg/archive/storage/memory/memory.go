package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/archive-dump/pkg/archive"
)

const defaultContentType = "application/octet-stream"

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the archive.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
	puts    int
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// GetObjectMeta retrieves metadata for an object in memory
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*archive.ObjectMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, archive.ErrObjectNotFound
	}

	return &archive.ObjectMeta{
		Key:         objectKey,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// Upload uploads content directly
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return b.UploadWithParams(ctx, reader, archive.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams uploads content with parameters. Writing an existing key
// replaces it.
func (b *Backend) UploadWithParams(ctx context.Context, reader io.Reader, params archive.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	contentType := params.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = object{data: data, contentType: contentType, updatedAt: time.Now()}
	b.puts++
	return nil
}

// Download downloads content directly
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, archive.ErrObjectNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// List returns the keys under prefix in lexical order, as S3 does
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for key := range b.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys returns every stored key
func (b *Backend) Keys() []string {
	keys, _ := b.List(context.Background(), "")
	return keys
}

// Puts returns the number of successful writes, including overwrites
func (b *Backend) Puts() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.puts
}
