package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/archive-dump/pkg/archive"
	memorystorage "github.com/tendant/archive-dump/pkg/archive/storage/memory"
)

var _ archive.BlobStore = (*memorystorage.Backend)(nil)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New()
	ctx := context.Background()
	testKey := "raw/abc@1.json"
	testData := `{"id":"abc"}`

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData))
		assert.NoError(t, err)
	})

	t.Run("GetObjectMeta", func(t *testing.T) {
		meta, err := backend.GetObjectMeta(ctx, testKey)
		require.NoError(t, err)
		assert.Equal(t, testKey, meta.Key)
		assert.Equal(t, int64(len(testData)), meta.Size)
		assert.Equal(t, "application/octet-stream", meta.ContentType)
	})

	t.Run("UploadWithParams", func(t *testing.T) {
		err := backend.UploadWithParams(ctx, strings.NewReader("<html/>"), archive.UploadParams{
			ObjectKey: "raw/abc@1.html",
			MimeType:  "text/html",
		})
		require.NoError(t, err)
		meta, err := backend.GetObjectMeta(ctx, "raw/abc@1.html")
		require.NoError(t, err)
		assert.Equal(t, "text/html", meta.ContentType)
	})

	t.Run("Download", func(t *testing.T) {
		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, string(data))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, testKey, strings.NewReader(testData)))
		keys, err := backend.List(ctx, "raw/abc@1.json")
		require.NoError(t, err)
		assert.Len(t, keys, 1)
		assert.Equal(t, 3, backend.Puts())
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "baked/abc@1.json", strings.NewReader("{}")))
		keys, err := backend.List(ctx, "raw/")
		require.NoError(t, err)
		assert.Equal(t, []string{"raw/abc@1.html", "raw/abc@1.json"}, keys)
		assert.Len(t, backend.Keys(), 3)
	})
}
