package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/archive-dump/pkg/archive"
)

func TestParseDocument(t *testing.T) {
	body := []byte(`{
		"id": "abc",
		"version": "1.1",
		"tree": {"id": "abc@1.1", "contents": [{"id": "def@2"}]},
		"resources": [
			{"id": "deadbeef", "media_type": "image/png", "filename": "a.png"},
			{"id": "cafef00d", "media_type": "image/jpeg"}
		]
	}`)
	doc, err := ParseDocument(body)
	require.NoError(t, err)
	assert.Equal(t, "1.1", doc.Version)
	require.NotNil(t, doc.Tree)
	assert.Len(t, doc.Tree.Contents, 1)

	resources, err := ParseResources(body)
	require.NoError(t, err)
	assert.Equal(t, []archive.Resource{
		{ID: "deadbeef", MediaType: "image/png", Filename: "a.png"},
		{ID: "cafef00d", MediaType: "image/jpeg"},
	}, resources)

	_, err = ParseDocument([]byte("<html>"))
	assert.Error(t, err)
}

func TestClient_MetadataAndEntity(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/contents/abc.json":
			_, _ = w.Write([]byte(`{"id":"abc","version":"7"}`))
		case "/contents/nover.json":
			_, _ = w.Write([]byte(`{"id":"nover"}`))
		case "/contents/abc@7.html":
			rawQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`<html></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryBackoff(0, 0))
	ctx := context.Background()

	doc, err := c.Metadata(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "7", doc.Version)

	_, err = c.Metadata(ctx, "nover")
	assert.ErrorIs(t, err, archive.ErrFetchFailed)

	body, mediaType, err := c.Entity(ctx, EntityRequest{Ident: "abc@7", Format: archive.FormatHTML, Raw: true})
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
	assert.Equal(t, "text/html", mediaType)
	assert.Equal(t, "as_collated=0", rawQuery)

	_, _, err = c.Entity(ctx, EntityRequest{Ident: "zzz@1", Format: archive.FormatJSON})
	var fetchErr *archive.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
}
