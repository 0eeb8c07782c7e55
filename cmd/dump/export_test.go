package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/config"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
	ledgermemory "github.com/tendant/archive-dump/pkg/archive/ledger/memory"
	"github.com/tendant/archive-dump/pkg/archive/objectkey"
	"github.com/tendant/archive-dump/pkg/archive/storage/memory"
)

// contentAPI serves a book "b0" at version 1 with one page "p0"@2 and one
// resource "r1".
func contentAPI(t *testing.T) *httptest.Server {
	t.Helper()
	tree := `{"id":"b0@1","contents":[{"id":"p0@2"}]}`
	routes := map[string]string{
		"/contents/b0.json":                 `{"id":"b0","version":"1"}`,
		"/contents/b0@1.json?as_collated=0": `{"id":"b0","version":"1","tree":` + tree + `}`,
		"/contents/b0@1.html?as_collated=0": `<html>raw book</html>`,
		"/contents/b0@1.json":               `{"id":"b0","version":"1","tree":` + tree + `,"resources":[{"id":"r1","media_type":"image/png"}]}`,
		"/contents/b0@1.html":               `<html>baked book</html>`,
		"/contents/p0@2.json?as_collated=0": `{"id":"p0","version":"2"}`,
		"/contents/p0@2.html?as_collated=0": `<html>raw page</html>`,
		"/contents/b0@1:p0.json":            `{"id":"p0","resources":[{"id":"r1","media_type":"image/png"}]}`,
		"/contents/b0@1:p0.html":            `<html>baked page</html>`,
		"/resources/r1":                     "PNG",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := routes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExporter(t *testing.T, host string) (*exporter, *memory.Backend, ledger.Repository) {
	t.Helper()
	cfg, err := config.Load(config.WithHost(host), config.WithConcurrency(2))
	require.NoError(t, err)

	store := memory.New()
	runs := ledgermemory.New()
	exp, err := newExporter(cfg, map[string]archive.BlobStore{config.DefaultBucket: store}, runs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return exp, store, runs
}

func TestExportBook(t *testing.T) {
	srv := contentAPI(t)
	exp, store, runs := newTestExporter(t, srv.URL)
	ctx := context.Background()

	run, err := exp.exportBook(ctx, "b0")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"baked/b0@1.html",
		"baked/b0@1.json",
		"baked/b0@1:p0.html",
		"baked/b0@1:p0.json",
		"raw/b0@1.html",
		"raw/b0@1.json",
		"raw/p0@2.html",
		"raw/p0@2.json",
		"resources/r1",
		"resources/r1-media-type",
	}, store.Keys())

	meta, err := store.GetObjectMeta(ctx, "resources/r1")
	require.NoError(t, err)
	assert.Equal(t, "image/png", meta.ContentType)

	assert.Equal(t, ledger.StatusSucceeded, run.Status)
	assert.Equal(t, "1", run.Version)
	assert.Equal(t, ledger.Counts{Raw: 4, Baked: 4, Resource: 2}, run.Counts)

	stored, err := runs.ListByBook(ctx, "b0")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, ledger.StatusSucceeded, stored[0].Status)
}

func TestExportPage(t *testing.T) {
	srv := contentAPI(t)
	exp, store, _ := newTestExporter(t, srv.URL)

	_, err := exp.exportPage(context.Background(), "p0@2")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/p0@2.html", "raw/p0@2.json"}, store.Keys())
}

func TestExportBook_FailureIsRecorded(t *testing.T) {
	srv := contentAPI(t)
	exp, _, runs := newTestExporter(t, srv.URL)
	ctx := context.Background()

	run, err := exp.exportBook(ctx, "missing@1")
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrFetchFailed)
	assert.Equal(t, ledger.StatusFailed, run.Status)

	stored, err := runs.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestExportOptions(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantType   string
		wantBucket string
		wantRegion string
	}{
		{name: "no args keeps environment", wantType: config.StorageMemory, wantBucket: config.DefaultBucket, wantRegion: "us-east-1"},
		{name: "bucket", args: []string{"books"}, wantType: config.StorageS3, wantBucket: "books", wantRegion: "us-west-2"},
		{name: "bucket and region", args: []string{"books", "eu-west-1"}, wantType: config.StorageS3, wantBucket: "books", wantRegion: "eu-west-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_REGION", "")
			t.Setenv("STORAGE_URL", "")
			cmd := &cobra.Command{}
			addExportFlags(cmd)
			cfg, err := config.Load(exportOptions(cmd, tt.args)...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, cfg.Storage.Type)
			assert.Equal(t, tt.wantBucket, cfg.Layout().Bucket(objectkey.ClassRaw))
			assert.Equal(t, tt.wantRegion, cfg.Storage.Region)
		})
	}
}

func TestPrintRuns(t *testing.T) {
	run := ledger.NewRun("b0", "1", "archive.cnx.org")
	run.Finish(ledger.Counts{Raw: 4, Baked: 4, Resource: 2}, nil)

	var buf bytes.Buffer
	require.NoError(t, printRuns(&buf, []*ledger.Run{run}, false))
	assert.Contains(t, buf.String(), "b0@1")
	assert.Contains(t, buf.String(), "raw=4 baked=4 resources=2")

	buf.Reset()
	require.NoError(t, printRuns(&buf, nil, true))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))

	buf.Reset()
	require.NoError(t, printRuns(&buf, nil, false))
	assert.Contains(t, buf.String(), "No runs recorded")
}
