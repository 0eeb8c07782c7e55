package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/archive-dump/pkg/archive"
)

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, "https://archive.cnx.org", NewClient("").BaseURL())
	assert.Equal(t, "https://archive.example.org", NewClient("archive.example.org").BaseURL())
	assert.Equal(t, "http://localhost:6543", NewClient("http://localhost:6543/").BaseURL())
}

func TestClient_URLs(t *testing.T) {
	c := NewClient("archive.example.org")
	assert.Equal(t, "https://archive.example.org/contents/abc@1.1.json?as_collated=0",
		c.ContentURL("abc@1.1", archive.FormatJSON, true))
	assert.Equal(t, "https://archive.example.org/contents/abc@1.1:def.html",
		c.ContentURL("abc@1.1:def", archive.FormatHTML, false))
	assert.Equal(t, "https://archive.example.org/resources/deadbeef", c.ResourceURL("deadbeef"))
}

func TestClient_GetReturnsNon2xxAsIs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not here"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryBackoff(0, 0))
	resp, err := c.Get(context.Background(), srv.URL+"/contents/x.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not here", string(resp.Body))
	assert.False(t, resp.OK())

	_, err = c.GetRequired(context.Background(), srv.URL+"/contents/x.json")
	require.Error(t, err)
	var fetchErr *archive.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.ErrorIs(t, err, archive.ErrFetchFailed)
}

func TestClient_RetriesGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryBackoff(time.Millisecond, 2*time.Millisecond))
	resp, err := c.Get(context.Background(), srv.URL+"/contents/x.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryOtherStatuses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryBackoff(0, 0))
	resp, err := c.Get(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCheckRetry(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name  string
		ctx   context.Context
		resp  *http.Response
		err   error
		retry bool
	}{
		{"bad gateway", context.Background(), &http.Response{StatusCode: http.StatusBadGateway}, nil, true},
		{"unavailable", context.Background(), &http.Response{StatusCode: http.StatusServiceUnavailable}, nil, true},
		{"gateway timeout", context.Background(), &http.Response{StatusCode: http.StatusGatewayTimeout}, nil, true},
		{"not found", context.Background(), &http.Response{StatusCode: http.StatusNotFound}, nil, false},
		{"ok", context.Background(), &http.Response{StatusCode: http.StatusOK}, nil, false},
		{"unexpected eof", context.Background(), nil, io.ErrUnexpectedEOF, true},
		{"deadline", context.Background(), nil, context.DeadlineExceeded, false},
		{"cancelled context", cancelled, &http.Response{StatusCode: http.StatusBadGateway}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, _ := checkRetry(tt.ctx, tt.resp, tt.err)
			assert.Equal(t, tt.retry, retry)
		})
	}
}

func TestClient_RetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryMaxAttempts(3), WithRetryBackoff(0, 0))
	resp, err := c.Get(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithRetryMaxAttempts(2), WithRetryBackoff(0, 0))
	_, err := c.Get(context.Background(), url+"/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrFetchFailed)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
}

func TestClient_Resource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/resources/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetryBackoff(0, 0))
	body, err := c.Resource(context.Background(), "deadbeef")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "PNGDATA", string(data))

	_, err = c.Resource(context.Background(), "missing")
	assert.ErrorIs(t, err, archive.ErrFetchFailed)
}

func TestClient_ResourceOutlivesClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
		WithRetryBackoff(0, 0))
	body, err := c.Resource(context.Background(), "deadbeef")
	require.NoError(t, err)
	defer body.Close()

	// the item waits for an upload worker longer than the client timeout
	time.Sleep(100 * time.Millisecond)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
}
