package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/tendant/archive-dump/pkg/archive"
)

// Document is the part of a content JSON body the exporter reads.
type Document struct {
	ID        string             `json:"id"`
	Version   string             `json:"version"`
	Title     string             `json:"title,omitempty"`
	MediaType string             `json:"mediaType,omitempty"`
	Tree      *archive.TreeNode  `json:"tree,omitempty"`
	Resources []archive.Resource `json:"resources,omitempty"`
}

// ParseDocument decodes a content JSON body.
func ParseDocument(body []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// ParseResources extracts the resource manifest of a content JSON body.
func ParseResources(body []byte) ([]archive.Resource, error) {
	doc, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}
	return doc.Resources, nil
}

// ContentURL builds /contents/{ident}.{format}. Raw requests ask for the
// uncollated representation.
func (c *Client) ContentURL(ident string, format archive.Format, raw bool) string {
	u := c.baseURL + "/contents/" + url.PathEscape(ident) + "." + string(format)
	if raw {
		u += "?" + uncollatedQuery
	}
	return u
}

// ResourceURL builds /resources/{sha}.
func (c *Client) ResourceURL(sha string) string {
	return c.baseURL + "/resources/" + url.PathEscape(sha)
}

// Metadata fetches the latest JSON for an unversioned id; its version field
// names the current version.
func (c *Client) Metadata(ctx context.Context, id string) (*Document, error) {
	resp, err := c.GetRequired(ctx, c.ContentURL(id, archive.FormatJSON, false))
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(resp.Body)
	if err != nil {
		return nil, &archive.FetchError{URL: resp.URL, Err: err}
	}
	if doc.Version == "" {
		return nil, &archive.FetchError{URL: resp.URL, Err: fmt.Errorf("no version in metadata for %s", id)}
	}
	return doc, nil
}

// EntityRequest names one representation of one entity.
type EntityRequest struct {
	// Ident is an ident-hash or a composite book:page hash
	Ident  string
	Format archive.Format
	Raw    bool
}

// Entity fetches one representation and returns its body and media type.
func (c *Client) Entity(ctx context.Context, req EntityRequest) ([]byte, string, error) {
	resp, err := c.GetRequired(ctx, c.ContentURL(req.Ident, req.Format, req.Raw))
	if err != nil {
		return nil, "", err
	}
	return resp.Body, req.Format.MediaType(), nil
}

// Resource fetches the blob of a resource. The body is read before
// returning so the client timeout does not cover time the item spends
// queued for upload.
func (c *Client) Resource(ctx context.Context, sha string) (io.ReadCloser, error) {
	resp, err := c.GetRequired(ctx, c.ResourceURL(sha))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(resp.Body)), nil
}
