// Command edge is the CDN origin-request handler: it redirects legacy and
// version-less archive paths and passes everything else to the origin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tendant/archive-dump/pkg/archive/config"
	"github.com/tendant/archive-dump/pkg/archive/resolve"
)

// cfEvent is the origin-request event delivered by the CDN.
type cfEvent struct {
	Records []struct {
		CF struct {
			Request cfRequest `json:"request"`
		} `json:"cf"`
	} `json:"Records"`
}

type cfHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// cfRequest keeps the fields it does not read so a passthrough returns the
// request intact.
type cfRequest struct {
	ClientIP    string                `json:"clientIp,omitempty"`
	Method      string                `json:"method"`
	URI         string                `json:"uri"`
	QueryString string                `json:"querystring"`
	Headers     map[string][]cfHeader `json:"headers,omitempty"`
	Origin      json.RawMessage       `json:"origin,omitempty"`
	Body        json.RawMessage       `json:"body,omitempty"`
}

type cfResponse struct {
	Status            string                `json:"status"`
	StatusDescription string                `json:"statusDescription"`
	Headers           map[string][]cfHeader `json:"headers,omitempty"`
}

var errNoRecords = errors.New("event has no records")

type handler struct {
	resolver *resolve.Resolver
}

func (h *handler) handle(ctx context.Context, event cfEvent) (any, error) {
	if len(event.Records) == 0 {
		return nil, errNoRecords
	}
	req := event.Records[0].CF.Request

	resp, err := h.resolver.Resolve(ctx, resolve.Request{
		URI:         req.URI,
		Method:      req.Method,
		QueryString: req.QueryString,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to resolve", "uri", req.URI, "err", err)
		return nil, err
	}

	switch resp.Outcome {
	case resolve.Redirect:
		return &cfResponse{
			Status:            strconv.Itoa(resp.Status),
			StatusDescription: http.StatusText(resp.Status),
			Headers: map[string][]cfHeader{
				"location": {{Key: "Location", Value: resp.Location}},
			},
		}, nil
	case resolve.NotFound:
		return &cfResponse{
			Status:            strconv.Itoa(http.StatusNotFound),
			StatusDescription: http.StatusText(http.StatusNotFound),
		}, nil
	}

	req.URI = resp.Request.URI
	return &req, nil
}

func main() {
	ctx := context.Background()
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	stores, err := cfg.BuildStores(ctx)
	if err != nil {
		slog.Error("Failed to build storage", "err", err)
		os.Exit(1)
	}
	resolver, err := resolve.New(cfg.Layout(), config.Listers(stores))
	if err != nil {
		slog.Error("Failed to build resolver", "err", err)
		os.Exit(1)
	}

	h := &handler{resolver: resolver}
	lambda.Start(h.handle)
}
