package upload

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/objectkey"
)

// DefaultConcurrency is the number of uploads in flight at once.
const DefaultConcurrency = 8

// Stats counts objects written per class. Resource counts are distinct keys.
type Stats struct {
	Raw      int
	Baked    int
	Resource int
}

// Total returns the number of objects counted across classes.
func (s Stats) Total() int {
	return s.Raw + s.Baked + s.Resource
}

// Dispatcher writes scraped items to the buckets of a layout.
type Dispatcher struct {
	generator   *objectkey.LayoutGenerator
	stores      map[string]archive.BlobStore
	concurrency int
	logger      *slog.Logger
}

// Option customizes the dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of uploads in flight.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a dispatcher. stores maps every bucket name of the generator's
// layout to the store that writes it.
func New(generator *objectkey.LayoutGenerator, stores map[string]archive.BlobStore, opts ...Option) (*Dispatcher, error) {
	for _, name := range objectkey.Buckets(generator.Layout()) {
		if stores[name] == nil {
			return nil, fmt.Errorf("no blob store configured for bucket %q", name)
		}
	}
	d := &Dispatcher{
		generator:   generator,
		stores:      stores,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type route struct {
	class  objectkey.Class
	bucket string
	key    string
	store  archive.BlobStore
}

func (d *Dispatcher) route(item *archive.ScrapedItem) (route, error) {
	class, err := objectkey.ClassOf(item.Kind)
	if err != nil {
		return route{}, err
	}
	key, err := d.generator.GenerateKey(item.Kind, item.Idents)
	if err != nil {
		return route{}, err
	}
	bucket := d.generator.Layout().Bucket(class)
	return route{class: class, bucket: bucket, key: key, store: d.stores[bucket]}, nil
}

// Dispatch drains items and uploads each one, at most the configured number
// at a time. Pulling stops at the first stream or upload error, and every
// payload is closed whether or not it was written. The stats cover the
// objects that were written.
func (d *Dispatcher) Dispatch(ctx context.Context, items iter.Seq2[*archive.ScrapedItem, error]) (Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	var (
		mu           sync.Mutex
		stats        Stats
		resourceKeys = make(map[string]struct{})
		streamErr    error
	)

	for item, err := range items {
		if err != nil {
			streamErr = err
			break
		}
		if gctx.Err() != nil {
			item.Close()
			break
		}
		r, err := d.route(item)
		if err != nil {
			item.Close()
			streamErr = err
			break
		}

		g.Go(func() error {
			defer item.Close()
			d.logger.Debug("dumping into the bucket", "kind", item.Kind, "bucket", r.bucket, "key", r.key, "media_type", item.MediaType)
			err := r.store.UploadWithParams(gctx, item.Payload, archive.UploadParams{
				ObjectKey: r.key,
				MimeType:  item.MediaType,
			})
			if err != nil {
				return &archive.StorageError{Bucket: r.bucket, Key: r.key, Op: "upload", Err: err}
			}

			mu.Lock()
			defer mu.Unlock()
			switch r.class {
			case objectkey.ClassRaw:
				stats.Raw++
			case objectkey.ClassBaked:
				stats.Baked++
			case objectkey.ClassResource:
				if _, seen := resourceKeys[r.key]; !seen {
					resourceKeys[r.key] = struct{}{}
					stats.Resource++
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if streamErr != nil {
		return stats, streamErr
	}
	if waitErr != nil {
		return stats, waitErr
	}
	return stats, ctx.Err()
}
