// Package config builds the storage layout, blob stores and export ledger
// from option functions and the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/archive-dump/pkg/archive"
	"github.com/tendant/archive-dump/pkg/archive/fetch"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
	ledgermemory "github.com/tendant/archive-dump/pkg/archive/ledger/memory"
	ledgerpg "github.com/tendant/archive-dump/pkg/archive/ledger/postgres"
	"github.com/tendant/archive-dump/pkg/archive/objectkey"
	fsstorage "github.com/tendant/archive-dump/pkg/archive/storage/fs"
	memorystorage "github.com/tendant/archive-dump/pkg/archive/storage/memory"
	s3storage "github.com/tendant/archive-dump/pkg/archive/storage/s3"
	"github.com/tendant/archive-dump/pkg/archive/upload"
)

// Storage backend types
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

// Database types
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
)

// DefaultBucket names the single bucket of memory and fs storage when none
// is given.
const DefaultBucket = "archive"

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Host:         fetch.DefaultHost,
		Port:         "8080",
		Concurrency:  upload.DefaultConcurrency,
		DatabaseType: DatabaseMemory,
		Storage: StorageConfig{
			Type:     StorageMemory,
			Region:   "us-east-1",
			Prefixes: objectkey.DefaultPrefixes(),
		},
	}
}

// Config is the runtime configuration shared by the commands.
type Config struct {
	Host        string // content API host
	Port        string // resolver HTTP port
	Concurrency int    // upload workers

	DatabaseType string // "memory", "postgres"
	DatabaseURL  string

	Storage StorageConfig
}

// SSE algorithms accepted for S3 uploads
const (
	SSEAlgorithmAES256 = "AES256"
	SSEAlgorithmKMS    = "aws:kms"
)

// StorageConfig selects the backend and the key layout.
type StorageConfig struct {
	Type    string // "memory", "fs", "s3"
	BaseDir string // fs only

	// Single-bucket layout
	Bucket   string
	Prefixes objectkey.Prefixes

	// Three-part layout, active when any of these is set
	RawBucket      string
	BakedBucket    string
	ResourceBucket string

	// S3 options
	Region                 string
	Endpoint               string
	AccessKeyID            string
	SecretAccessKey        string
	UsePathStyle           bool
	CreateBucketIfNotExist bool
	SSEAlgorithm           string // "", "AES256" or "aws:kms"
	SSEKMSKeyID            string
	PartConcurrency        int // multipart upload parts in flight per object
}

func (s StorageConfig) threePart() bool {
	return s.RawBucket != "" || s.BakedBucket != "" || s.ResourceBucket != ""
}

// Layout returns the key layout the storage settings describe.
func (c *Config) Layout() objectkey.Layout {
	s := c.Storage
	if s.threePart() {
		return objectkey.ThreePartBucket{
			RawBucket:      s.RawBucket,
			BakedBucket:    s.BakedBucket,
			ResourceBucket: s.ResourceBucket,
		}
	}
	name := s.Bucket
	if name == "" && s.Type != StorageS3 {
		name = DefaultBucket
	}
	return objectkey.SingleBucket{Name: name, Prefixes: s.Prefixes}
}

// Validate validates the configuration. Overlapping three-part bucket names
// are rejected here, before anything is fetched.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}

	if c.DatabaseType != DatabaseMemory && c.DatabaseType != DatabasePostgres {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == DatabasePostgres && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.Storage.Type {
	case StorageMemory, StorageS3:
	case StorageFS:
		if c.Storage.BaseDir == "" {
			return errors.New("filesystem base directory is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}

	switch c.Storage.SSEAlgorithm {
	case "", SSEAlgorithmAES256, SSEAlgorithmKMS:
	default:
		return fmt.Errorf("unsupported SSE algorithm: %s", c.Storage.SSEAlgorithm)
	}
	if c.Storage.SSEKMSKeyID != "" && c.Storage.SSEAlgorithm != SSEAlgorithmKMS {
		return errors.New("SSE KMS key id requires the aws:kms algorithm")
	}
	if c.Storage.PartConcurrency < 0 {
		return fmt.Errorf("part concurrency cannot be negative, got %d", c.Storage.PartConcurrency)
	}

	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("invalid storage layout: %w", err)
	}
	return nil
}

// BuildStores creates one blob store per bucket of the layout.
func (c *Config) BuildStores(ctx context.Context) (map[string]archive.BlobStore, error) {
	stores := make(map[string]archive.BlobStore)
	for _, bucket := range objectkey.Buckets(c.Layout()) {
		store, err := c.buildStore(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", bucket, err)
		}
		stores[bucket] = store
	}
	return stores, nil
}

func (c *Config) buildStore(ctx context.Context, bucket string) (archive.BlobStore, error) {
	s := c.Storage
	switch s.Type {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFS:
		dir := s.BaseDir
		if s.threePart() {
			dir = filepath.Join(dir, bucket)
		}
		return fsstorage.New(fsstorage.Config{BaseDir: dir})

	case StorageS3:
		return s3storage.New(ctx, c.S3Config(bucket))

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", s.Type)
	}
}

// S3Config returns the S3 backend settings for one bucket of the layout.
func (c *Config) S3Config(bucket string) s3storage.Config {
	s := c.Storage
	return s3storage.Config{
		Region:                 s.Region,
		Bucket:                 bucket,
		AccessKeyID:            s.AccessKeyID,
		SecretAccessKey:        s.SecretAccessKey,
		Endpoint:               s.Endpoint,
		UsePathStyle:           s.UsePathStyle,
		EnableSSE:              s.SSEAlgorithm != "",
		SSEAlgorithm:           s.SSEAlgorithm,
		SSEKMSKeyID:            s.SSEKMSKeyID,
		CreateBucketIfNotExist: s.CreateBucketIfNotExist,
		PartConcurrency:        s.PartConcurrency,
	}
}

// Listers narrows stores to their listing side.
func Listers(stores map[string]archive.BlobStore) map[string]archive.Lister {
	listers := make(map[string]archive.Lister, len(stores))
	for name, store := range stores {
		listers[name] = store
	}
	return listers
}

// BuildLedger opens the export ledger. The returned close function releases
// the database pool, if any.
func (c *Config) BuildLedger(ctx context.Context) (ledger.Repository, func(), error) {
	switch c.DatabaseType {
	case DatabaseMemory:
		return ledgermemory.New(), func() {}, nil

	case DatabasePostgres:
		cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		repo := ledgerpg.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repo, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// Describe renders the storage target for log lines.
func (c *Config) Describe() string {
	buckets := objectkey.Buckets(c.Layout())
	return c.Storage.Type + "://" + strings.Join(buckets, ",")
}
