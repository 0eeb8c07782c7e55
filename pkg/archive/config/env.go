package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// envVars lists the environment variables WithEnv reads.
type envVars struct {
	Port        string `env:"PORT"`
	Host        string `env:"ARCHIVE_HOST"`
	Concurrency int    `env:"UPLOAD_CONCURRENCY"`
	DatabaseURL string `env:"DATABASE_URL"`

	StorageURL     string `env:"STORAGE_URL"`
	RawBucket      string `env:"S3_RAW_BUCKET"`
	BakedBucket    string `env:"S3_BAKED_BUCKET"`
	ResourceBucket string `env:"S3_RESOURCES_BUCKET"`
	RawPrefix      string `env:"RAW_PREFIX" env-default:"raw/"`
	BakedPrefix    string `env:"BAKED_PREFIX" env-default:"baked/"`
	ResourcePrefix string `env:"RESOURCE_PREFIX" env-default:"resources/"`

	Region          string `env:"AWS_REGION"`
	Endpoint        string `env:"AWS_S3_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	PathStyle       bool   `env:"AWS_S3_PATH_STYLE"`
	CreateBucket    bool   `env:"S3_CREATE_BUCKET"`
	SSEAlgorithm    string `env:"S3_SSE_ALGORITHM"`
	SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID"`
	PartConcurrency int    `env:"S3_PART_CONCURRENCY"`
}

// WithEnv applies environment variable overrides.
//
// Storage:
//
//	STORAGE_URL - one of
//	              "memory://" - in-memory storage (default)
//	              "file:///path/to/data" - filesystem snapshot
//	              "s3://bucket?region=us-west-2&endpoint=http://localhost:9000&path_style=true"
//	S3_RAW_BUCKET, S3_BAKED_BUCKET, S3_RESOURCES_BUCKET - three-part layout
//	RAW_PREFIX, BAKED_PREFIX, RESOURCE_PREFIX - single-bucket prefixes
//	AWS_REGION, AWS_S3_ENDPOINT, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//	S3_SSE_ALGORITHM - "AES256" or "aws:kms", S3_SSE_KMS_KEY_ID
//	S3_PART_CONCURRENCY - multipart parts in flight per object
//
// Export and ledger:
//
//	ARCHIVE_HOST - content API host (default: archive.cnx.org)
//	UPLOAD_CONCURRENCY - upload workers
//	DATABASE_URL - "memory" (default) or "postgres://..."
//	PORT - resolver HTTP port (default: 8080)
func WithEnv() Option {
	return func(c *Config) error {
		var vars envVars
		if err := cleanenv.ReadEnv(&vars); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		if vars.Port != "" {
			c.Port = vars.Port
		}
		if vars.Host != "" {
			c.Host = vars.Host
		}
		if vars.Concurrency != 0 {
			c.Concurrency = vars.Concurrency
		}

		if err := applyDatabaseEnv(vars.DatabaseURL, c); err != nil {
			return err
		}
		return applyStorageEnv(vars, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(dbURL string, c *Config) error {
	if dbURL == "" || dbURL == DatabaseMemory {
		c.DatabaseType = DatabaseMemory
		c.DatabaseURL = ""
		return nil
	}

	if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = DatabasePostgres
		c.DatabaseURL = dbURL
		return nil
	}

	return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(vars envVars, c *Config) error {
	s := &c.Storage
	s.Prefixes.Raw = vars.RawPrefix
	s.Prefixes.Baked = vars.BakedPrefix
	s.Prefixes.Resource = vars.ResourcePrefix
	s.RawBucket = vars.RawBucket
	s.BakedBucket = vars.BakedBucket
	s.ResourceBucket = vars.ResourceBucket
	if vars.Region != "" {
		s.Region = vars.Region
	}
	if vars.Endpoint != "" {
		s.Endpoint = vars.Endpoint
	}
	if vars.AccessKeyID != "" && vars.SecretAccessKey != "" {
		s.AccessKeyID = vars.AccessKeyID
		s.SecretAccessKey = vars.SecretAccessKey
	}
	s.UsePathStyle = s.UsePathStyle || vars.PathStyle
	s.CreateBucketIfNotExist = s.CreateBucketIfNotExist || vars.CreateBucket
	if vars.SSEAlgorithm != "" {
		s.SSEAlgorithm = vars.SSEAlgorithm
		s.SSEKMSKeyID = vars.SSEKMSKeyID
	}
	if vars.PartConcurrency != 0 {
		s.PartConcurrency = vars.PartConcurrency
	}

	storageURL := vars.StorageURL
	switch {
	case storageURL == "" && s.threePart():
		s.Type = StorageS3
		return nil
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		s.Type = StorageMemory
		return nil
	case strings.HasPrefix(storageURL, "file://"):
		return applyFilesystemStorage(storageURL, c)
	case strings.HasPrefix(storageURL, "s3://"):
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(storageURL string, c *Config) error {
	path := strings.TrimPrefix(storageURL, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}
	c.Storage.Type = StorageFS
	c.Storage.BaseDir = path
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://bucket?region=us-east-1&endpoint=http://localhost:9000&path_style=true
func applyS3Storage(storageURL string, c *Config) error {
	u, err := url.Parse(storageURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}

	s := &c.Storage
	s.Type = StorageS3
	s.Bucket = u.Host
	if s.Bucket == "" && !s.threePart() {
		return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
	}

	q := u.Query()
	if region := q.Get("region"); region != "" {
		s.Region = region
	}
	if endpoint := q.Get("endpoint"); endpoint != "" {
		s.Endpoint = endpoint
	}
	if raw := q.Get("path_style"); raw != "" {
		pathStyle, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid path_style in STORAGE_URL: %w", err)
		}
		s.UsePathStyle = pathStyle
	}
	return nil
}
