package config

import (
	"fmt"

	"github.com/tendant/archive-dump/pkg/archive/objectkey"
)

// WithHost sets the content API host
func WithHost(host string) Option {
	return func(c *Config) error {
		if host == "" {
			return fmt.Errorf("host cannot be empty")
		}
		c.Host = host
		return nil
	}
}

// WithPort sets the resolver HTTP port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithConcurrency sets the number of upload workers
func WithConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be positive, got %d", n)
		}
		c.Concurrency = n
		return nil
	}
}

// WithDatabase configures the ledger database
func WithDatabase(dbType, url string) Option {
	return func(c *Config) error {
		if dbType != DatabaseMemory && dbType != DatabasePostgres {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == DatabasePostgres && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithMemoryStorage keeps every object in process memory
func WithMemoryStorage() Option {
	return func(c *Config) error {
		c.Storage.Type = StorageMemory
		return nil
	}
}

// WithFilesystemStorage writes objects below baseDir. In three-part mode
// each bucket is a subdirectory.
func WithFilesystemStorage(baseDir string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage.Type = StorageFS
		c.Storage.BaseDir = baseDir
		return nil
	}
}

// WithS3Storage writes objects to S3. An empty region or endpoint keeps
// the current one.
func WithS3Storage(region, endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.Storage.Type = StorageS3
		if region != "" {
			c.Storage.Region = region
		}
		if endpoint != "" {
			c.Storage.Endpoint = endpoint
		}
		c.Storage.UsePathStyle = c.Storage.UsePathStyle || usePathStyle
		return nil
	}
}

// WithS3Credentials sets static credentials instead of the default chain
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithS3Encryption enables server-side encryption of uploaded objects.
// kmsKeyID applies to the aws:kms algorithm only.
func WithS3Encryption(algorithm, kmsKeyID string) Option {
	return func(c *Config) error {
		c.Storage.SSEAlgorithm = algorithm
		c.Storage.SSEKMSKeyID = kmsKeyID
		return nil
	}
}

// WithS3PartConcurrency sets how many multipart upload parts of one object
// are sent at once.
func WithS3PartConcurrency(n int) Option {
	return func(c *Config) error {
		c.Storage.PartConcurrency = n
		return nil
	}
}

// WithSingleBucket selects the single-bucket layout
func WithSingleBucket(name string, prefixes objectkey.Prefixes) Option {
	return func(c *Config) error {
		if name == "" {
			return fmt.Errorf("bucket name cannot be empty")
		}
		c.Storage.Bucket = name
		c.Storage.Prefixes = prefixes
		c.Storage.RawBucket = ""
		c.Storage.BakedBucket = ""
		c.Storage.ResourceBucket = ""
		return nil
	}
}

// WithThreePartBuckets selects the three-bucket layout
func WithThreePartBuckets(raw, baked, resource string) Option {
	return func(c *Config) error {
		if raw == "" || baked == "" || resource == "" {
			return fmt.Errorf("raw, baked and resource bucket names are required")
		}
		c.Storage.RawBucket = raw
		c.Storage.BakedBucket = baked
		c.Storage.ResourceBucket = resource
		return nil
	}
}
