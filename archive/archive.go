// Package archive mirrors saved robot logs into a Hive-partitioned store.
//
// Keys follow logs/robot=<address>/day=<YYYY-MM-DD>/<name>. Objects are
// written once; archiving a key that already exists is a no-op.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"

	"github.com/pithecene-io/tlink/iox"
	"github.com/pithecene-io/tlink/metrics"
)

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// KeyPrefix is the root of every archived object.
const KeyPrefix = "logs"

// Config selects and configures the storage backend.
type Config struct {
	// Backend is "fs" or "s3".
	Backend string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	// Region is the AWS region (s3, optional).
	Region string
	// Endpoint is a custom S3 endpoint for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path).
	UsePathStyle bool
}

// Validate checks that the configuration names a usable backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS, BackendS3:
	default:
		return fmt.Errorf("invalid archive backend %q (must be fs or s3)", c.Backend)
	}
	if c.Path == "" {
		return errors.New("archive path is required")
	}
	if c.Backend == BackendS3 {
		if bucket, _ := ParseS3Path(c.Path); bucket == "" {
			return errors.New("S3 bucket is required")
		}
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// Archiver copies local files into a lode Store.
type Archiver struct {
	factory lode.StoreFactory
	metrics *metrics.Collector

	once     sync.Once
	store    lode.Store
	storeErr error
}

// New creates an archiver for cfg.
func New(ctx context.Context, cfg Config, m *metrics.Collector) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendFS {
		return NewWithFactory(lode.NewFSFactory(cfg.Path), m), nil
	}
	factory, err := s3Factory(ctx, cfg)
	if err != nil {
		return nil, wrap(err, "init", cfg.Path)
	}
	return NewWithFactory(factory, m), nil
}

// NewWithFactory creates an archiver over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewWithFactory(factory lode.StoreFactory, m *metrics.Collector) *Archiver {
	return &Archiver{factory: factory, metrics: m}
}

// s3Factory builds a store factory using the AWS default credential chain.
func s3Factory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	bucket, prefix := ParseS3Path(cfg.Path)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: bucket, Prefix: prefix})
	}, nil
}

func (a *Archiver) getStore() (lode.Store, error) {
	a.once.Do(func() {
		a.store, a.storeErr = a.factory()
	})
	return a.store, a.storeErr
}

// Key returns the object key for a log from robot saved on day at.
func Key(robot string, at time.Time, name string) string {
	return fmt.Sprintf("%s/robot=%s/day=%s/%s",
		KeyPrefix, sanitize(robot), at.UTC().Format("2006-01-02"), filepath.Base(name))
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", ":", "_", "=", "_", " ", "_").Replace(s)
}

// Archive copies the file at localPath under Key(robot, at, base name).
// Returns the key and whether the object was written.
func (a *Archiver) Archive(ctx context.Context, robot, localPath string, at time.Time) (string, bool, error) {
	key := Key(robot, at, localPath)
	store, err := a.getStore()
	if err != nil {
		a.metrics.IncArchiveWriteFailure()
		return key, false, wrap(err, "init", key)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil {
		a.metrics.IncArchiveWriteFailure()
		return key, false, wrap(err, "exists", key)
	}
	if exists {
		return key, false, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		a.metrics.IncArchiveWriteFailure()
		return key, false, wrap(err, "open", localPath)
	}
	defer iox.DiscardClose(f)

	if err := store.Put(ctx, key, f); err != nil {
		a.metrics.IncArchiveWriteFailure()
		return key, false, wrap(err, "put", key)
	}
	a.metrics.IncArchiveWriteSuccess()
	return key, true, nil
}

// List returns the archived keys for robot.
func (a *Archiver) List(ctx context.Context, robot string) ([]string, error) {
	store, err := a.getStore()
	if err != nil {
		return nil, wrap(err, "init", "")
	}
	prefix := fmt.Sprintf("%s/robot=%s/", KeyPrefix, sanitize(robot))
	keys, err := store.List(ctx, prefix)
	if err != nil {
		return nil, wrap(err, "list", prefix)
	}
	return keys, nil
}
