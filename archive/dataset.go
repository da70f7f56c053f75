// Package archive persists received telemetry lines to a Lode dataset.
//
// Records are Hive-partitioned by source and day and encoded as JSONL, on
// the local filesystem or any S3-compatible object store.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// DefaultDataset is the dataset ID lines are written to.
const DefaultDataset = "fleetview"

// Backend names.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// S3Config configures the S3 backend.
type S3Config struct {
	// Bucket is required.
	Bucket string
	// Prefix is the key prefix within the bucket.
	Prefix string
	// Region falls back to the default AWS chain when empty.
	Region string
	// Endpoint overrides the AWS endpoint for S3-compatible providers.
	Endpoint string
	// UsePathStyle puts the bucket in the path; most non-AWS providers need it.
	UsePathStyle bool
}

// Validate checks required fields.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path splits "bucket/prefix" into its parts.
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, prefix
}

// DeriveDay returns the partition day (YYYY-MM-DD, UTC) for t.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// NewDataset opens the dataset on factory with the archive's layout and codec.
// Reads and writes share it so they always agree.
func NewDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	if id == "" {
		id = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout("source", "day"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, id)
	}
	return ds, nil
}

// FSFactory stores the dataset under root.
func FSFactory(root string) lode.StoreFactory {
	return lode.NewFSFactory(root)
}

// S3Factory stores the dataset in a bucket. Credentials come from the AWS
// default chain (env, shared config, instance role).
func S3Factory(ctx context.Context, cfg S3Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, s3Options(cfg)...)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}, nil
}

func s3Options(cfg S3Config) []func(*s3.Options) {
	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		opts = append(opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		opts = append(opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return opts
}
