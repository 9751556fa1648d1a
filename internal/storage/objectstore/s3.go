// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tomtom215/waypoint/internal/logging"
)

// recordContentType matches the content type partitions were historically
// written with.
const recordContentType = "text/plain"

// S3Config configures an S3-compatible backend.
type S3Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UseSSL       bool
	CreateBucket bool
	Breaker      BreakerConfig
}

// S3Store keeps each object in an S3 bucket. It has no append primitive.
type S3Store struct {
	client  *minio.Client
	bucket  string
	breaker *breaker
}

// NewS3 connects to the endpoint and checks the bucket, creating it when
// cfg.CreateBucket is set.
func NewS3(ctx context.Context, cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.CreateBucket {
			return nil, fmt.Errorf("bucket %s does not exist", cfg.Bucket)
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logging.Info().Str("bucket", cfg.Bucket).Msg("Created object store bucket")
	}

	logging.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("Object store opened (s3)")
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: newBreaker("s3-"+cfg.Bucket, cfg.Breaker),
	}, nil
}

// Get downloads the whole object.
func (s *S3Store) Get(ctx context.Context, key string) (data []byte, err error) {
	defer observe("s3", "get", time.Now(), &err)

	result, err := s.breaker.execute(func() (interface{}, error) {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, mapS3Error(err)
		}
		defer obj.Close()

		body, err := io.ReadAll(obj)
		if err != nil {
			return nil, mapS3Error(err)
		}
		return body, nil
	})
	if err != nil {
		return nil, wrapS3("get", key, err)
	}
	return result.([]byte), nil
}

// Put uploads data as the full object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (err error) {
	defer observe("s3", "put", time.Now(), &err)

	_, err = s.breaker.execute(func() (interface{}, error) {
		_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: recordContentType})
		return nil, err
	})
	if err != nil {
		return wrapS3("put", key, err)
	}
	return nil
}

// List returns all keys under prefix. S3 lists in UTF-8 binary order.
func (s *S3Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer observe("s3", "list", time.Now(), &err)

	result, err := s.breaker.execute(func() (interface{}, error) {
		var out []string
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				return nil, obj.Err
			}
			out = append(out, obj.Key)
		}
		return out, nil
	})
	if err != nil {
		return nil, wrapS3("list", prefix, err)
	}
	return result.([]string), nil
}

// Ping checks the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.breaker.execute(func() (interface{}, error) {
		ok, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && !ok {
			err = fmt.Errorf("bucket %s does not exist", s.bucket)
		}
		return nil, err
	})
	return err
}

// Close is a no-op; the HTTP client has no persistent resources to release.
func (s *S3Store) Close() error {
	return nil
}

func mapS3Error(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

func wrapS3(op, key string, err error) error {
	if err == ErrNotFound { //nolint:errorlint // sentinel returned unwrapped by mapS3Error
		return err
	}
	return fmt.Errorf("s3 %s %s: %w", op, key, err)
}
