package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the scheme://host clients use to fetch objects.
	PublicURL string
}

type MinioBackend struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioBackend connects and creates the bucket on first use.
func NewMinioBackend(ctx context.Context, cfg MinioConfig) (*MinioBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	// URL hands out plain object addresses, so anonymous reads must work.
	// A policy an operator already set is left alone.
	policy, err := client.GetBucketPolicy(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("get bucket policy: %w", err)
	}
	if policy == "" {
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy: %w", err)
		}
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &MinioBackend{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(public, "/"),
	}, nil
}

func (b *MinioBackend) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return ErrExists
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("stat object: %w", err)
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if !Inline(contentType) {
		opts.ContentDisposition = "attachment"
	}
	_, err = b.client.PutObject(ctx, b.bucket, key, r, size, opts)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (b *MinioBackend) Remove(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (b *MinioBackend) Walk(ctx context.Context, fn func(Object) error) error {
	// Cancelling stops the listing goroutine if fn bails out early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects: %w", obj.Err)
		}
		if err := fn(Object{Key: obj.Key, Size: obj.Size, ModTime: obj.LastModified}); err != nil {
			return err
		}
	}
	return nil
}

func (b *MinioBackend) URL(_ string, key string) string {
	return b.publicURL + "/" + b.bucket + "/" + url.PathEscape(key)
}

type policyStatement struct {
	Effect    string              `json:"Effect"`
	Principal map[string][]string `json:"Principal"`
	Action    []string            `json:"Action"`
	Resource  []string            `json:"Resource"`
}

type bucketPolicy struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// publicReadPolicy allows anonymous GetObject on every object in bucket
// and nothing else.
func publicReadPolicy(bucket string) string {
	b, _ := json.Marshal(bucketPolicy{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string][]string{"AWS": {"*"}},
			Action:    []string{"s3:GetObject"},
			Resource:  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	})
	return string(b)
}
