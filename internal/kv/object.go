package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig captures connection parameters for S3-compatible storage.
type ObjectConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectStore implements Store over an S3-compatible bucket. Each key maps
// to one object; the expiry deadline is kept in object metadata and
// enforced lazily on Get and List (object stores have no native per-key
// TTL at this granularity).
type ObjectStore struct {
	client *minio.Client
	bucket string
}

const metaExpiresAt = "Expires-At-Ms"

// NewObjectStore connects to the endpoint and ensures the bucket exists.
func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("kv: object store requires endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("kv: create object client: %w", err)
	}

	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()
	exists, err := client.BucketExists(bootCtx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("kv: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(bootCtx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("kv: create bucket: %w", err)
		}
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// objectName flattens key namespaces: "usage:123" -> "usage/123" so that
// prefix listings map onto object-store prefixes.
func objectName(key string) string {
	return strings.ReplaceAll(key, ":", "/")
}

func keyName(object string) string {
	return strings.ReplaceAll(object, "/", ":")
}

func (s *ObjectStore) Get(ctx context.Context, key string) (string, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return "", false, fmt.Errorf("kv: object get: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv: object read: %w", err)
	}
	stat, err := obj.Stat()
	if err == nil {
		if raw := stat.UserMetadata[metaExpiresAt]; raw != "" {
			if deadline, perr := strconv.ParseInt(raw, 10, 64); perr == nil && deadline > 0 && deadline <= nowMillis() {
				_ = s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{})
				return "", false, nil
			}
		}
	}
	return string(data), true, nil
}

func (s *ObjectStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if deadline := expiryMillis(ttl); deadline > 0 {
		opts.UserMetadata = map[string]string{metaExpiresAt: strconv.FormatInt(deadline, 10)}
	}
	reader := bytes.NewReader([]byte(value))
	if _, err := s.client.PutObject(ctx, s.bucket, objectName(key), reader, int64(reader.Len()), opts); err != nil {
		return fmt.Errorf("kv: object put: %w", err)
	}
	return nil
}

func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("kv: object delete: %w", err)
	}
	return nil
}

func (s *ObjectStore) List(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	objCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:       objectName(prefix),
		Recursive:    true,
		WithMetadata: true,
	})

	now := nowMillis()
	var entries []Entry
	for info := range objCh {
		if info.Err != nil {
			return nil, fmt.Errorf("kv: object list: %w", info.Err)
		}
		e := Entry{Name: keyName(info.Key)}
		if raw := info.UserMetadata["X-Amz-Meta-"+metaExpiresAt]; raw != "" {
			if deadline, err := strconv.ParseInt(raw, 10, 64); err == nil && deadline > 0 {
				if deadline <= now {
					continue
				}
				e.Expiration = time.UnixMilli(deadline)
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *ObjectStore) Close() error { return nil }
