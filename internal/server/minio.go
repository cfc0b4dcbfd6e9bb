package server

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the object storage connection settings.
type MinioConfig struct {
	Endpoint  string // "minio:9000" or "http(s)://minio:9000"
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinioObjectStore is the ObjectStore backed by a MinIO/S3 bucket. Calls
// pass through a circuit breaker so an unreachable MinIO fails fast.
type MinioObjectStore struct {
	client  *minio.Client
	bucket  string
	breaker *CircuitBreaker
}

var _ ObjectStore = (*MinioObjectStore)(nil)

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme: host:port, insecure as for a local MinIO.
	return raw, false, nil
}

// NewMinioObjectStore connects to MinIO and checks that the bucket exists.
func NewMinioObjectStore(ctx context.Context, cfg MinioConfig) (*MinioObjectStore, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}

	return &MinioObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// isNoSuchKey reports whether err is MinIO's answer for a missing object.
func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *MinioObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	var info minio.UploadInfo
	err := s.breaker.Execute(func() error {
		var err error
		info, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
		return err
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *MinioObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	var (
		obj     *minio.Object
		stat    minio.ObjectInfo
		missing bool
	)
	err := s.breaker.Execute(func() error {
		var err error
		obj, err = s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return err
		}
		// Force an early error for missing object / auth issues.
		stat, err = obj.Stat()
		if err != nil {
			_ = obj.Close()
			if isNoSuchKey(err) {
				// a missing key says nothing about MinIO health
				missing = true
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if missing {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return obj, objectInfo(stat), nil
}

func (s *MinioObjectStore) Remove(ctx context.Context, key string) error {
	missing := false
	err := s.breaker.Execute(func() error {
		if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
			if isNoSuchKey(err) {
				missing = true
				return nil
			}
			return err
		}
		return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return err
	}
	if missing {
		return ErrObjectNotFound
	}
	return nil
}

func (s *MinioObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	list := []ObjectInfo{}
	err := s.breaker.Execute(func() error {
		opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
		for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
			if obj.Err != nil {
				return obj.Err
			}
			list = append(list, objectInfo(obj))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *MinioObjectStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", s.bucket)
	}
	return nil
}

// Breaker exposes the circuit breaker for health reporting.
func (s *MinioObjectStore) Breaker() *CircuitBreaker {
	return s.breaker
}

func objectInfo(o minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		ContentType:  o.ContentType,
		LastModified: o.LastModified,
	}
}
