package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/bugwall/internal/apperr"
)

// S3Options configures an object-store backed Provider.
type S3Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Prefix     string
	Region     string
	UseSSL     bool
	Extensions []string
}

// S3 implements Provider over a bucket prefix on MinIO or any S3-compatible
// service. Objects are treated as flat files; nothing is ever written.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	exts   []string
}

// NewS3 creates a MinIO client for opts.
func NewS3(opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio: %w", err)
	}
	return &S3{
		client: client,
		bucket: opts.Bucket,
		prefix: normalizePrefix(opts.Prefix),
		region: opts.Region,
		exts:   normalizeExtensions(opts.Extensions),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet, mirroring the
// auto-provisioned directory of the FS provider.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage: check bucket %s: %w: %v", s.bucket, apperr.ErrStoreUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("storage: make bucket %s: %w: %v", s.bucket, apperr.ErrStoreUnavailable, err)
	}
	return nil
}

// List returns every accepted object under the prefix.
func (s *S3) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if obj.Err != nil {
			if minio.ToErrorResponse(obj.Err).Code == "NoSuchBucket" {
				return nil, nil
			}
			return nil, fmt.Errorf("storage: list: %w: %v", apperr.ErrStoreUnavailable, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		if name == "" || strings.HasSuffix(name, "/") || !hasExtension(name, s.exts) {
			continue
		}
		out = append(out, Entry{Name: name, Slug: SlugOf(name), Size: obj.Size, ModTime: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Read downloads one object.
func (s *S3) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.prefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", name, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("storage: read %s: %w", name, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
