package registry

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"git.home.luguber.info/inful/releaser/internal/config"
	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// objectStore is the subset of *minio.Client used by S3Target.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Target uploads every file of the package directory to bucket/prefix on
// an S3-compatible object store.
type S3Target struct {
	name   string
	bucket string
	prefix string
	region string
	store  objectStore
}

// NewS3Target creates an S3 target backed by minio-go. The endpoint may carry
// an http:// or https:// scheme, which then decides TLS over use_ssl.
func NewS3Target(tc config.TargetConfig) (*S3Target, error) {
	endpoint, secure := splitEndpoint(tc.Endpoint, tc.UseSSL)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(tc.AccessKey, tc.SecretKey, ""),
		Secure: secure,
		Region: tc.Region,
	})
	if err != nil {
		return nil, errors.ConfigError("invalid s3 target").
			WithCause(err).
			WithContext("target", tc.Name).
			Build()
	}
	return newS3Target(tc, client), nil
}

func newS3Target(tc config.TargetConfig, store objectStore) *S3Target {
	return &S3Target{
		name:   tc.Name,
		bucket: tc.Bucket,
		prefix: strings.Trim(tc.Prefix, "/"),
		region: tc.Region,
		store:  store,
	}
}

func splitEndpoint(raw string, useSSL bool) (string, bool) {
	if !strings.Contains(raw, "://") {
		return raw, useSSL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw, useSSL
	}
	return u.Host, u.Scheme == "https"
}

func (t *S3Target) Name() string { return t.name }

// ObjectKey returns the object key for a relative file path.
func (t *S3Target) ObjectKey(rel string) string {
	if t.prefix == "" {
		return rel
	}
	return path.Join(t.prefix, rel)
}

// Publish implements Target.
func (t *S3Target) Publish(ctx context.Context, dir string) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	if err := t.ensureBucket(ctx); err != nil {
		return err
	}
	for _, rel := range files {
		key := t.ObjectKey(rel)
		_, err := t.store.FPutObject(ctx, t.bucket, key, filepath.Join(dir, filepath.FromSlash(rel)), minio.PutObjectOptions{
			ContentType: release.ContentTypeFor(rel),
		})
		if err != nil {
			return errors.RegistryError("s3 upload failed").
				WithCause(err).
				WithContext("target", t.name).
				WithContext("bucket", t.bucket).
				WithContext("key", key).
				Build()
		}
	}
	return nil
}

func (t *S3Target) ensureBucket(ctx context.Context) error {
	exists, err := t.store.BucketExists(ctx, t.bucket)
	if err != nil {
		return errors.RegistryError("s3 bucket check failed").
			WithCause(err).
			WithContext("target", t.name).
			WithContext("bucket", t.bucket).
			Build()
	}
	if exists {
		return nil
	}
	if err := t.store.MakeBucket(ctx, t.bucket, minio.MakeBucketOptions{Region: t.region}); err != nil {
		return errors.RegistryError("s3 bucket creation failed").
			WithCause(err).
			WithContext("target", t.name).
			WithContext("bucket", t.bucket).
			Build()
	}
	return nil
}
