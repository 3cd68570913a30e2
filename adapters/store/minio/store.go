package storeminio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-certificate/certificate"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const filenameMetaKey = "Filename"

// Client is the subset of the MinIO client used by Store.
type Client interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error)
}

// Config configures a MinIO connection.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Store keeps rendered certificates in an S3-compatible bucket.
type Store struct {
	Client Client
	Bucket string
	Prefix string
	Now    func() time.Time
}

var _ certificate.ArtifactStore = (*Store)(nil)

// New connects a MinIO client and returns a store for the configured bucket.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, certificate.NewError(certificate.KindValidation, "minio endpoint is required", nil)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, certificate.NewError(certificate.KindValidation, "minio bucket is required", nil)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, certificate.NewError(certificate.KindExternal, "create minio client", err)
	}
	return &Store{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix, Now: time.Now}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	exists, err := s.Client.BucketExists(ctx, s.Bucket)
	if err != nil {
		return certificate.NewError(certificate.KindExternal, "check bucket", err)
	}
	if exists {
		return nil
	}
	if err := s.Client.MakeBucket(ctx, s.Bucket, minio.MakeBucketOptions{}); err != nil {
		return certificate.NewError(certificate.KindExternal, "create bucket", err)
	}
	return nil
}

// Put uploads the artifact. The payload is buffered so the object size is known.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta certificate.ArtifactMeta) (certificate.ArtifactRef, error) {
	object, err := s.object(key)
	if err != nil {
		return certificate.ArtifactRef{}, err
	}
	if r == nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindValidation, "artifact reader is required", nil)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindInternal, "read artifact", err)
	}

	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(path.Ext(object))
	}
	if meta.Filename == "" {
		meta.Filename = path.Base(object)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	meta.Size = int64(len(data))

	_, err = s.Client.PutObject(ctx, s.Bucket, object, bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
		ContentType:        meta.ContentType,
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", meta.Filename),
		UserMetadata:       map[string]string{filenameMetaKey: meta.Filename},
	})
	if err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindExternal, "upload artifact", err)
	}
	return certificate.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open streams an artifact from the bucket.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, certificate.ArtifactMeta, error) {
	object, err := s.object(key)
	if err != nil {
		return nil, certificate.ArtifactMeta{}, err
	}

	info, err := s.Client.StatObject(ctx, s.Bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return nil, certificate.ArtifactMeta{}, objectError(key, err)
	}
	reader, err := s.Client.GetObject(ctx, s.Bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, certificate.ArtifactMeta{}, objectError(key, err)
	}

	meta := certificate.ArtifactMeta{
		ContentType: info.ContentType,
		Size:        info.Size,
		Filename:    userMeta(info.UserMetadata, filenameMetaKey),
		CreatedAt:   info.LastModified,
	}
	if meta.Filename == "" {
		meta.Filename = path.Base(object)
	}
	return reader, meta, nil
}

// Delete removes an artifact from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	object, err := s.object(key)
	if err != nil {
		return err
	}
	if err := s.Client.RemoveObject(ctx, s.Bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return certificate.NewError(certificate.KindExternal, "delete artifact", err)
	}
	return nil
}

// SignedURL returns a presigned GET URL valid for ttl.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	object, err := s.object(key)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		return "", certificate.NewError(certificate.KindValidation, "signed URL TTL is required", nil)
	}
	u, err := s.Client.PresignedGetObject(ctx, s.Bucket, object, ttl, nil)
	if err != nil {
		return "", certificate.NewError(certificate.KindExternal, "presign artifact", err)
	}
	return u.String(), nil
}

func (s *Store) ready() error {
	if s == nil || s.Client == nil {
		return certificate.NewError(certificate.KindNotImpl, "minio client not configured", nil)
	}
	if s.Bucket == "" {
		return certificate.NewError(certificate.KindValidation, "minio bucket is required", nil)
	}
	return nil
}

func (s *Store) object(key string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if key == "" || clean == "" || clean == "." {
		return "", certificate.NewError(certificate.KindValidation, "artifact key is required", nil)
	}
	if prefix := strings.Trim(s.Prefix, "/"); prefix != "" {
		return prefix + "/" + clean, nil
	}
	return clean, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func objectError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return certificate.NewError(certificate.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
	}
	return certificate.NewError(certificate.KindExternal, "open artifact", err)
}

func userMeta(values map[string]string, key string) string {
	for k, v := range values {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}
