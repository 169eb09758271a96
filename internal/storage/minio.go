package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps covers as objects in a MinIO bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore builds a MinIO client for cfg. It does not contact the
// server; call EnsureBucket before serving.
func NewMinIOStore(cfg *MinIOConfig) (*MinIOStore, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOStore{client: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the cover bucket when it is missing.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	return ensureBucket(ctx, s.client, s.bucket)
}

type bucketAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

func ensureBucket(ctx context.Context, api bucketAPI, bucket string) error {
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		// another instance created it first
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}

func (s *MinIOStore) Save(ctx context.Context, up Upload) (string, error) {
	up, err := Admit(up)
	if err != nil {
		return "", err
	}
	name := StoredName(up.Name)
	size := up.Size
	if size <= 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucket, name, up.Body, size, minio.PutObjectOptions{ContentType: up.ContentType}); err != nil {
		return "", fmt.Errorf("put %s: %w", name, err)
	}
	return name, nil
}

func (s *MinIOStore) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrFileNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectErr(err, name)
	}
	// stat to make sure the object exists before streaming it
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, objectErr(err, name)
	}
	return &Object{Content: obj, Size: info.Size, ContentType: info.ContentType, ModTime: info.LastModified}, nil
}

func (s *MinIOStore) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return ErrFileNotFound
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return objectErr(err, name)
	}
	return nil
}

func objectErr(err error, name string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrFileNotFound
	}
	return fmt.Errorf("object %s: %w", name, err)
}
