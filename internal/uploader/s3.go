package uploader

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/a10y/camerars/internal/conf"
)

const segmentContentType = "video/MP2T"

// s3Store is an ObjectStore backed by a S3-compatible service.
type s3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store allocates an ObjectStore backed by a S3-compatible service.
func NewS3Store(cnf conf.S3) (ObjectStore, error) {
	endpoint := cnf.Endpoint
	secure := true

	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = endpoint[len("https://"):]

	case strings.HasPrefix(endpoint, "http://"):
		endpoint = endpoint[len("http://"):]
		secure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cnf.AccessKeyID, cnf.SecretAccessKey, ""),
		Secure: secure,
		Region: cnf.Region,
	})
	if err != nil {
		return nil, err
	}

	return &s3Store{client: client, bucket: cnf.Bucket}, nil
}

// Put implements ObjectStore.
func (s *s3Store) Put(ctx context.Context, key string, fpath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, fpath,
		minio.PutObjectOptions{ContentType: segmentContentType})
	return err
}

// Get implements ObjectStore.
func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}
