package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/yamdb/apiserver/config"
)

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3fs"})
	assert.ErrorContains(t, err, "s3fs")
}

func TestOpenMinioValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "minio"})
	assert.ErrorContains(t, err, "minio endpoint is required")

	_, err = Open(context.Background(), config.StorageConfig{
		Backend: "minio",
		Minio:   config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	})
	assert.ErrorContains(t, err, "minio bucket is required")
}

func TestOpenGCSRequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.ErrorContains(t, err, "gcs bucket is required")
}

func TestMinioErrorMapsMissingKey(t *testing.T) {
	err := minioError(minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	other := errors.New("connection refused")
	assert.Equal(t, other, minioError(other))
}
