package store

import (
	"context"
	"fmt"

	"github.com/pickscan/pickscan/config"
	"github.com/pickscan/pickscan/pkg/logger"
	"github.com/pickscan/pickscan/pkg/store/minio"
	"github.com/pickscan/pickscan/pkg/store/s3"
)

// Blob 接口定义 — binary storage for page images and source documents.
type Blob interface {
	// Put stores an object under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get fetches an object and its content type. A missing key reports an
	// error wrapping os.ErrNotExist.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete removes one object; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewBlob 创建存储实例的工厂方法
func NewBlob(cfg *config.StorageConfig, log logger.Logger) (Blob, error) {
	switch cfg.Backend {
	case "s3":
		return s3.NewClient(&cfg.S3, log)
	case "minio":
		return minio.NewClient(&cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
