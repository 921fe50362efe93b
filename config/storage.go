package config

import (
	"sync"
)

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig selects and configures the blob backend holding page images
// and uploaded source documents.
type StorageConfig struct {
	Backend string // "minio" or "s3"
	Minio   MinioConfig
	S3      S3Config
}

type MinioConfig struct {
	AccessKey  string
	SecretKey  string
	Endpoint   string
	UseSSL     bool
	Region     string
	BucketName string
}

type S3Config struct {
	AccessKey  string
	SecretKey  string
	Region     string
	BucketName string
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()

		storageConfig = &StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "minio"),
			Minio: MinioConfig{
				AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
				SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
				Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
				UseSSL:     getEnvBool("MINIO_USE_SSL", false),
				Region:     getEnv("MINIO_REGION", ""),
				BucketName: getEnv("MINIO_BUCKET_NAME", "pickscan"),
			},
			S3: S3Config{
				AccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Region:     getEnv("AWS_REGION", "ap-northeast-1"),
				BucketName: getEnv("S3_BUCKET_NAME", "pickscan"),
			},
		}
	})
	return storageConfig
}
