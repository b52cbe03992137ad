package app

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	cfg "labeladmin/src/configuration"
)

type ClientMinio interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type MinioS3Client struct {
	bucketName string
	expiry     time.Duration
	client     ClientMinio
	logger     *zap.Logger
}

const defaultContentType = "application/octet-stream"

// NewMinioS3Client creates a client for the export bucket.
func NewMinioS3Client(config cfg.S3Properties, logger *zap.Logger) (*MinioS3Client, error) {
	minioClient, err := minio.New(config.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for %s: %w", config.Host, err)
	}
	return NewMinioS3ClientWith(minioClient, config.Bucket, config.URLExpiry, logger), nil
}

// NewMinioS3ClientWith wraps an existing client.
func NewMinioS3ClientWith(client ClientMinio, bucket string, expiry time.Duration, logger *zap.Logger) *MinioS3Client {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MinioS3Client{
		bucketName: bucket,
		expiry:     expiry,
		client:     client,
		logger:     logger,
	}
}

// ListObjects returns the objects under prefix whose extension is one of
// filters (all objects when filters is empty), each with a presigned URL.
func (s3 *MinioS3Client) ListObjects(ctx context.Context, prefix string, filters []string) ([]Export, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make([]Export, 0)
	objectCh := s3.client.ListObjects(ctx, s3.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return result, fmt.Errorf("list %s/%s: %w", s3.bucketName, prefix, object.Err)
		}
		if len(filters) > 0 && !checkIn(object.Key, filters) {
			continue
		}
		presignedURL, err := s3.PresignedURL(ctx, object.Key)
		if err != nil {
			return result, err
		}
		result = append(result, Export{
			Key:          object.Key,
			URL:          presignedURL.String(),
			Size:         object.Size,
			LastModified: object.LastModified.UTC(),
		})
	}
	return result, nil
}

// PresignedURL links to key as an attachment download.
func (s3 *MinioS3Client) PresignedURL(ctx context.Context, key string) (*url.URL, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=\"%s\"", baseName(key)))
	presignedURL, err := s3.client.PresignedGetObject(ctx, s3.bucketName, key, s3.expiry, reqParams)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return presignedURL, nil
}

// UploadFile stores object under uploadPath.
func (s3 *MinioS3Client) UploadFile(ctx context.Context, uploadPath string, object io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = defaultContentType
	}
	_, err := s3.client.PutObject(ctx,
		s3.bucketName,
		uploadPath,
		object,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", uploadPath, err)
	}
	s3.logger.Debug("uploaded object", zap.String("bucket", s3.bucketName), zap.String("key", uploadPath), zap.Int64("size", size))
	return nil
}

func (s3 *MinioS3Client) DeleteFile(ctx context.Context, fileName string) error {
	err := s3.client.RemoveObject(ctx, s3.bucketName, fileName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("remove %s: %w", fileName, err)
	}
	s3.logger.Debug("removed object", zap.String("bucket", s3.bucketName), zap.String("key", fileName))
	return nil
}

func checkIn(key string, filters []string) bool {
	parsed := strings.Split(key, ".")
	if len(parsed) > 1 {
		for _, f := range filters {
			if f == parsed[len(parsed)-1] {
				return true
			}
		}
	}
	return false
}

func baseName(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}
