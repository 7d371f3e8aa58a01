package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrReportNotFound      = errors.New("report object not found")
	ErrReportUploadFailed  = errors.New("failed to upload report")
	ErrReportURLGeneration = errors.New("failed to generate report URL")
)

// ReportStorage serves the purchased report artifacts the access tokens
// gate. Download URLs are short-lived presigned GETs.
type ReportStorage interface {
	UploadReport(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error
	PresignedReportURL(ctx context.Context, objectKey string) (string, error)
}

type MinioReportStorage struct {
	client *minio.Client
	bucket string
	urlTTL time.Duration
}

func NewMinioReportStorage(endpoint, accessKey, secretKey, bucket string, useSSL bool, urlTTL time.Duration) (*MinioReportStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &MinioReportStorage{client: client, bucket: bucket, urlTTL: urlTTL}
	if err := s.ensureBucketExists(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioReportStorage) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check report bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create report bucket: %w", err)
		}
	}
	return nil
}

func (s *MinioReportStorage) UploadReport(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error {
	if strings.TrimSpace(objectKey) == "" {
		return fmt.Errorf("%w: empty object key", ErrReportUploadFailed)
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportUploadFailed, err)
	}
	return nil
}

func (s *MinioReportStorage) PresignedReportURL(ctx context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", ErrReportNotFound
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, s.urlTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReportURLGeneration, err)
	}
	return presigned.String(), nil
}
