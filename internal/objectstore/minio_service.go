package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// ReportPrefix is the key prefix of archived job reports.
const ReportPrefix = "reports/"

// ErrNotConfigured is returned by a MinioClient built without a bucket.
var ErrNotConfigured = errors.New("object store not configured")

// Options are the MinIO connection settings.
type Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// MinioClient archives JSON job reports in a MinIO bucket.
type MinioClient struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinioClient builds a client. It does not touch the network; call
// EnsureBucket at startup.
func NewMinioClient(opts Options, logger *zap.Logger) (*MinioClient, error) {
	if opts.Endpoint == "" || opts.AccessKeyID == "" || opts.SecretAccessKey == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("endpoint, access key, secret key and bucket must be set: %w", ErrNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return &MinioClient{client: client, bucket: opts.Bucket, logger: logger}, nil
}

// Bucket returns the configured bucket name.
func (mc *MinioClient) Bucket() string { return mc.bucket }

// EnsureBucket creates the bucket when it does not exist.
func (mc *MinioClient) EnsureBucket(ctx context.Context) error {
	if err := mc.check(); err != nil {
		return err
	}
	exists, err := mc.client.BucketExists(ctx, mc.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if MinIO bucket '%s' exists: %w", mc.bucket, err)
	}
	if exists {
		return nil
	}
	if err := mc.client.MakeBucket(ctx, mc.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create MinIO bucket '%s': %w", mc.bucket, err)
	}
	mc.logger.Info("created report bucket", zap.String("bucket", mc.bucket))
	return nil
}

// PutReport stores report as JSON under a fresh reports/<uuid>.json name
// and returns that name.
func (mc *MinioClient) PutReport(ctx context.Context, report any) (string, error) {
	if err := mc.check(); err != nil {
		return "", err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	objectName := NewReportName()
	info, err := mc.client.PutObject(ctx, mc.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report (bucket: %s, object: %s): %w", mc.bucket, objectName, err)
	}
	mc.logger.Debug("report archived",
		zap.String("object", objectName),
		zap.Int64("size", info.Size),
		zap.String("etag", info.ETag),
	)
	return objectName, nil
}

// GetReportReader opens an archived report. The caller closes the reader.
func (mc *MinioClient) GetReportReader(ctx context.Context, objectName string) (io.ReadCloser, int64, error) {
	if err := mc.check(); err != nil {
		return nil, 0, err
	}
	if !IsReportName(objectName) {
		return nil, 0, fmt.Errorf("object %q is not a report", objectName)
	}
	object, err := mc.client.GetObject(ctx, mc.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", objectName, mc.bucket, err)
	}
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, 0, fmt.Errorf("failed to get object stats for '%s': %w", objectName, err)
	}
	return object, stat.Size, nil
}

// DeleteReport removes an archived report.
func (mc *MinioClient) DeleteReport(ctx context.Context, objectName string) error {
	if err := mc.check(); err != nil {
		return err
	}
	if err := mc.client.RemoveObject(ctx, mc.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object '%s' from MinIO bucket '%s': %w", objectName, mc.bucket, err)
	}
	return nil
}

func (mc *MinioClient) check() error {
	if mc == nil || mc.client == nil || mc.bucket == "" {
		return ErrNotConfigured
	}
	return nil
}

// NewReportName returns a unique object name under ReportPrefix.
func NewReportName() string {
	return ReportPrefix + uuid.NewString() + ".json"
}

// IsReportName reports whether name has the shape NewReportName produces.
func IsReportName(name string) bool {
	if !strings.HasPrefix(name, ReportPrefix) || path.Ext(name) != ".json" {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(name, ReportPrefix), ".json"))
	return err == nil
}
