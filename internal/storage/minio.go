package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/evalIA/property-import-service/internal/config"
)

// ErrNotConfigured is returned when no object store endpoint is set
var ErrNotConfigured = errors.New("document storage not configured")

var Client *minio.Client
var BucketName string
var presignTTL = 24 * time.Hour

// Init connects to MinIO and checks the bucket. Without an endpoint it returns
// ErrNotConfigured and uploads are skipped.
func Init(cfg config.StorageConfig) error {
	if cfg.Endpoint == "" {
		return ErrNotConfigured
	}

	BucketName = cfg.Bucket
	if cfg.PresignHours > 0 {
		presignTTL = time.Duration(cfg.PresignHours) * time.Hour
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	Client = client
	slog.Info("storage.ready", "endpoint", cfg.Endpoint, "bucket", BucketName)
	return nil
}

// Enabled reports whether Init succeeded
func Enabled() bool {
	return Client != nil
}

// objectName builds {user}/YYYY/MM/{id}-{filename}
func objectName(userID, filename, id string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "document"
	}
	return fmt.Sprintf("%s/%d/%02d/%s-%s",
		userID,
		now.Year(),
		now.Month(),
		id,
		base,
	)
}

// UploadDocument stores an uploaded document under the user's prefix
// Path format: {user}/YYYY/MM/{uuid}-{filename}
func UploadDocument(ctx context.Context, userID string, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	name := objectName(userID, filename, uuid.New().String(), time.Now())

	_, err := Client.PutObject(ctx, BucketName, name, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}

	// Full path as kept on the session
	return fmt.Sprintf("%s/%s", BucketName, name), nil
}

// trimBucket removes the bucket prefix if present
func trimBucket(objectPath string) string {
	return strings.TrimPrefix(objectPath, BucketName+"/")
}

// GetPresignedURL generates a presigned URL for downloading an archived document
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	url, err := Client.PresignedGetObject(ctx, BucketName, trimBucket(objectPath), presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

// DeleteDocument removes a document from storage
func DeleteDocument(ctx context.Context, objectPath string) error {
	if Client == nil {
		return ErrNotConfigured
	}
	return Client.RemoveObject(ctx, BucketName, trimBucket(objectPath), minio.RemoveObjectOptions{})
}

// GetFileExtension extracts file extension from content type
func GetFileExtension(contentType string) string {
	switch contentType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/tiff":
		return ".tif"
	default:
		return ".bin"
	}
}

// Archive keeps uploaded documents in MinIO for the import pipeline
type Archive struct{}

// Archive uploads data and returns its storage path
func (Archive) Archive(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}
	if path.Ext(fileName) == "" {
		fileName += GetFileExtension(contentType)
	}
	return UploadDocument(ctx, userID, fileName, bytes.NewReader(data), int64(len(data)), contentType)
}

// Remove deletes an archived document
func (Archive) Remove(ctx context.Context, storagePath string) error {
	return DeleteDocument(ctx, storagePath)
}
