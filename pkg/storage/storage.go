// Package storage talks to the S3-compatible object store that receives
// timetable files uploaded directly by clients.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"workflow/backend/config"
)

// ObjectStore is the subset of the store the services use.
type ObjectStore interface {
	PresignPut(ctx context.Context, objectName string, ttl time.Duration) (string, error)
	Get(ctx context.Context, objectName string, maxBytes int64) ([]byte, error)
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectName string) error
}

// ErrTooLarge is returned by Get when the object exceeds maxBytes.
var ErrTooLarge = errors.New("object too large")

// Client is the minio-go implementation of ObjectStore.
type Client struct {
	mc     *minio.Client
	bucket string
	logger *zap.Logger
}

// NewClient connects and makes sure the bucket exists.
func NewClient(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("storage bucket created", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("storage connected", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &Client{mc: mc, bucket: cfg.Bucket, logger: logger}, nil
}

// PresignPut returns a URL that accepts one HTTP PUT of objectName until ttl elapses.
func (c *Client) PresignPut(ctx context.Context, objectName string, ttl time.Duration) (string, error) {
	u, err := c.mc.PresignedPutObject(ctx, c.bucket, objectName, ttl)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Get reads the whole object, refusing anything larger than maxBytes.
func (c *Client) Get(ctx context.Context, objectName string, maxBytes int64) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Put stores an object; size -1 streams with unknown length.
func (c *Client) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectName, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Remove deletes an object. Missing objects are not an error.
func (c *Client) Remove(ctx context.Context, objectName string) error {
	return c.mc.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{})
}

// IsNotFound reports whether err is the store's missing-object response.
func IsNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// Host returns the host part of a presigned URL; handy for logs without leaking signatures.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
