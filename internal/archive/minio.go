// Package archive copies failed ingestions to object storage so the raw
// payloads can be inspected after the audit trail has rotated them out.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/qfcreview/reviewdesk/internal/models"
)

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioArchive writes one JSON object per failed ingestion.
type MinioArchive struct {
	client objectPutter
	bucket string
	prefix string
}

// NewMinioArchive connects to MinIO and makes sure the bucket exists.
func NewMinioArchive(ctx context.Context, opts Options) (*MinioArchive, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", opts.Bucket, err)
		}
	}

	return newArchive(cli, opts.Bucket, opts.Prefix), nil
}

func newArchive(client objectPutter, bucket, prefix string) *MinioArchive {
	if prefix == "" {
		prefix = "failures"
	}
	return &MinioArchive{client: client, bucket: bucket, prefix: prefix}
}

// RecordFailure uploads rec as <prefix>/<yyyy>/<mm>/<dd>/<uuid>.json.
func (a *MinioArchive) RecordFailure(ctx context.Context, rec models.FailureRecord) error {
	body, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	key := a.objectKey(rec)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (a *MinioArchive) objectKey(rec models.FailureRecord) string {
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, rec.Timestamp.UTC().Format("2006/01/02"), uuid.New().String())
}

// encodeRecord marshals rec, keeping a non-JSON payload as a string.
func encodeRecord(rec models.FailureRecord) ([]byte, error) {
	if len(rec.Payload) > 0 && !json.Valid(rec.Payload) {
		quoted, err := json.Marshal(string(rec.Payload))
		if err != nil {
			return nil, err
		}
		rec.Payload = quoted
	}
	return json.MarshalIndent(rec, "", "  ")
}
