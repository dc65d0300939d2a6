package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/qfcreview/reviewdesk/internal/models"
)

type fakePutter struct {
	bucket, key string
	body        []byte
	opts        minio.PutObjectOptions
	err         error
}

func (f *fakePutter) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.bucket, f.key, f.body, f.opts = bucket, key, data, opts
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestRecordFailureUploadsJSON(t *testing.T) {
	fake := &fakePutter{}
	a := newArchive(fake, "review-failures", "")

	rec := models.FailureRecord{
		Stage:     "validating",
		Error:     "missing final_assessment",
		Payload:   []byte(`{"critical_gaps": {}}`),
		Metadata:  models.Metadata{Company: "Acme"},
		Timestamp: time.Date(2024, 6, 13, 9, 0, 0, 0, time.UTC),
	}
	if err := a.RecordFailure(context.Background(), rec); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}

	if fake.bucket != "review-failures" {
		t.Errorf("Expected bucket review-failures, got %s", fake.bucket)
	}
	if !strings.HasPrefix(fake.key, "failures/2024/06/13/") || !strings.HasSuffix(fake.key, ".json") {
		t.Errorf("Unexpected object key: %s", fake.key)
	}
	if fake.opts.ContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %s", fake.opts.ContentType)
	}

	var got models.FailureRecord
	if err := json.Unmarshal(fake.body, &got); err != nil {
		t.Fatalf("Uploaded body is not JSON: %v", err)
	}
	if got.Stage != "validating" || got.Metadata.Company != "Acme" {
		t.Errorf("Unexpected uploaded record: %+v", got)
	}
}

func TestRecordFailureQuotesInvalidPayload(t *testing.T) {
	fake := &fakePutter{}
	a := newArchive(fake, "b", "ingest")

	err := a.RecordFailure(context.Background(), models.FailureRecord{Stage: "validating", Payload: []byte("not json")})
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !strings.HasPrefix(fake.key, "ingest/") {
		t.Errorf("Expected custom prefix, got %s", fake.key)
	}

	var got struct {
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(fake.body, &got); err != nil {
		t.Fatalf("Uploaded body is not JSON: %v", err)
	}
	if got.Payload != "not json" {
		t.Errorf("Expected quoted payload, got %q", got.Payload)
	}
}

func TestRecordFailureUploadError(t *testing.T) {
	a := newArchive(&fakePutter{err: errors.New("connection refused")}, "b", "")

	if err := a.RecordFailure(context.Background(), models.FailureRecord{}); err == nil {
		t.Fatal("Expected upload error")
	}
}
