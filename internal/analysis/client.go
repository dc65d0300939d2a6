// Package analysis submits documents to the remote compliance-analysis
// service. The service is a black box: it receives a base64 PDF and answers
// with the raw analysis response that the ingestion pipeline normalizes.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds one analysis request when none is configured.
const DefaultTimeout = 120 * time.Second

// maxResponseSize caps how much of the service response is read.
const maxResponseSize = 32 << 20

var (
	// ErrNotPDF is returned for uploads that are not PDF documents.
	ErrNotPDF = errors.New("only PDF files are allowed")
	// ErrTooLarge is returned for uploads above the configured size limit.
	ErrTooLarge = errors.New("file exceeds the maximum upload size")
)

// Client posts documents to the analysis service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a Client for endpoint. A non-positive timeout uses DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type uploadRequest struct {
	PDFBase64 string `json:"pdf_base64"`
}

// Analyze sends pdf to the service and returns the response body unchanged.
func (c *Client) Analyze(ctx context.Context, pdf []byte) ([]byte, error) {
	bodyBytes, err := json.Marshal(uploadRequest{PDFBase64: base64.StdEncoding.EncodeToString(pdf)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("analysis service error (status %d): %s", resp.StatusCode, truncate(respBody, 200))
	}
	return respBody, nil
}

// ValidateUpload checks that data is a PDF of at most maxBytes. The declared
// content type must be application/pdf and the content must sniff as PDF.
func ValidateUpload(contentType string, data []byte, maxBytes int64) error {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("%w (%d MB)", ErrTooLarge, maxBytes>>20)
	}
	if contentType != "application/pdf" || http.DetectContentType(data) != "application/pdf" {
		return ErrNotPDF
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
