package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

func TestAnalyze(t *testing.T) {
	var got uploadRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Write([]byte(`{"final": "{\"analysis_summary\": {}}"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	body, err := c.Analyze(context.Background(), samplePDF)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(got.PDFBase64)
	if err != nil || string(decoded) != string(samplePDF) {
		t.Errorf("Service did not receive the PDF: %v", err)
	}
	if !strings.Contains(string(body), `"final"`) {
		t.Errorf("Expected raw response body, got %s", body)
	}
}

func TestAnalyzeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Analyze(context.Background(), samplePDF)
	if err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	if _, err := NewClient(server.URL, 20*time.Millisecond).Analyze(context.Background(), samplePDF); err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		max         int64
		want        error
	}{
		{"valid", "application/pdf", samplePDF, 10 << 20, nil},
		{"wrong type", "image/png", samplePDF, 10 << 20, ErrNotPDF},
		{"not really pdf", "application/pdf", []byte("hello world"), 10 << 20, ErrNotPDF},
		{"too large", "application/pdf", samplePDF, 10, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.contentType, tt.data, tt.max)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
