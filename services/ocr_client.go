package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// OCRClient talks to the external OCR sidecar over HTTP. Image ingestion
// degrades to a failed-extraction record when the sidecar is down, so every
// error here is survivable.
type OCRClient struct {
	baseURL string
	client  *http.Client
	enabled bool
}

func NewOCRClient(baseURL string, enabled bool) *OCRClient {
	return &OCRClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		enabled: enabled && baseURL != "",
	}
}

func (c *OCRClient) Enabled() bool {
	return c.enabled
}

// Healthy probes the sidecar's health endpoint.
func (c *OCRClient) Healthy(ctx context.Context) bool {
	if !c.enabled {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ExtractText sends one image to the sidecar and returns the recognized text.
func (c *OCRClient) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("OCR service not configured")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("OCR service returned %d: %s", resp.StatusCode, msg)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode OCR response: %w", err)
	}
	return parsed.Text, nil
}
