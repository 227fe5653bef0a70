package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/pkg/logger"
)

// IrysUploader stores metadata JSON on Arweave through an Irys uploader service.
type IrysUploader struct {
	logger  *logger.Logger
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ models.MetadataUploader = (*IrysUploader)(nil)

func NewIrysUploader(baseURL, apiKey string, logger *logger.Logger) *IrysUploader {
	return &IrysUploader{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
	}
}

// UploadMetadata posts the JSON body to /upload/json and returns the gateway URI.
func (u *IrysUploader) UploadMetadata(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("metadata is empty")
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("metadata is not valid JSON")
	}
	if u.baseURL == "" {
		return "", fmt.Errorf("uploader URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upload/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload metadata: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("metadata upload failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if res.URI == "" {
		return "", fmt.Errorf("upload response has empty uri")
	}

	u.logger.Debugw("Metadata uploaded", "uri", res.URI, "bytes", len(data))
	return res.URI, nil
}
