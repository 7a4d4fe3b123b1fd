// Package advisory provides an HTTP client for the external medication
// analysis service consulted during safety screening.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pharmd/pharmd/internal/domain/screening"
	"github.com/pharmd/pharmd/pkg/errs"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the advisory service at baseURL. The HTTP
// client timeout is a safety net; callers control the effective deadline via
// the request context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
}

// Analyze posts the screening request to the advisory service and returns its
// free-text analysis. Transport and non-2xx failures are wrapped in
// errs.ErrExternalUnavailable so callers can degrade instead of fail.
func (c *Client) Analyze(ctx context.Context, req screening.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode advisory request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build advisory request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrExternalUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: advisory service returned %d: %s", errs.ErrExternalUnavailable, resp.StatusCode, msg)
	}

	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode advisory response: %v", errs.ErrExternalUnavailable, err)
	}
	return out.Analysis, nil
}
