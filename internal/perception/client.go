package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the external perception service over HTTP JSON. The
// service receives base64 frame bytes plus the enabled model list and
// returns detections and suggested events.
type Client struct {
	BaseURL string
	Models  []string
	HTTP    *http.Client
}

// NewClient returns a client with a per-request timeout baked into its
// transport; callers additionally bound each call with a context.
func NewClient(baseURL string, models []string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		Models:  append([]string(nil), models...),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Frame      string   `json:"frame"` // base64
	Seq        uint64   `json:"seq"`
	CapturedAt string   `json:"capturedAt"`
	Models     []string `json:"models"`
}

// Analyze submits one frame for analysis.
func (c *Client) Analyze(ctx context.Context, frame *Frame) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{
		Frame:      base64.StdEncoding.EncodeToString(frame.Data),
		Seq:        frame.Seq,
		CapturedAt: frame.CapturedAt.UTC().Format(time.RFC3339Nano),
		Models:     c.Models,
	})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perception service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perception service returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	result.FrameSeq = frame.Seq
	result.LatencyMS = time.Since(start).Milliseconds()
	return &result, nil
}
