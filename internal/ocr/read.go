package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const readAnalyzePath = "/vision/v3.2/read/analyze"

const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
	statusError     = "error"
)

// ReadConfig carries the connection settings for an Azure Read v3.2
// compatible service. Credentials live in the value and are scoped to the
// client built from it.
type ReadConfig struct {
	// Endpoint is the service base URL, without the /vision path.
	Endpoint string
	// Key is sent as the Ocp-Apim-Subscription-Key header.
	Key string
	// PollInterval is the wait between result polls. Defaults to one second.
	PollInterval time.Duration
	// MaxPolls bounds how many polls Recognize makes. Defaults to sixty.
	MaxPolls int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// ReadClient implements the Engine interface against an Azure Read v3.2
// compatible OCR service. Analysis is asynchronous on the service side:
// Submit hands the image over, Poll checks on it, and Recognize drives the
// two until the text is ready.
type ReadClient struct {
	endpoint     string
	key          string
	pollInterval time.Duration
	maxPolls     int
	client       *http.Client
}

// NewReadClient creates a client for the configured Read service.
func NewReadClient(cfg ReadConfig) *ReadClient {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 60
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &ReadClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		client:       cfg.HTTPClient,
	}
}

// ReadResult is the operation status document, carrying the recognized text
// once the status reaches succeeded.
type ReadResult struct {
	Status        string        `json:"status"`
	AnalyzeResult analyzeResult `json:"analyzeResult"`
}

type analyzeResult struct {
	ReadResults []readResult `json:"readResults"`
}

type readResult struct {
	Page  int        `json:"page"`
	Lines []readLine `json:"lines"`
}

type readLine struct {
	Text        string    `json:"text"`
	BoundingBox []float64 `json:"boundingBox"`
}

// Lines flattens the recognized text in reading order, trimming whitespace
// and dropping empty lines.
func (r *ReadResult) Lines() []TextLine {
	var lines []TextLine
	for _, page := range r.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			lines = append(lines, TextLine{Text: text, BoundingBox: line.BoundingBox})
		}
	}
	return lines
}

// Submit sends the image for analysis and returns the operation URL to poll
// for the result.
func (c *ReadClient) Submit(ctx context.Context, imageData []byte) (string, error) {
	url := c.endpoint + readAnalyzePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("creating analyze request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling read service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("read service error (status %d): %s", resp.StatusCode, string(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", ErrNoOperationLocation
	}
	return operationURL, nil
}

// Poll fetches the current state of a submitted operation.
func (c *ReadClient) Poll(ctx context.Context, operationURL string) (*ReadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating poll request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling read service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("read service poll error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ReadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return &result, nil
}

// Recognize submits the image and polls until the service finishes. Poll
// errors are logged and retried; a reported failure or an exhausted poll
// budget ends the wait.
func (c *ReadClient) Recognize(ctx context.Context, imageData []byte) ([]TextLine, error) {
	operationURL, err := c.Submit(ctx, imageData)
	if err != nil {
		return nil, err
	}

	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		result, err := c.Poll(ctx, operationURL)
		if err != nil {
			slog.Warn("Read poll failed, retrying", "error", err)
			continue
		}

		switch result.Status {
		case statusSucceeded:
			return result.Lines(), nil
		case statusFailed, statusError:
			return nil, ErrJobFailed
		}
	}
	return nil, ErrTimeout
}

// Close closes the client (no-op for HTTP client)
func (c *ReadClient) Close() error {
	return nil
}
