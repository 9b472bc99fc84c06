package deepface

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

	"github.com/cenkalti/backoff/v4"
)

// Config holds the configuration for the DeepFace client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Model      string
	Detector   string
	RetryCount int
	// RetryInterval is the first backoff step; it doubles up to maxBackoff.
	RetryInterval time.Duration
	// Normalize scales embeddings to unit length.
	Normalize bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:5000",
		Timeout:       30 * time.Second,
		Model:         "Facenet512",
		Detector:      "retinaface",
		RetryCount:    3,
		RetryInterval: time.Second,
		Normalize:     true,
	}
}

// Client is the HTTP client for DeepFace API
type Client struct {
	httpClient *http.Client
	config     Config
}

// NewClient creates a new DeepFace client
func NewClient(config Config) *Client {
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
}

// Represent calls POST /represent. detector "skip" embeds the whole image.
func (c *Client) Represent(ctx context.Context, image []byte, detector string, enforceDetection bool) (*RepresentResponse, error) {
	req := RepresentRequest{
		Img:              dataURI(image),
		Model:            c.config.Model,
		Detector:         detector,
		EnforceDetection: enforceDetection,
		Align:            true,
	}

	var resp RepresentResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, "/represent", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// dataURI encodes image the way DeepFace's loader expects base64 input.
func dataURI(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// maxBackoff is the maximum backoff duration for retries
const maxBackoff = 30 * time.Second

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0

	retries := c.config.RetryCount
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// doRequestWithRetry retries server errors with exponential backoff
// (1s, 2s, 4s... by default). 4xx answers and context errors are final.
func (c *Client) doRequestWithRetry(ctx context.Context, method, path string, body, result any) error {
	op := func() error {
		err := c.doRequest(ctx, method, path, body, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.IsClientError() {
			return backoff.Permanent(err)
		}
		if errors.Is(err, ErrInvalidResponse) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, c.newBackOff(ctx))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var statusErr *StatusError
	if (errors.As(err, &statusErr) && statusErr.IsClientError()) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDeepFaceUnavailable, err)
}

// doRequest executes a single HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	return nil
}
