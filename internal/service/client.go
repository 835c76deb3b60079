package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
)

const maxClientLogLines = 600

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger

	logsMu sync.Mutex
	logs   []string
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a client for the classification API rooted at baseURL.
// timeout bounds every request; zero leaves the transport default.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be absolute http(s), got %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("api base url %q has no host", baseURL)
	}

	discard := log.New("nebulalens")
	discard.SetOutput(io.Discard)

	c := &Client{
		baseURL:    strings.TrimRight(parsed.String(), "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) appendLog(line string) {
	c.logsMu.Lock()
	defer c.logsMu.Unlock()
	c.logs = append(c.logs, line)
	if len(c.logs) > maxClientLogLines {
		c.logs = c.logs[len(c.logs)-maxClientLogLines:]
	}
}

// Logs returns the most recent request lines, oldest first.
func (c *Client) Logs() string {
	c.logsMu.Lock()
	defer c.logsMu.Unlock()
	return strings.Join(c.logs, "\n")
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) (err error) {
	started := time.Now()
	status := 0
	defer func() {
		line := fmt.Sprintf("%s %s status=%d took=%s", method, path, status, time.Since(started).Round(time.Millisecond))
		if err != nil {
			line += " err=" + err.Error()
			c.logger.Warnf("%s", line)
		} else {
			c.logger.Debugf("%s", line)
		}
		c.appendLog(line)
	}()

	var body io.Reader
	if payload != nil {
		blob, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return fmt.Errorf("marshal request payload: %w", marshalErr)
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		var apiErr ExplanationResponse
		detail := strings.TrimSpace(string(blob))
		if json.Unmarshal(blob, &apiErr) == nil && strings.TrimSpace(apiErr.Error) != "" {
			detail = apiErr.Error
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &TransportError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("%s", detail)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// Health probes the API root.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/", nil, nil)
}

// Predict submits one feature vector. A 2xx body carrying "error" is returned
// alongside an *APIError so callers can still inspect it.
func (c *Client) Predict(ctx context.Context, features FeatureVector) (*PredictionResult, error) {
	var result PredictionResult
	if err := c.doJSON(ctx, http.MethodPost, "/predict", features, &result); err != nil {
		return nil, err
	}
	if msg := strings.TrimSpace(result.Error); msg != "" {
		return &result, &APIError{Path: "/predict", Message: msg}
	}
	c.logger.Infof("prediction %s agreement=%d/%d anomaly=%t",
		result.ModelAgreement.Prediction, result.ModelAgreement.Count, result.ModelAgreement.Total, result.IsAnomaly)
	return &result, nil
}

// Explain calls the endpoint for kind and returns the explanation text.
func (c *Client) Explain(ctx context.Context, kind ExplanationKind, payload any) (string, error) {
	path := kind.Path()
	if path == "" {
		return "", fmt.Errorf("unknown explanation kind %d", kind)
	}
	var response ExplanationResponse
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &response); err != nil {
		return "", err
	}
	if msg := strings.TrimSpace(response.Error); msg != "" {
		return "", &APIError{Path: path, Message: msg}
	}
	if strings.TrimSpace(response.Explanation) == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyExplanation)
	}
	return response.Explanation, nil
}
