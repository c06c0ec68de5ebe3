package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/config"
	"tg_assistant_bot/internal/logging"
)

// ClientTimeout bounds every request made through the generic Client.
const ClientTimeout = 10 * time.Second

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Response is a completed HTTP exchange with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ValidateResponse returns the body of resp, or ErrInvalidResponse when the
// response or its body is absent.
func ValidateResponse(resp *Response) ([]byte, error) {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, newError(ErrInvalidResponse, "Invalid API response", nil)
	}
	return resp.Body, nil
}

// Client is a pre-configured JSON client for API_BASE_URL. It is built once at
// startup and shared; its configuration is read-only.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	logger  *logrus.Entry
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClientHTTP replaces the default HTTP client.
func WithClientHTTP(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs a Client from the API_BASE_URL and API_KEY settings.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...ClientOption) *Client {
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{
		http:    &http.Client{Timeout: ClientTimeout},
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get requests endpoint with the given query parameters and returns the
// validated body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := c.resolve(endpoint)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.WithFields(logging.Fields{"event": "api_get_failed", "endpoint": endpoint}).WithError(err).Error("GET request failed")
		return nil, err
	}

	return ValidateResponse(resp)
}

// Post sends data as a JSON body to endpoint and returns the validated body.
func (c *Client) Post(ctx context.Context, endpoint string, data any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.resolve(endpoint), payload)
	if err != nil {
		c.logger.WithFields(logging.Fields{"event": "api_post_failed", "endpoint": endpoint}).WithError(err).Error("POST request failed")
		return nil, err
	}

	return ValidateResponse(resp)
}

func (c *Client) resolve(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logger := c.logger.WithField("request_id", requestID)
	logger.WithFields(logging.Fields{
		"event":  "api_request",
		"method": method,
		"url":    target,
	}).Debug("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		failure := classify(err, "Network error: Unable to connect to API", "API request failed")
		logger.WithField("event", "api_request_error").WithError(err).Error("API request error")
		return nil, failure
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(ErrUpstream, "API request failed", fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		statusErr := &statusError{code: resp.StatusCode}
		logger.WithFields(logging.Fields{
			"event":  "api_response_error",
			"status": resp.StatusCode,
		}).Errorf("API response error: %d - %v", resp.StatusCode, statusErr)
		return nil, newError(ErrUpstream, "API request failed", statusErr)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
