// Package api adapts third-party HTTP APIs (weather, quotes, crypto prices)
// into plain result values or classified errors.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/config"
	"tg_assistant_bot/internal/logging"
)

// ProviderTimeout bounds every call to the public weather, quote and price providers.
const ProviderTimeout = 8 * time.Second

var errMalformed = errors.New("malformed body")

// Endpoints holds the provider base URLs, without trailing slashes.
type Endpoints struct {
	Weather string
	Quote   string
	Crypto  string
}

// EndpointsFromConfig picks the provider URLs out of the runtime configuration.
func EndpointsFromConfig(cfg config.Config) Endpoints {
	return Endpoints{
		Weather: cfg.WeatherAPIURL,
		Quote:   cfg.QuoteAPIURL,
		Crypto:  cfg.CryptoAPIURL,
	}
}

// Service performs single-shot lookups against the public providers. It holds
// no per-call state and is safe for concurrent use.
type Service struct {
	http      *http.Client
	endpoints Endpoints
	logger    *logrus.Entry
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(s *Service) {
		if client != nil {
			s.http = client
		}
	}
}

// NewService constructs a Service for the given provider endpoints.
func NewService(endpoints Endpoints, logger *logrus.Entry, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	s := &Service{
		http:      &http.Client{Timeout: ProviderTimeout},
		endpoints: endpoints,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// getJSON issues a GET under ProviderTimeout and decodes a 2xx JSON body into out.
func (s *Service) getJSON(ctx context.Context, rawURL string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	s.logger.WithFields(logging.Fields{
		"event":  "api_request",
		"method": req.Method,
		"url":    rawURL,
	}).Debug("provider request")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	return nil
}

// classify maps a transport or decode failure onto the error taxonomy.
func classify(err error, networkMessage, failureMessage string) *Error {
	switch {
	case isConnectFailure(err):
		return newError(ErrNetwork, networkMessage, err)
	case errors.Is(err, errMalformed):
		return newError(ErrInvalidResponse, failureMessage, err)
	default:
		return newError(ErrUpstream, failureMessage, err)
	}
}
