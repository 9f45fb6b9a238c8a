package motapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/services/synthetic"
	"carprobe/internal/textutil"
)

const (
	defaultBaseURL     = "https://beta.check-mot.service.gov.uk/trade/vehicles/mot-tests"
	defaultHTTPTimeout = 15 * time.Second
	acceptHeader       = "application/json+v6"
	stageName          = "history"
)

// Config configures the MOT history client.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	// Offline forces synthetic history instead of network calls.
	Offline bool
}

// Client fetches MOT test history by registration.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a MOT history client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.APIKey == "" {
		cfg.Offline = true
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "motapi")
	return client
}

// Offline reports whether history is synthesized.
func (c *Client) Offline() bool {
	return c.cfg.Offline
}

// History returns the MOT tests for registration, newest first. An empty
// slice with a nil error is a definitive "no tests". A 404 is reported as
// ErrNotFound; service failures keep their services marker.
func (c *Client) History(ctx context.Context, registration string) ([]Test, error) {
	key := textutil.SanitizeRegistration(registration)
	if key == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "lookup", "Registration is empty", nil)
	}
	if c.cfg.Offline {
		return syntheticTests(synthetic.Build(key, synthetic.Epoch)), nil
	}
	return c.fetch(ctx, key)
}

func (c *Client) fetch(ctx context.Context, key string) ([]Test, error) {
	endpoint, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build url", "Invalid MOT endpoint", err)
	}
	query := endpoint.Query()
	query.Set("registration", key)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build request", "Invalid MOT endpoint", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, stageName, "request", "MOT request failed", err)
	}
	defer resp.Body.Close()
	logging.WithContext(ctx, c.logger).Debug("mot history answered", logging.String("registration", key), logging.Int("status", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, stageName, "read body", "MOT response unreadable", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, stageName, "lookup", "No MOT history", nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, services.Wrap(services.ErrTransient, stageName, "lookup",
			fmt.Sprintf("MOT API returned http %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, services.Wrap(services.ErrExternalService, stageName, "lookup",
			fmt.Sprintf("MOT API returned http %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	}

	var vehicles []vehicleResponse
	if err := json.Unmarshal(body, &vehicles); err != nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "decode", "Malformed MOT response", err)
	}
	return mapVehicles(vehicles), nil
}
