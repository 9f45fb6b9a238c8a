package dvla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/services/synthetic"
	"carprobe/internal/textutil"
)

const (
	defaultBaseURL     = "https://driver-vehicle-licensing.api.gov.uk/vehicle-enquiry/v1/vehicles"
	defaultHTTPTimeout = 15 * time.Second
	stageName          = "register"
	dateLayout         = "2006-01-02"
	monthLayout        = "2006-01"
)

// Config configures the Vehicle Enquiry Service client.
type Config struct {
	APIKey         string
	BaseURL        string
	TimeoutSeconds int
	// Offline forces synthetic records instead of network calls.
	Offline bool
}

// Client looks up register records by registration.
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

// NewClient constructs a register lookup client.
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
	client.logger = logging.NewComponentLogger(client.logger, "dvla")
	return client
}

// Offline reports whether lookups are synthesized.
func (c *Client) Offline() bool {
	return c.cfg.Offline
}

// Sanitize returns the registration form used as the lookup key.
func Sanitize(registration string) string {
	return textutil.SanitizeRegistration(registration)
}

// Lookup returns the register record for registration. Errors carry a
// services marker: ErrNotFound when the register has no such vehicle,
// ErrValidation for blank registrations and malformed replies, and
// ErrTransient or ErrExternalService when the service could not answer.
func (c *Client) Lookup(ctx context.Context, registration string) (Record, error) {
	key := Sanitize(registration)
	if key == "" {
		return Record{}, services.Wrap(services.ErrValidation, stageName, "lookup", "Registration is empty", nil)
	}
	if c.cfg.Offline {
		return syntheticRecord(synthetic.Build(key, synthetic.Epoch)), nil
	}
	record, err := c.fetch(ctx, key)
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

type enquiryRequest struct {
	RegistrationNumber string `json:"registrationNumber"`
}

type enquiryResponse struct {
	RegistrationNumber       string `json:"registrationNumber"`
	TaxStatus                string `json:"taxStatus"`
	TaxDueDate               string `json:"taxDueDate"`
	MotStatus                string `json:"motStatus"`
	MotExpiryDate            string `json:"motExpiryDate"`
	Make                     string `json:"make"`
	Model                    string `json:"model"`
	Colour                   string `json:"colour"`
	FuelType                 string `json:"fuelType"`
	YearOfManufacture        int    `json:"yearOfManufacture"`
	EngineCapacity           int    `json:"engineCapacity"`
	CO2Emissions             int    `json:"co2Emissions"`
	MonthOfFirstRegistration string `json:"monthOfFirstRegistration"`
}

func (c *Client) fetch(ctx context.Context, key string) (Record, error) {
	encoded, err := json.Marshal(enquiryRequest{RegistrationNumber: key})
	if err != nil {
		return Record{}, services.Wrap(services.ErrValidation, stageName, "encode request", "Could not encode enquiry", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return Record{}, services.Wrap(services.ErrConfiguration, stageName, "build request", "Invalid DVLA endpoint", err)
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, services.Wrap(services.ErrExternalService, stageName, "request", "DVLA request failed", err)
	}
	defer resp.Body.Close()
	logging.WithContext(ctx, c.logger).Debug("register enquiry answered", logging.String("registration", key), logging.Int("status", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, services.Wrap(services.ErrExternalService, stageName, "read body", "DVLA response unreadable", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Record{}, services.Wrap(services.ErrNotFound, stageName, "lookup", "Registration not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return Record{}, services.Wrap(services.ErrTransient, stageName, "lookup",
			fmt.Sprintf("DVLA returned http %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	case resp.StatusCode >= http.StatusMultipleChoices:
		return Record{}, services.Wrap(services.ErrExternalService, stageName, "lookup",
			fmt.Sprintf("DVLA returned http %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	}

	var payload enquiryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return Record{}, services.Wrap(services.ErrValidation, stageName, "decode", "Malformed DVLA response", err)
	}
	if strings.TrimSpace(payload.RegistrationNumber) == "" && strings.TrimSpace(payload.Make) == "" {
		return Record{}, services.Wrap(services.ErrValidation, stageName, "decode", "Empty DVLA response", nil)
	}
	record := mapResponse(payload)
	record.Payload = string(bytes.TrimSpace(body))
	if record.Registration == "" {
		record.Registration = key
	}
	return record, nil
}
