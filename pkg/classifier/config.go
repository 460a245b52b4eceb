package classifier

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Defaults for the emotion inference service.
const (
	DefaultEndpoint      = "http://localhost:8000/predict"
	DefaultModelName     = "VGG19"
	DefaultFileName      = "webcam-capture.jpg"
	DefaultMinConfidence = 29.0
	DefaultTimeout       = 25 * time.Second
)

// Config holds client configuration.
type Config struct {
	// Endpoint is the full URL of the classification route.
	Endpoint string

	// ModelName is sent as the model_name form field.
	ModelName string

	// FileName is the filename of the uploaded file part.
	FileName string

	// MinConfidence is the admission threshold in percent. Readings below
	// it carry no information and are dropped.
	MinConfidence float64

	// Timeout bounds a single request.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Logger for request diagnostics.
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithEndpoint sets the classification URL.
func WithEndpoint(url string) Option {
	return func(c *Config) { c.Endpoint = url }
}

// WithModelName sets the model_name form field.
func WithModelName(name string) Option {
	return func(c *Config) { c.ModelName = name }
}

// WithFileName sets the uploaded file name.
func WithFileName(name string) Option {
	return func(c *Config) { c.FileName = name }
}

// WithMinConfidence sets the admission threshold (percent).
func WithMinConfidence(v float64) Option {
	return func(c *Config) { c.MinConfidence = v }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the client defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:      DefaultEndpoint,
		ModelName:     DefaultModelName,
		FileName:      DefaultFileName,
		MinConfidence: DefaultMinConfidence,
		Timeout:       DefaultTimeout,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrNoEndpoint
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		return fmt.Errorf("classifier: min confidence %.2f out of [0,100]", c.MinConfidence)
	}
	if c.Timeout <= 0 && c.HTTPClient == nil {
		return fmt.Errorf("classifier: timeout must be positive")
	}
	return nil
}
