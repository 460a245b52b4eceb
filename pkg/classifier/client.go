// Package classifier uploads webcam frames to a remote facial emotion
// recognition service and returns the detected label and confidence.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-soundscape/internal/httpc"
)

// Classifier classifies a JPEG frame.
type Classifier interface {
	Classify(ctx context.Context, jpeg []byte) (*Result, error)
}

// Result is one classification.
type Result struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"` // percent, 0..100
	Timestamp  time.Time `json:"timestamp"`
	LatencyMs  int64     `json:"latency_ms"`
}

// Admitted reports whether r passes the threshold.
func (r *Result) Admitted(min float64) bool {
	return r != nil && r.Confidence >= min
}

// Client talks to the inference service over HTTP.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new classifier client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config: cfg,
		http:   hc,
		logger: logger.With("component", "classifier.client"),
	}, nil
}

// MinConfidence returns the admission threshold.
func (c *Client) MinConfidence() float64 {
	return c.config.MinConfidence
}

// Classify uploads the frame and parses the reading. A reading below the
// threshold is returned together with ErrLowConfidence.
func (c *Client) Classify(ctx context.Context, jpeg []byte) (*Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyImage
	}
	start := time.Now()

	body, contentType, err := c.buildForm(jpeg)
	if err != nil {
		return nil, fmt.Errorf("classifier: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if httpc.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	result, err := decodeResult(resp.Body)
	if err != nil {
		return nil, err
	}
	result.Timestamp = time.Now()
	result.LatencyMs = time.Since(start).Milliseconds()

	if !result.Admitted(c.config.MinConfidence) {
		c.logger.Info("low confidence reading dropped",
			"label", result.Label,
			"confidence", result.Confidence,
			"threshold", c.config.MinConfidence,
		)
		return result, ErrLowConfidence
	}

	c.logger.Debug("frame classified",
		"label", result.Label,
		"confidence", result.Confidence,
		"latency_ms", result.LatencyMs,
	)
	return result, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// buildForm writes the multipart body: the image under "file" and the
// model under "model_name".
func (c *Client) buildForm(jpeg []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, c.config.FileName))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpeg); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model_name", c.config.ModelName); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// predictResponse is the service payload, e.g.
// {"emotion": "happy", "confidence": "87.65%"}.
type predictResponse struct {
	Emotion    string          `json:"emotion"`
	Confidence json.RawMessage `json:"confidence"`
}

func decodeResult(r io.Reader) (*Result, error) {
	var payload predictResponse
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	label := strings.TrimSpace(payload.Emotion)
	if label == "" {
		return nil, fmt.Errorf("%w: missing emotion", ErrInvalidResponse)
	}
	if len(payload.Confidence) == 0 || string(payload.Confidence) == "null" {
		return nil, fmt.Errorf("%w: missing confidence", ErrInvalidResponse)
	}

	var confidence float64
	var text string
	if err := json.Unmarshal(payload.Confidence, &text); err == nil {
		v, err := ParseConfidence(text)
		if err != nil {
			return nil, err
		}
		confidence = v
	} else if err := json.Unmarshal(payload.Confidence, &confidence); err != nil {
		return nil, fmt.Errorf("%w: confidence %s", ErrInvalidResponse, payload.Confidence)
	}
	if confidence < 0 || confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidResponse, confidence)
	}

	return &Result{Label: label, Confidence: confidence}, nil
}

// ParseConfidence parses a percentage such as "87.65%" or "87.65".
func ParseConfidence(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, fmt.Errorf("%w: empty confidence", ErrInvalidResponse)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: confidence %q", ErrInvalidResponse, s)
	}
	return v, nil
}
