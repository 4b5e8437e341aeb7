// Package inference calls the external MRI scoring service. The service is
// opaque: it exposes detect, classify and segment over JSON.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/neuroscan-api/internal/model"
	"github.com/jwalitptl/neuroscan-api/pkg/circuitbreaker"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
)

var (
	// ErrUnavailable covers transport failures, 5xx answers and an open
	// breaker.
	ErrUnavailable = errors.New("inference service unavailable")
	// ErrRejected is a 4xx answer; the input was refused.
	ErrRejected = errors.New("inference service rejected the image")
)

const (
	StageDetect   = "detect"
	StageClassify = "classify"
	StageSegment  = "segment"

	maxResponseBytes = 32 << 20
)

type Client interface {
	Detect(ctx context.Context, imageBase64 string) (*model.DetectionResult, error)
	Classify(ctx context.Context, imageBase64 string) (*model.ClassificationResult, error)
	Segment(ctx context.Context, imageBase64, label string, confidence float64) (*model.SegmentationResult, error)
}

type Config struct {
	BaseURL             string
	Timeout             time.Duration
	BreakerMaxFailures  int
	BreakerOpenDuration time.Duration
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	cb      *circuitbreaker.CircuitBreaker
	metrics *metrics.Metrics
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config, m *metrics.Metrics) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BreakerOpenDuration <= 0 {
		cfg.BreakerOpenDuration = 30 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "inference",
			MaxRequests: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerOpenDuration,
			IsFailure: func(err error) bool {
				return err != nil && !errors.Is(err, ErrRejected) && !errors.Is(err, context.Canceled)
			},
		}),
		metrics: m,
	}
}

type imageRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type segmentRequest struct {
	ImageBase64 string  `json:"image_base64"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
}

func (c *HTTPClient) Detect(ctx context.Context, imageBase64 string) (*model.DetectionResult, error) {
	var out model.DetectionResult
	if err := c.call(ctx, StageDetect, imageRequest{ImageBase64: imageBase64}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Classify(ctx context.Context, imageBase64 string) (*model.ClassificationResult, error) {
	var out model.ClassificationResult
	if err := c.call(ctx, StageClassify, imageRequest{ImageBase64: imageBase64}, &out); err != nil {
		return nil, err
	}
	if out.Label == "" {
		return nil, fmt.Errorf("%w: classify returned no label", ErrUnavailable)
	}
	return &out, nil
}

func (c *HTTPClient) Segment(ctx context.Context, imageBase64, label string, confidence float64) (*model.SegmentationResult, error) {
	var out model.SegmentationResult
	req := segmentRequest{ImageBase64: imageBase64, Label: label, Confidence: confidence}
	if err := c.call(ctx, StageSegment, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) call(ctx context.Context, stage string, in, out interface{}) error {
	timer := prometheus.NewTimer(c.metrics.InferenceLatency.WithLabelValues(stage))
	defer timer.ObserveDuration()

	err := c.cb.Execute(func() error {
		return c.post(ctx, stage, in, out)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		c.metrics.InferenceFailures.WithLabelValues(stage).Inc()
	}
	return err
}

func (c *HTTPClient) post(ctx context.Context, stage string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", stage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+stage, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", stage, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, stage, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, stage, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: %s returned %d", ErrRejected, stage, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", ErrUnavailable, stage, err)
	}
	return nil
}
