// Package client is a Go client for the IntegrityOS HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kiranshivaraju/integrityos/internal/classifier"
	"github.com/kiranshivaraju/integrityos/internal/dashboard"
	"github.com/kiranshivaraju/integrityos/pkg/models"
)

// Sentinel errors for transport failures.
var (
	ErrUnreachable = errors.New("integrityos api unreachable")
	ErrTimeout     = errors.New("integrityos api timeout")
)

// APIError is an error envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Health is the body of a successful health check.
type Health struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// TrainResult reports a training or bootstrap run.
type TrainResult struct {
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	Accuracy        float64   `json:"accuracy"`
	TrainingSamples int       `json:"training_samples"`
	Timestamp       time.Time `json:"timestamp"`
}

// HTTPClient calls the API over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the server at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Health checks server dependencies. A degraded server yields an *APIError with
// code DEGRADED whose details name the failing services.
func (c *HTTPClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Predict classifies one feature vector. Absent features take server defaults.
func (c *HTTPClient) Predict(ctx context.Context, in models.FeatureInput) (*classifier.Prediction, error) {
	var p classifier.Prediction
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Train retrains the model on the labeled inspections stored on the server.
func (c *HTTPClient) Train(ctx context.Context) (*TrainResult, error) {
	var r TrainResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict/train", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Bootstrap rebuilds the model from synthetic data.
func (c *HTTPClient) Bootstrap(ctx context.Context) (*TrainResult, error) {
	var r TrainResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict/bootstrap", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ModelInfo describes the active model.
func (c *HTTPClient) ModelInfo(ctx context.Context) (*classifier.ModelInfo, error) {
	var info classifier.ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/predict/model", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Dashboard fetches the main dashboard.
func (c *HTTPClient) Dashboard(ctx context.Context) (*dashboard.Overview, error) {
	var ov dashboard.Overview
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard", nil, &ov); err != nil {
		return nil, err
	}
	return &ov, nil
}

// Inspections lists inspections matching query, for example asset_id=3&labeled=true.
func (c *HTTPClient) Inspections(ctx context.Context, query url.Values) ([]models.Inspection, error) {
	path := "/api/v1/inspections"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []models.Inspection
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	env := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || env.Error.Code == "" {
		apiErr.Code = "UNKNOWN"
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Code = env.Error.Code
	apiErr.Message = env.Error.Message
	apiErr.Details = env.Error.Details
	return apiErr
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
