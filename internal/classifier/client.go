// Package classifier is the HTTP client for the anomaly-detection service that
// scores how long a request waited before a decision.
package classifier

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

	"booking/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 3 * time.Second

// predictionAnomaly is the label the service returns for outliers.
const predictionAnomaly = -1

// ErrMalformedResponse is returned when the service answers without a prediction.
var ErrMalformedResponse = errors.New("classifier: malformed response")

// Result is the verdict for one elapsed-time sample.
type Result struct {
	IsAnomaly bool
	Score     float64
}

type detectRequest struct {
	Times []float64 `json:"times"`
}

type detectResponse struct {
	Predictions []int     `json:"predictions"`
	Scores      []float64 `json:"scores"`
}

// Client calls POST {base}/detect-anomaly.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client. A non-positive timeout falls back to DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Classify asks the service whether elapsedSeconds is anomalous. Any transport
// error, timeout, non-200 status or undecodable body is returned as an error;
// callers decide whether that is fatal.
func (c *Client) Classify(ctx context.Context, elapsedSeconds float64) (res Result, err error) {
	span, ctx := observability.NewClientSpan(ctx, "classifier.detect_anomaly",
		attribute.Float64("classifier.elapsed_seconds", elapsedSeconds),
	)
	start := time.Now()
	defer func() {
		observability.ClassifierLatency.Observe(time.Since(start).Seconds())
		span.SetError(err)
		span.End()
	}()

	body, err := json.Marshal(detectRequest{Times: []float64{elapsedSeconds}})
	if err != nil {
		return Result{}, fmt.Errorf("classifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect-anomaly", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.ClassifierFailures.WithLabelValues(failureReason(ctx, err)).Inc()
		return Result{}, fmt.Errorf("classifier: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		observability.ClassifierFailures.WithLabelValues("status").Inc()
		return Result{}, fmt.Errorf("classifier: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.ClassifierFailures.WithLabelValues("decode").Inc()
		return Result{}, fmt.Errorf("classifier: decode response: %w", err)
	}
	if len(out.Predictions) == 0 {
		observability.ClassifierFailures.WithLabelValues("decode").Inc()
		return Result{}, ErrMalformedResponse
	}

	res.IsAnomaly = out.Predictions[0] == predictionAnomaly
	if len(out.Scores) > 0 {
		res.Score = out.Scores[0]
	}
	span.AddAttributes(
		attribute.Bool("classifier.anomaly", res.IsAnomaly),
		attribute.Float64("classifier.score", res.Score),
	)
	return res, nil
}

func failureReason(ctx context.Context, err error) string {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}
	return "transport"
}
