// Package delivery sends a mapped lead to the downstream customer over
// HTTP and classifies the result into a retriable/non-retriable outcome,
// guarded by a circuit breaker over the single fixed endpoint.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outcome is a tagged union: exactly one of Success or Failure is set,
// mirroring the classification table in the gateway's delivery contract.
type Outcome struct {
	Success *SuccessOutcome
	Failure *FailureOutcome
}

type SuccessOutcome struct {
	StatusCode     int
	Body           string
	ResponseTimeMs int
}

type FailureOutcome struct {
	StatusCode     *int // nil for transport-level failures (no response received)
	Body           string
	ResponseTimeMs int
	Retriable      bool
	Message        string
}

// Config carries the static downstream contract: the endpoint and the
// bearer token the customer expects on every request.
type Config struct {
	EndpointURL string
	BearerToken string
	Timeout     time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Deliver POSTs payload as JSON to the configured endpoint and classifies
// the result. A 2xx response is a Success; anything else, including a
// transport error, is a Failure with Retriable set according to the
// gateway's error-handling table (5xx, 429 and transport errors are
// retriable; other 4xx responses are not).
func (c *Client) Deliver(ctx context.Context, payload map[string]any) Outcome {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{Failure: &FailureOutcome{
			Retriable: false,
			Message:   fmt.Sprintf("encoding payload: %v", err),
		}}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return Outcome{Failure: &FailureOutcome{
			Retriable: false,
			Message:   fmt.Sprintf("building request: %v", err),
		}}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	elapsed := int(time.Since(start).Milliseconds())
	if err != nil {
		return Outcome{Failure: &FailureOutcome{
			ResponseTimeMs: elapsed,
			Retriable:      true, // transport-level errors (timeout, connection refused) are retriable
			Message:        fmt.Sprintf("request failed: %v", err),
		}}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Outcome{Success: &SuccessOutcome{
			StatusCode:     resp.StatusCode,
			Body:           string(respBody),
			ResponseTimeMs: elapsed,
		}}
	}

	status := resp.StatusCode
	return Outcome{Failure: &FailureOutcome{
		StatusCode:     &status,
		Body:           string(respBody),
		ResponseTimeMs: elapsed,
		Retriable:      resp.StatusCode >= 500 || resp.StatusCode == 429,
		Message:        fmt.Sprintf("downstream responded %d", resp.StatusCode),
	}}
}
