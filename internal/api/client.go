// Package api talks to the remote storefront service. The base client builds
// JSON requests and returns raw responses; interpretation of bodies belongs
// to the callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     *slog.Logger
}

func NewClient(baseURL string, log *slog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "storefront-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
		log:     log,
	}
}

// Do issues a JSON request against the API. body is marshaled when non-nil;
// bearer, when set, becomes the Authorization header. Only transport
// failures count against the circuit breaker; HTTP error statuses are
// returned to the caller untouched.
func (c *Client) Do(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var buf *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		buf = bytes.NewBuffer(payload)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return resp, nil
}

// GetJSON fetches path and decodes a 2xx response body into out.
func (c *Client) GetJSON(ctx context.Context, path, bearer string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, bearer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return DecodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
