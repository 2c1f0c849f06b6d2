package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orgpulse/maturity-meter/internal/resilience"
)

// apiClient is the HTTP plumbing shared by all tool adapters: bearer
// auth, retry with backoff, and a per-tool circuit breaker. Adapters are
// read-only against their upstreams, which is what makes them safe to
// abandon after a collector timeout.
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

func newAPIClient(baseURL, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 3,
		}),
	}
}

// getJSON fetches baseURL+path and decodes the JSON body into out.
func (c *apiClient) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.breaker.Call(func() error {
		resp, err := resilience.HTTPRetryWithPolicy(ctx, resilience.StandardRetryPolicy, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			return c.client.Do(req)
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("upstream API error: status %d, body: %s", resp.StatusCode, string(body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode upstream response: %w", err)
		}
		return nil
	})
}

// Breaker exposes the circuit breaker for registry wiring.
func (c *apiClient) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// clampMaturity bounds a computed value to the 0..5 maturity scale.
func clampMaturity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 5 {
		return 5
	}
	return v
}

// ratioMaturity maps a 0..1 ratio onto the 0..5 maturity scale.
func ratioMaturity(ratio float64) float64 {
	return clampMaturity(ratio * 5)
}
