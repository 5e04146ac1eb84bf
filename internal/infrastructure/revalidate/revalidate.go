package revalidate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"paperdigest/internal/ports"
)

// Client pokes a downstream revalidation endpoint after new content lands.
// Callers treat failures as best-effort; the run never depends on it.
type Client struct {
	endpoint string
	secret   string
	client   *http.Client
}

var _ ports.Revalidator = (*Client)(nil)

// NewClient registers the endpoint and its shared secret.
func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Revalidate posts to the endpoint with the secret as a query parameter.
func (c *Client) Revalidate(ctx context.Context) error {
	if c.endpoint == "" {
		return fmt.Errorf("revalidate endpoint not configured")
	}

	parsed, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("invalid revalidate url: %w", err)
	}

	query := parsed.Query()
	if c.secret != "" {
		query.Set("secret", c.secret)
	}
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsed.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revalidate error: %s", resp.Status)
	}

	return nil
}
