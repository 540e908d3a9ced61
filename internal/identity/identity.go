// Package identity normalizes caller-supplied identifiers to canonical party
// identifiers before they are compared or persisted.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"encoding/json"
)

type Resolver interface {
	Resolve(ctx context.Context, rawID string) (string, error)
}

// Client resolves identities against the identity service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) Resolve(ctx context.Context, rawID string) (string, error) {
	u := fmt.Sprintf("%s/identities/%s", c.BaseURL, url.PathEscape(rawID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("identity service returned %d", resp.StatusCode)
	}
	var out struct {
		PartyID string `json:"party_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.PartyID == "" {
		return "", fmt.Errorf("identity service returned empty party_id for %q", rawID)
	}
	return out.PartyID, nil
}

// Passthrough treats trimmed raw identifiers as already canonical. Used in
// tests and in dev mode.
type Passthrough struct{}

func (Passthrough) Resolve(ctx context.Context, rawID string) (string, error) {
	return strings.TrimSpace(rawID), nil
}
