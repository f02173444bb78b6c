package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// Client provides the bearer-authenticated provider calls that operate on a
// stored user token: token introspection and the Helix lookups.
type Client struct {
	ClientID   string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Validation is the introspection result for a live access token.
type Validation struct {
	ClientID  string   `json:"client_id"`
	Login     string   `json:"login"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	ExpiresIn int      `json:"expires_in"`
}

// Validate calls the provider's token-introspection endpoint. The endpoint is
// authoritative: a 200 means the token is live and identifies its subject,
// any other status means the token is no longer valid and is reported as
// (nil, nil). Only transport and decode failures return an error.
func (c *Client) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authBaseURL+"/oauth2/validate", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if !acquireCallSlot(ctx) {
		return nil, ctx.Err()
	}
	defer releaseCallSlot()
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return &v, nil
}
