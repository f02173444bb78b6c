package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// User is the provider-side identity a chat account is linked to.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profile_image_url"`
}

// Subscription describes an active paid subscription to a broadcaster.
type Subscription struct {
	BroadcasterID    string `json:"broadcaster_id"`
	BroadcasterLogin string `json:"broadcaster_login"`
	BroadcasterName  string `json:"broadcaster_name"`
	GifterName       string `json:"gifter_name"`
	IsGift           bool   `json:"is_gift"`
	Tier             string `json:"tier"`
}

// GetUser resolves the identity that owns the given access token. It returns
// (nil, nil) when the provider reports zero users for the token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixBaseURL+"/users", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", c.ClientID)
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
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch users lookup failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode users response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}

// UserSubscription checks whether userID holds an active paid subscription to
// broadcasterID. The provider documents 401 and 404 as "no active subscription
// or no permission to view it", which this system treats as plain absence:
// those statuses return (nil, nil). Any other non-2xx status is an
// infrastructure failure and propagates as an error, so the sweep can tell
// outages apart from lapsed subscriptions.
func (c *Client) UserSubscription(ctx context.Context, accessToken, broadcasterID, userID string) (*Subscription, error) {
	if broadcasterID == "" || userID == "" {
		return nil, fmt.Errorf("missing broadcasterID or userID")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixBaseURL+"/subscriptions/user", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("broadcaster_id", broadcasterID)
	q.Set("user_id", userID)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", c.ClientID)
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
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch subscription lookup failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []Subscription `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode subscription response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}
