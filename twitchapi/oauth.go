// Package twitchapi contains helpers to interact with the Twitch identity
// provider (OAuth code/refresh grants, token introspection) and the Helix
// resource API for user and subscription lookup, using per-user tokens.
package twitchapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

const (
	authBaseURL  = "https://id.twitch.tv"
	helixBaseURL = "https://api.twitch.tv/helix"
)

// TokenPair is the stored unit of a linked identity: the bearer token for the
// provider API and the long-lived token used to mint a new one.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// OAuthConfig builds the oauth2 client configuration for the Twitch endpoints.
func OAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(strings.ReplaceAll(scopes, ",", " ")),
		Endpoint: oauth2.Endpoint{
			AuthURL:  authBaseURL + "/oauth2/authorize",
			TokenURL: authBaseURL + "/oauth2/token",
		},
	}
}

// BuildAuthorizeURL constructs the user authorization URL for the OAuth code grant.
func BuildAuthorizeURL(cfg *oauth2.Config, state string) (string, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	if state == "" {
		return "", errors.New("missing state")
	}
	return cfg.AuthCodeURL(state), nil
}

// ExchangeAuthCode exchanges an authorization code for access & refresh tokens.
func ExchangeAuthCode(ctx context.Context, cfg *oauth2.Config, code string) (*TokenPair, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("twitch auth code exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("empty access_token in twitch response")
	}
	return &TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// RefreshTokens exchanges a refresh token for a new token pair. Twitch rotates
// refresh tokens, so callers must persist the returned pair; when the provider
// omits the rotated refresh token the old one is carried forward.
func RefreshTokens(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errors.New("missing refresh token")
	}
	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("twitch refresh failed: %w", err)
	}
	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	return &TokenPair{AccessToken: tok.AccessToken, RefreshToken: newRefresh}, nil
}
