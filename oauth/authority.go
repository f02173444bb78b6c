// Package oauth implements the token authority: the OAuth code exchange and
// the lazy validate-then-refresh lifecycle for stored per-user token pairs.
// There is no proactive expiry tracking; the provider's introspection endpoint
// is authoritative and a failed introspection triggers refresh on demand.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/onnwee/subgate/telemetry"
	"github.com/onnwee/subgate/twitchapi"
)

// ErrNotLinked reports that a chat identity has no stored token pair. It is
// the canonical "never authenticated" outcome and is returned without any
// network call.
var ErrNotLinked = errors.New("chat identity has no linked credentials")

// ErrInconsistent reports that introspection succeeded but did not identify a
// subject. This is an unrecoverable provider inconsistency and is never
// downgraded to an expired-token refresh, since quietly treating it as
// "unsubscribed" would cause incorrect bans.
var ErrInconsistent = errors.New("token introspection succeeded without a subject identity")

// CredentialStore is the durable token-pair store keyed by chat identity.
type CredentialStore interface {
	GetCredentials(ctx context.Context, chatID string) (access, refresh string, err error)
	UpsertCredentials(ctx context.Context, chatID, access, refresh string) error
}

// Introspector reports whether an access token is currently live.
type Introspector interface {
	Validate(ctx context.Context, accessToken string) (*twitchapi.Validation, error)
}

// ExchangeFunc performs the authorization-code grant.
type ExchangeFunc func(ctx context.Context, code string) (*twitchapi.TokenPair, error)

// RefreshFunc performs the refresh-token grant.
type RefreshFunc func(ctx context.Context, refreshToken string) (*twitchapi.TokenPair, error)

// Authority owns the credential lifecycle for linked chat identities.
type Authority struct {
	Store      CredentialStore
	Introspect Introspector
	Exchange   ExchangeFunc
	Refresh    RefreshFunc
}

// New wires an Authority to the Twitch endpoints described by cfg.
func New(store CredentialStore, client *twitchapi.Client, cfg *oauth2.Config) *Authority {
	return &Authority{
		Store:      store,
		Introspect: client,
		Exchange: func(ctx context.Context, code string) (*twitchapi.TokenPair, error) {
			return twitchapi.ExchangeAuthCode(ctx, cfg, code)
		},
		Refresh: func(ctx context.Context, refreshToken string) (*twitchapi.TokenPair, error) {
			return twitchapi.RefreshTokens(ctx, cfg, refreshToken)
		},
	}
}

// Link exchanges an authorization code and persists the resulting pair for
// chatID, creating the credential record that marks the identity as linked.
func (a *Authority) Link(ctx context.Context, chatID, code string) (*twitchapi.TokenPair, error) {
	pair, err := a.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := a.Store.UpsertCredentials(ctx, chatID, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}
	return pair, nil
}

// ValidTokens returns a live token pair for chatID, refreshing and persisting
// transparently when the stored access token has expired.
//
// The stored pair is returned unchanged when introspection confirms it is
// live and identifies its subject. A live token without a subject fails with
// ErrInconsistent. An introspection miss (any non-success status) triggers
// exactly one refresh grant; the new pair overwrites the stored one before it
// is returned. Transport failures propagate without mutating the store.
func (a *Authority) ValidTokens(ctx context.Context, chatID string) (*twitchapi.TokenPair, error) {
	access, refresh, err := a.Store.GetCredentials(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if access == "" || refresh == "" {
		return nil, ErrNotLinked
	}

	v, err := a.Introspect.Validate(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("token introspection: %w", err)
	}
	if v != nil {
		if v.UserID == "" {
			return nil, fmt.Errorf("chat %s: %w", chatID, ErrInconsistent)
		}
		return &twitchapi.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
	}

	// Access token no longer valid; mint a new pair and persist it.
	pair, err := a.Refresh(ctx, refresh)
	if err != nil {
		return nil, fmt.Errorf("refresh tokens: %w", err)
	}
	if err := a.Store.UpsertCredentials(ctx, chatID, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("persist refreshed credentials: %w", err)
	}
	telemetry.IncTokenRefresh()
	slog.Debug("token pair refreshed", slog.String("chat_id", chatID))
	return pair, nil
}
