// Package subs resolves the provider-side identity behind a chat account and
// answers whether that identity holds an active paid subscription to the
// configured broadcaster.
package subs

import (
	"context"
	"errors"
	"fmt"

	"github.com/onnwee/subgate/oauth"
	"github.com/onnwee/subgate/twitchapi"
)

// TokenSource yields a live token pair for a chat identity.
type TokenSource interface {
	ValidTokens(ctx context.Context, chatID string) (*twitchapi.TokenPair, error)
}

// HelixAPI is the subset of provider resource calls the oracle needs.
type HelixAPI interface {
	GetUser(ctx context.Context, accessToken string) (*twitchapi.User, error)
	UserSubscription(ctx context.Context, accessToken, broadcasterID, userID string) (*twitchapi.Subscription, error)
}

// Oracle answers subscription questions for linked chat identities. For its
// callers "not linked" and "not subscribed" are observationally identical:
// both come back as a nil record with a nil error.
type Oracle struct {
	Tokens        TokenSource
	Helix         HelixAPI
	BroadcasterID string
}

// ResolveIdentity returns the provider user linked to chatID, or nil when the
// identity is not linked or the provider reports no user for the token. The
// not-linked case short-circuits without any network call.
func (o *Oracle) ResolveIdentity(ctx context.Context, chatID string) (*twitchapi.User, error) {
	pair, err := o.Tokens.ValidTokens(ctx, chatID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotLinked) {
			return nil, nil
		}
		return nil, err
	}
	user, err := o.Helix.GetUser(ctx, pair.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve identity for chat %s: %w", chatID, err)
	}
	return user, nil
}

// CheckSubscription reports the active subscription of the given provider user
// to the configured broadcaster, or nil when there is none (including the
// not-linked case, which makes zero network calls). Infrastructure failures
// propagate as errors so callers can distinguish outage from absence.
func (o *Oracle) CheckSubscription(ctx context.Context, chatID, providerUserID string) (*twitchapi.Subscription, error) {
	pair, err := o.Tokens.ValidTokens(ctx, chatID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotLinked) {
			return nil, nil
		}
		return nil, err
	}
	sub, err := o.Helix.UserSubscription(ctx, pair.AccessToken, o.BroadcasterID, providerUserID)
	if err != nil {
		return nil, fmt.Errorf("subscription check for chat %s: %w", chatID, err)
	}
	return sub, nil
}
