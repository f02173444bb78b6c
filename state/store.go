// Package state persists in-flight login attempts. Each attempt is keyed by a
// random unguessable state token with a short TTL and is consumed atomically
// exactly once, so two callbacks racing on the same token cannot both succeed.
package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "oauth_state:"

// Login captures what the callback handler needs to finish a login attempt:
// the chat that started it and the prompt message to retract on completion.
type Login struct {
	ChatID    int64 `json:"c"`
	MessageID int   `json:"m"`
}

// Store is a Redis-backed single-use state store.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New constructs a state store. ttl <= 0 defaults to five minutes.
func New(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// Create stores a login attempt under a freshly generated state token and
// returns the token. Unused tokens expire automatically after the TTL.
func (s *Store) Create(ctx context.Context, login Login) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	st := hex.EncodeToString(b)
	payload, err := json.Marshal(login)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+st, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("persist state: %w", err)
	}
	return st, nil
}

// Consume atomically reads and deletes a state token. It returns (nil, nil)
// when the token is unknown or expired; at most one caller ever receives a
// non-nil Login for a given token.
func (s *Store) Consume(ctx context.Context, token string) (*Login, error) {
	bytes, err := s.client.GetDel(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	var login Login
	if err := json.Unmarshal(bytes, &login); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &login, nil
}

// SetMessage records the prompt message id on an existing login attempt,
// preserving its TTL. The prompt is sent after the state token is minted (the
// login URL embeds the token), so the message id arrives late. A token that
// already expired is not an error; the attempt is simply gone.
func (s *Store) SetMessage(ctx context.Context, token string, messageID int) error {
	key := keyPrefix + token
	bytes, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("load state: %w", err)
	}
	var login Login
	if err := json.Unmarshal(bytes, &login); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	login.MessageID = messageID
	payload, err := json.Marshal(login)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// Ping verifies the underlying store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
