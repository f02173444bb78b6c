package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ttl), mr
}

func TestStore_CreateConsume(t *testing.T) {
	s, _ := testStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, Login{ChatID: 100, MessageID: 7})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if token == "" {
		t.Fatal("Create() returned empty token")
	}

	login, err := s.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if login == nil || login.ChatID != 100 || login.MessageID != 7 {
		t.Errorf("Consume() = %+v", login)
	}
}

func TestStore_ConsumeIsSingleUse(t *testing.T) {
	s, _ := testStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, Login{ChatID: 100})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, err := s.Consume(ctx, token)
	if err != nil || first == nil {
		t.Fatalf("first Consume() = %+v, %v", first, err)
	}
	second, err := s.Consume(ctx, token)
	if err != nil {
		t.Fatalf("second Consume() error = %v", err)
	}
	if second != nil {
		t.Errorf("second Consume() = %+v, want nil: token must be single-use", second)
	}
}

func TestStore_ConsumeUnknownToken(t *testing.T) {
	s, _ := testStore(t, time.Minute)
	login, err := s.Consume(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if login != nil {
		t.Errorf("Consume() = %+v, want nil for unknown token", login)
	}
}

func TestStore_TokenExpires(t *testing.T) {
	s, mr := testStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, Login{ChatID: 100})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(61 * time.Second)

	login, err := s.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if login != nil {
		t.Errorf("Consume() = %+v, want nil after TTL", login)
	}
}

func TestStore_SetMessagePreservesTTL(t *testing.T) {
	s, mr := testStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, Login{ChatID: 100})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(30 * time.Second)
	if err := s.SetMessage(ctx, token, 42); err != nil {
		t.Fatalf("SetMessage() error = %v", err)
	}

	// the original TTL keeps running; half the window remains
	mr.FastForward(31 * time.Second)
	login, err := s.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if login != nil {
		t.Errorf("Consume() = %+v, want nil: SetMessage must not extend TTL", login)
	}
}

func TestStore_SetMessageOnExpiredToken(t *testing.T) {
	s, _ := testStore(t, time.Minute)
	if err := s.SetMessage(context.Background(), "gone", 42); err != nil {
		t.Fatalf("SetMessage() on expired token error = %v, want nil", err)
	}
}

func TestStore_SetMessageRoundTrip(t *testing.T) {
	s, _ := testStore(t, time.Minute)
	ctx := context.Background()

	token, err := s.Create(ctx, Login{ChatID: 100})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.SetMessage(ctx, token, 42); err != nil {
		t.Fatalf("SetMessage() error = %v", err)
	}
	login, err := s.Consume(ctx, token)
	if err != nil || login == nil {
		t.Fatalf("Consume() = %+v, %v", login, err)
	}
	if login.MessageID != 42 {
		t.Errorf("MessageID = %d, want 42", login.MessageID)
	}
}
