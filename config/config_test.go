package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TWITCH_CLIENT_ID", "TWITCH_CLIENT_SECRET", "TWITCH_REDIRECT_URI", "TWITCH_SCOPES",
		"TWITCH_BROADCASTER_ID", "TWITCH_BROADCASTER_LOGIN",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_GROUP_ID",
		"DB_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"INVITE_TTL", "STATE_TTL", "GRACE_PERIOD", "SWEEP_INTERVAL",
		"LISTEN_ADDR", "BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TwitchScopes != "user:read:email user:read:subscriptions" {
		t.Errorf("TwitchScopes = %s", cfg.TwitchScopes)
	}
	if cfg.InviteTTL != 72*time.Hour {
		t.Errorf("InviteTTL = %v, want 72h", cfg.InviteTTL)
	}
	if cfg.StateTTL != 5*time.Minute {
		t.Errorf("StateTTL = %v, want 5m", cfg.StateTTL)
	}
	if cfg.GracePeriod != 72*time.Hour {
		t.Errorf("GracePeriod = %v, want 72h", cfg.GracePeriod)
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Errorf("SweepInterval = %v, want 24h", cfg.SweepInterval)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %s", cfg.RedisAddr)
	}
	if cfg.TwitchRedirectURI != "http://localhost:8080/auth/twitch/callback" {
		t.Errorf("TwitchRedirectURI = %s", cfg.TwitchRedirectURI)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_GROUP_ID", "-1001234567890")
	t.Setenv("GRACE_PERIOD", "48h")
	t.Setenv("STATE_TTL", "2m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TelegramGroupID != -1001234567890 {
		t.Errorf("TelegramGroupID = %d", cfg.TelegramGroupID)
	}
	if cfg.GracePeriod != 48*time.Hour {
		t.Errorf("GracePeriod = %v", cfg.GracePeriod)
	}
	if cfg.StateTTL != 2*time.Minute {
		t.Errorf("StateTTL = %v", cfg.StateTTL)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d", cfg.RedisDB)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad group id", "TELEGRAM_GROUP_ID", "not-a-number"},
		{"bad duration", "GRACE_PERIOD", "three days"},
		{"negative duration", "SWEEP_INTERVAL", "-1h"},
		{"bad redis db", "REDIS_DB", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() error = nil, want error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() on empty config should error")
	}

	cfg.TwitchClientID = "id"
	cfg.TwitchClientSecret = "secret"
	cfg.TwitchRedirectURI = "https://example.com/cb"
	cfg.TwitchBroadcasterID = "99"
	cfg.TelegramBotToken = "tok"
	cfg.TelegramGroupID = -100
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
