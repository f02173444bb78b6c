// Command sweep runs a single reconciliation cycle and exits. It is meant for
// cron-style scheduling or operator-triggered reruns; the long-running service
// binary runs the same cycle on its own timer.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/subgate/config"
	"github.com/onnwee/subgate/db"
	"github.com/onnwee/subgate/oauth"
	"github.com/onnwee/subgate/subs"
	"github.com/onnwee/subgate/sweep"
	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/twitchapi"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		slog.Error("postgres unreachable", slog.Any("err", err))
		os.Exit(1)
	}

	// Redis is not needed for the sweep itself but keeps wiring uniform with
	// the service binary; a missing address simply skips the check.
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rc.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable", slog.Any("err", err))
		}
		_ = rc.Close()
	}

	store := db.NewStore(database)
	oauthCfg := twitchapi.OAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)
	twitchClient := &twitchapi.Client{ClientID: cfg.TwitchClientID}
	authority := oauth.New(store, twitchClient, oauthCfg)
	oracle := &subs.Oracle{Tokens: authority, Helix: twitchClient, BroadcasterID: cfg.TwitchBroadcasterID}
	tg := &telegram.Client{Token: cfg.TelegramBotToken}

	sweeper := &sweep.Sweeper{
		Registry:         store,
		NewPager:         func() sweep.Pager { return store.ChatIDs(0) },
		Oracle:           oracle,
		Group:            tg,
		GroupID:          cfg.TelegramGroupID,
		BroadcasterLogin: cfg.TwitchBroadcasterLogin,
		Grace:            cfg.GracePeriod,
	}

	report, err := sweeper.RunOnce(ctx)
	if err != nil {
		slog.Error("sweep failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("sweep done", slog.Int("banned", len(report.Banned)), slog.Int("warned", len(report.Warned)))
}
