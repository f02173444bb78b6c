// Command subgate is the main entrypoint for the subscription gate service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and Redis and runs idempotent migrations.
//   - Serves the OAuth callback, the Telegram webhook, health probes, and metrics.
//   - Runs the daily reconciliation sweep over all linked identities.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/subgate/config"
	"github.com/onnwee/subgate/db"
	"github.com/onnwee/subgate/oauth"
	"github.com/onnwee/subgate/server"
	"github.com/onnwee/subgate/state"
	"github.com/onnwee/subgate/subs"
	"github.com/onnwee/subgate/sweep"
	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/telemetry"
	"github.com/onnwee/subgate/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	shutdownTracing, err := telemetry.InitTracing("subgate", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Postgres
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.PingContext(pingCtx); err != nil {
		cancelPing()
		slog.Error("postgres unreachable", slog.Any("err", err))
		os.Exit(1)
	}
	cancelPing()

	// Versioned migrations first; embedded SQL as fallback for deployments
	// without the migrations directory on disk.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting embedded SQL fallback",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Redis (single-use login states)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancelPing = context.WithTimeout(context.Background(), 10*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		slog.Error("redis unreachable", slog.Any("err", err))
		os.Exit(1)
	}
	cancelPing()

	store := db.NewStore(database)
	states := state.New(redisClient, cfg.StateTTL)
	oauthCfg := twitchapi.OAuthConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI, cfg.TwitchScopes)
	twitchClient := &twitchapi.Client{ClientID: cfg.TwitchClientID}
	authority := oauth.New(store, twitchClient, oauthCfg)
	oracle := &subs.Oracle{Tokens: authority, Helix: twitchClient, BroadcasterID: cfg.TwitchBroadcasterID}
	tg := &telegram.Client{Token: cfg.TelegramBotToken}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := &sweep.Sweeper{
		Registry:         store,
		NewPager:         func() sweep.Pager { return store.ChatIDs(0) },
		Oracle:           oracle,
		Group:            tg,
		GroupID:          cfg.TelegramGroupID,
		BroadcasterLogin: cfg.TwitchBroadcasterLogin,
		Grace:            cfg.GracePeriod,
		Interval:         cfg.SweepInterval,
	}
	go sweeper.Start(ctx)

	handlers := server.NewHandlers(store, states, authority, oracle, tg, cfg, oauthCfg)
	go func() {
		if err := server.Start(ctx, cfg.ListenAddr, server.NewMux(handlers)); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// setupLogging configures level + format. Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
