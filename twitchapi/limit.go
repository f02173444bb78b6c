package twitchapi

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// callSemaphore bounds concurrent outbound calls to the provider across all
// components, keeping a parallelized sweep within provider rate limits.
var (
	callSemaphore     chan struct{}
	callSemaphoreOnce sync.Once
)

func initCallSemaphore() {
	callSemaphoreOnce.Do(func() {
		maxConcurrent := 4
		if s := os.Getenv("TWITCH_MAX_CONCURRENT_CALLS"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				maxConcurrent = n
			}
		}
		callSemaphore = make(chan struct{}, maxConcurrent)
		slog.Info("twitch call concurrency limit initialized", slog.Int("max_concurrent", maxConcurrent))
	})
}

// acquireCallSlot blocks until an outbound call slot is available or the
// context is canceled. Returns false on cancellation.
func acquireCallSlot(ctx context.Context) bool {
	initCallSemaphore()
	select {
	case callSemaphore <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func releaseCallSlot() {
	initCallSemaphore()
	select {
	case <-callSemaphore:
	default:
		slog.Warn("twitch call slot release called without corresponding acquire")
	}
}
