package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service. Initialize once
// at startup with Init; helpers below are nil-safe so library code can record
// without caring whether metrics are wired (tests usually leave them off).
type Metrics struct {
	SweepCycles         prometheus.Counter
	SweepDuration       prometheus.Histogram
	SweepIdentityErrors prometheus.Counter
	UsersBanned         prometheus.Counter
	UsersWarned         prometheus.Counter
	TokenRefreshes      prometheus.Counter
	LinkedUsers         prometheus.Gauge
}

var metrics *Metrics

// Init registers all collectors on the default registry. Call once.
func Init() *Metrics {
	metrics = &Metrics{
		SweepCycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subgate_sweep_cycles_total",
			Help: "Completed reconciliation sweep cycles.",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subgate_sweep_duration_seconds",
			Help:    "Wall-clock duration of a full sweep cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		SweepIdentityErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subgate_sweep_identity_errors_total",
			Help: "Identities skipped during a sweep because processing failed.",
		}),
		UsersBanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subgate_users_banned_total",
			Help: "Users removed from the group after exhausting the grace period.",
		}),
		UsersWarned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subgate_users_warned_total",
			Help: "Users that entered or remained in the grace period during a sweep.",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subgate_token_refreshes_total",
			Help: "OAuth refresh grants performed after a failed introspection.",
		}),
		LinkedUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subgate_linked_users",
			Help: "Credential rows currently stored.",
		}),
	}
	return metrics
}

// Get returns the registered metrics, or nil when Init was never called.
func Get() *Metrics { return metrics }

func IncTokenRefresh() {
	if metrics != nil {
		metrics.TokenRefreshes.Inc()
	}
}

func IncSweepIdentityError() {
	if metrics != nil {
		metrics.SweepIdentityErrors.Inc()
	}
}

func ObserveSweep(seconds float64, banned, warned int) {
	if metrics == nil {
		return
	}
	metrics.SweepCycles.Inc()
	metrics.SweepDuration.Observe(seconds)
	metrics.UsersBanned.Add(float64(banned))
	metrics.UsersWarned.Add(float64(warned))
}

func SetLinkedUsers(n int) {
	if metrics != nil {
		metrics.LinkedUsers.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or an empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
