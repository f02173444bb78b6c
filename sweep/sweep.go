// Package sweep implements the daily reconciliation pass over every linked
// chat identity. Each identity lands in one of three buckets: subscription
// active (any pending expiry marker is cleared), lapsed within the grace
// window (warned), or lapsed beyond it (removed from the group and unlinked).
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/onnwee/subgate/i18n"
	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/telemetry"
	"github.com/onnwee/subgate/twitchapi"
)

// Pager iterates chat ids lazily, page by page.
type Pager interface {
	Next(ctx context.Context) (string, bool)
	Err() error
}

// Registry is the credential/marker persistence the sweep depends on.
type Registry interface {
	GetMarker(ctx context.Context, chatID string) (time.Time, bool, error)
	PutMarker(ctx context.Context, chatID string, firstObserved time.Time) error
	DeleteMarker(ctx context.Context, chatID string) error
	DeleteUser(ctx context.Context, chatID string) error
	CountCredentials(ctx context.Context) (int, error)
}

// Oracle answers identity and subscription questions for a chat id.
type Oracle interface {
	ResolveIdentity(ctx context.Context, chatID string) (*twitchapi.User, error)
	CheckSubscription(ctx context.Context, chatID, providerUserID string) (*twitchapi.Subscription, error)
}

// GroupAPI is the slice of the Telegram client the sweep uses.
type GroupAPI interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (*telegram.ChatMember, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]telegram.ChatMember, error)
	RevokeMembership(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
}

// Member is one affected identity in a sweep report.
type Member struct {
	ChatID  string
	Display string
}

// Report summarizes a completed sweep cycle.
type Report struct {
	Banned []Member
	Warned []Member
}

// Sweeper runs reconciliation cycles. Now is injectable for tests and
// defaults to time.Now.
type Sweeper struct {
	Registry         Registry
	NewPager         func() Pager
	Oracle           Oracle
	Group            GroupAPI
	GroupID          int64
	BroadcasterLogin string
	Grace            time.Duration
	Interval         time.Duration
	Now              func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type verdict int

const (
	verdictActive verdict = iota
	verdictWarn
	verdictBan
)

// classify decides the fate of one identity and updates its expiry marker.
// An identity whose provider account vanished takes the same grace path as a
// lapsed subscription: the user gets the full window to re-link or renew.
func (s *Sweeper) classify(ctx context.Context, chatID string) (verdict, error) {
	user, err := s.Oracle.ResolveIdentity(ctx, chatID)
	if err != nil {
		return verdictActive, fmt.Errorf("resolve identity: %w", err)
	}

	var subscribed bool
	if user != nil {
		sub, err := s.Oracle.CheckSubscription(ctx, chatID, user.ID)
		if err != nil {
			return verdictActive, fmt.Errorf("check subscription: %w", err)
		}
		subscribed = sub != nil
	}

	if subscribed {
		if err := s.Registry.DeleteMarker(ctx, chatID); err != nil {
			return verdictActive, fmt.Errorf("clear marker: %w", err)
		}
		return verdictActive, nil
	}

	firstObserved, ok, err := s.Registry.GetMarker(ctx, chatID)
	if err != nil {
		return verdictActive, fmt.Errorf("read marker: %w", err)
	}
	if !ok {
		if err := s.Registry.PutMarker(ctx, chatID, s.now()); err != nil {
			return verdictActive, fmt.Errorf("write marker: %w", err)
		}
		return verdictWarn, nil
	}
	if s.now().Sub(firstObserved) > s.Grace {
		return verdictBan, nil
	}
	return verdictWarn, nil
}

// memberFor resolves a display handle for the report. Lookup failures fall
// back to the raw chat id rather than failing the identity.
func (s *Sweeper) memberFor(ctx context.Context, chatID string) Member {
	userID, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return Member{ChatID: chatID, Display: chatID}
	}
	member, err := s.Group.GetChatMember(ctx, s.GroupID, userID)
	if err != nil {
		slog.Warn("chat member lookup failed", slog.String("chat_id", chatID), slog.Any("err", err))
		return Member{ChatID: chatID, Display: chatID}
	}
	if member.User.Username != "" {
		return Member{ChatID: chatID, Display: "@" + member.User.Username}
	}
	return Member{ChatID: chatID, Display: member.User.FirstName}
}

// ban removes the user from the group, then unlinks their credentials. The
// revocation comes first: if it fails we keep the credential so the next
// sweep retries instead of leaving an unlinked user inside the group.
func (s *Sweeper) ban(ctx context.Context, chatID string) error {
	userID, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("parse chat id %q: %w", chatID, err)
	}
	if err := s.Group.RevokeMembership(ctx, s.GroupID, userID); err != nil {
		return fmt.Errorf("revoke membership: %w", err)
	}
	if err := s.Registry.DeleteUser(ctx, chatID); err != nil {
		return fmt.Errorf("unlink user: %w", err)
	}
	return nil
}

// RunOnce performs a single reconciliation cycle over every linked identity
// and sends the report to the group. A failing identity is logged, counted,
// and skipped; it never aborts the cycle. Enumeration failure aborts, since
// the remaining identities would be silently unchecked.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	start := s.now()
	logger := slog.Default().With(slog.String("component", "sweep"))

	report := &Report{}
	pager := s.NewPager()
	for {
		chatID, ok := pager.Next(ctx)
		if !ok {
			break
		}
		v, err := s.classify(ctx, chatID)
		if err != nil {
			logger.Warn("identity check failed, skipping", slog.String("chat_id", chatID), slog.Any("err", err))
			telemetry.IncSweepIdentityError()
			continue
		}
		switch v {
		case verdictWarn:
			report.Warned = append(report.Warned, s.memberFor(ctx, chatID))
		case verdictBan:
			member := s.memberFor(ctx, chatID)
			if err := s.ban(ctx, chatID); err != nil {
				logger.Warn("ban failed, skipping", slog.String("chat_id", chatID), slog.Any("err", err))
				telemetry.IncSweepIdentityError()
				continue
			}
			report.Banned = append(report.Banned, member)
		}
	}
	if err := pager.Err(); err != nil {
		return nil, fmt.Errorf("enumerate identities: %w", err)
	}

	if err := s.sendReport(ctx, report); err != nil {
		logger.Warn("report delivery failed", slog.Any("err", err))
	}

	if n, err := s.Registry.CountCredentials(ctx); err == nil {
		telemetry.SetLinkedUsers(n)
	}
	telemetry.ObserveSweep(time.Since(start).Seconds(), len(report.Banned), len(report.Warned))
	logger.Info("sweep complete",
		slog.Int("banned", len(report.Banned)),
		slog.Int("warned", len(report.Warned)),
		slog.Duration("took", time.Since(start)))
	return report, nil
}

// founderLocale returns the group creator's language code, defaulting to
// English when the creator cannot be determined.
func (s *Sweeper) founderLocale(ctx context.Context) string {
	admins, err := s.Group.GetChatAdministrators(ctx, s.GroupID)
	if err != nil {
		slog.Warn("administrator lookup failed", slog.Any("err", err))
		return i18n.DefaultLocale
	}
	for _, admin := range admins {
		if admin.Status == "creator" && admin.User.LanguageCode != "" {
			return admin.User.LanguageCode
		}
	}
	return i18n.DefaultLocale
}

func (s *Sweeper) sendReport(ctx context.Context, report *Report) error {
	locale := s.founderLocale(ctx)

	text := i18n.Translate(locale, "scheduled.todaytitle", nil)
	if len(report.Banned) == 0 {
		text += i18n.Translate(locale, "scheduled.nobanstoday", nil)
	} else {
		for i, m := range report.Banned {
			if i > 0 {
				text += ", "
			}
			text += m.Display
		}
	}
	text += "\n\n"
	if len(report.Warned) > 0 {
		text += i18n.Translate(locale, "scheduled.warningtitle", nil)
		for i, m := range report.Warned {
			if i > 0 {
				text += ", "
			}
			text += m.Display
		}
	}

	opts := &telegram.SendOptions{ParseMode: "HTML"}
	if len(report.Banned) > 0 || len(report.Warned) > 0 {
		opts.Keyboard = [][]telegram.InlineButton{{{
			Text: i18n.Translate(locale, "scheduled.renewsub", nil),
			URL:  "https://twitch.tv/" + s.BroadcasterLogin + "/subscribe",
		}}}
	}
	_, err := s.Group.SendMessage(ctx, s.GroupID, text, opts)
	return err
}

// Start runs sweep cycles until the context is canceled: one immediately,
// then one per interval.
func (s *Sweeper) Start(ctx context.Context) {
	slog.Info("sweep job starting", slog.Duration("interval", s.Interval), slog.Duration("grace", s.Grace))

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Warn("sweep cycle failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweep job stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Warn("sweep cycle failed", slog.Any("err", err))
			}
		}
	}
}
