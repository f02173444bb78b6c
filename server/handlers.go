package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/onnwee/subgate/config"
	"github.com/onnwee/subgate/db"
	"github.com/onnwee/subgate/i18n"
	"github.com/onnwee/subgate/oauth"
	"github.com/onnwee/subgate/pages"
	"github.com/onnwee/subgate/state"
	"github.com/onnwee/subgate/subs"
	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/telemetry"
)

// Handlers holds the dependencies of the HTTP surface.
type Handlers struct {
	Store    *db.Store
	States   *state.Store
	Auth     *oauth.Authority
	Oracle   *subs.Oracle
	TG       *telegram.Client
	Cfg      *config.Config
	OAuthCfg *oauth2.Config
}

// NewHandlers wires the handler set.
func NewHandlers(store *db.Store, states *state.Store, auth *oauth.Authority, oracle *subs.Oracle, tg *telegram.Client, cfg *config.Config, oauthCfg *oauth2.Config) *Handlers {
	return &Handlers{Store: store, States: states, Auth: auth, Oracle: oracle, TG: tg, Cfg: cfg, OAuthCfg: oauthCfg}
}

func (h *Handlers) writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Warn("failed to write response", slog.Any("err", err))
	}
}

// memberLocale looks up the locale of a Telegram user via group membership,
// defaulting to English when the lookup fails or yields nothing.
func (h *Handlers) memberLocale(ctx context.Context, userID int64) string {
	member, err := h.TG.GetChatMember(ctx, h.Cfg.TelegramGroupID, userID)
	if err != nil || member.User.LanguageCode == "" {
		return i18n.DefaultLocale
	}
	return member.User.LanguageCode
}

// HandleOAuthCallback finishes a login attempt: it consumes the single-use
// state token, exchanges the code, persists the token pair, and either hands
// out a single-use invite link or nudges the user to subscribe.
func (h *Handlers) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "oauth_callback"))

	code := r.URL.Query().Get("code")
	stateToken := r.URL.Query().Get("state")
	if code == "" || stateToken == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	login, err := h.States.Consume(ctx, stateToken)
	if err != nil {
		logger.Error("state lookup failed", slog.Any("err", err))
		h.writeHTML(w, http.StatusInternalServerError, pages.Error(i18n.DefaultLocale))
		return
	}
	if login == nil {
		http.Error(w, "invalid or expired state", http.StatusBadRequest)
		return
	}
	chatID := strconv.FormatInt(login.ChatID, 10)

	// The pair is persisted on exchange regardless of subscription standing:
	// a linked non-subscriber is a first-class state, observable by /me and
	// by the daily sweep.
	if _, err := h.Auth.Link(ctx, chatID, code); err != nil {
		logger.Error("code exchange failed", slog.String("chat_id", chatID), slog.Any("err", err))
		h.writeHTML(w, http.StatusInternalServerError, pages.Error(i18n.DefaultLocale))
		return
	}

	// Retract the login prompt; the message may already be gone.
	if login.MessageID != 0 {
		if err := h.TG.DeleteMessage(ctx, login.ChatID, login.MessageID); err != nil {
			logger.Debug("prompt deletion failed", slog.Any("err", err))
		}
	}

	locale := h.memberLocale(ctx, login.ChatID)

	user, err := h.Oracle.ResolveIdentity(ctx, chatID)
	if err != nil || user == nil {
		logger.Error("identity resolution failed", slog.String("chat_id", chatID), slog.Any("err", err))
		h.writeHTML(w, http.StatusInternalServerError, pages.Error(locale))
		return
	}

	sub, err := h.Oracle.CheckSubscription(ctx, chatID, user.ID)
	if err != nil {
		logger.Error("subscription check failed", slog.String("chat_id", chatID), slog.Any("err", err))
		h.writeHTML(w, http.StatusInternalServerError, pages.Error(locale))
		return
	}

	if sub != nil {
		expireAt := nowFunc().Add(h.Cfg.InviteTTL)
		link, err := h.TG.CreateInviteLink(ctx, h.Cfg.TelegramGroupID, expireAt, 1)
		if err != nil {
			logger.Error("invite link creation failed", slog.String("chat_id", chatID), slog.Any("err", err))
			h.writeHTML(w, http.StatusInternalServerError, pages.Error(locale))
			return
		}
		_, err = h.TG.SendMessage(ctx, login.ChatID,
			i18n.Translate(locale, "auth.success", map[string]string{"name": user.DisplayName}),
			&telegram.SendOptions{
				ParseMode: "HTML",
				Keyboard: [][]telegram.InlineButton{{{
					Text: i18n.Translate(locale, "auth.join", nil),
					URL:  link,
				}}},
			})
		if err != nil {
			logger.Warn("invite message delivery failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
	} else {
		_, err = h.TG.SendMessage(ctx, login.ChatID,
			i18n.Translate(locale, "auth.notsubscribed", map[string]string{"name": user.DisplayName}),
			&telegram.SendOptions{
				Keyboard: [][]telegram.InlineButton{{{
					Text: i18n.Translate(locale, "auth.subscribe", nil),
					URL:  "https://twitch.tv/" + h.Cfg.TwitchBroadcasterLogin + "/subscribe",
				}}},
			})
		if err != nil {
			logger.Warn("subscribe nudge delivery failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
	}

	h.writeHTML(w, http.StatusOK, pages.Success(locale))
}

// HandleHealthz is a liveness probe.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports readiness: both durable stores must answer.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Store.Ping(ctx); err != nil {
		slog.Warn("readiness: postgres unreachable", slog.Any("err", err))
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	if err := h.States.Ping(ctx); err != nil {
		slog.Warn("readiness: redis unreachable", slog.Any("err", err))
		http.Error(w, "state store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
