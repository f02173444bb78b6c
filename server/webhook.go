package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/subgate/i18n"
	"github.com/onnwee/subgate/state"
	"github.com/onnwee/subgate/telegram"
	"github.com/onnwee/subgate/telemetry"
	"github.com/onnwee/subgate/twitchapi"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// HandleBotWebhook processes Telegram updates: the /start, /me and /help
// commands in private chats, and membership transitions in the gated group.
// It always answers 200; a non-2xx would make Telegram redeliver the update.
func (h *Handlers) HandleBotWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.ChatMember != nil:
		h.handleMemberUpdate(ctx, update.ChatMember)
	}
	w.WriteHeader(http.StatusOK)
}

// command extracts the bot command from a message text, dropping any
// @botname suffix. Returns "" for non-command messages.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}

func (h *Handlers) handleMessage(ctx context.Context, msg *telegram.Message) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "bot"))
	locale := i18n.DefaultLocale
	if msg.From != nil && msg.From.LanguageCode != "" {
		locale = msg.From.LanguageCode
	}

	switch command(msg.Text) {
	case "/start":
		if msg.Chat.Type != "private" {
			return
		}
		h.handleStart(ctx, msg, locale, logger)
	case "/me":
		if msg.Chat.Type != "private" {
			name := ""
			if msg.From != nil {
				name = msg.From.FirstName
				if msg.From.Username != "" {
					name = "@" + msg.From.Username
				}
			}
			_, err := h.TG.SendMessage(ctx, msg.Chat.ID,
				i18n.Translate(locale, "me.notprivate", map[string]string{"name": name}), nil)
			if err != nil {
				logger.Warn("reply failed", slog.Any("err", err))
			}
			return
		}
		h.handleMe(ctx, msg, locale, logger)
	case "/help":
		_, err := h.TG.SendMessage(ctx, msg.Chat.ID,
			i18n.Translate(locale, "help.msg", nil),
			&telegram.SendOptions{ParseMode: "HTML"})
		if err != nil {
			logger.Warn("reply failed", slog.Any("err", err))
		}
	}
}

// handleStart mints a single-use login state, sends the login prompt with the
// authorization URL, and remembers the prompt message id so the callback can
// retract it. The login button is a web app so the flow survives mobile
// clients that mishandle redirects out of Telegram.
func (h *Handlers) handleStart(ctx context.Context, msg *telegram.Message, locale string, logger *slog.Logger) {
	token, err := h.States.Create(ctx, state.Login{ChatID: msg.Chat.ID})
	if err != nil {
		logger.Error("login state creation failed", slog.Any("err", err))
		return
	}
	authURL, err := twitchapi.BuildAuthorizeURL(h.OAuthCfg, token)
	if err != nil {
		logger.Error("authorize url build failed", slog.Any("err", err))
		return
	}
	prompt, err := h.TG.SendMessage(ctx, msg.Chat.ID,
		i18n.Translate(locale, "start.msg", nil),
		&telegram.SendOptions{
			ParseMode: "HTML",
			Keyboard: [][]telegram.InlineButton{{{
				Text:      i18n.Translate(locale, "start.login", nil),
				WebAppURL: authURL,
			}}},
		})
	if err != nil {
		logger.Error("login prompt delivery failed", slog.Any("err", err))
		return
	}
	if err := h.States.SetMessage(ctx, token, prompt.MessageID); err != nil {
		logger.Warn("prompt message id not recorded", slog.Any("err", err))
	}
}

func (h *Handlers) handleMe(ctx context.Context, msg *telegram.Message, locale string, logger *slog.Logger) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	loading, err := h.TG.SendMessage(ctx, msg.Chat.ID, i18n.Translate(locale, "me.loading", nil), nil)
	if err != nil {
		logger.Warn("reply failed", slog.Any("err", err))
		return
	}
	edit := func(text string, opts *telegram.SendOptions) {
		if err := h.TG.EditMessageText(ctx, msg.Chat.ID, loading.MessageID, text, opts); err != nil {
			logger.Warn("message edit failed", slog.Any("err", err))
		}
	}

	user, err := h.Oracle.ResolveIdentity(ctx, chatID)
	if err != nil {
		logger.Warn("identity resolution failed", slog.String("chat_id", chatID), slog.Any("err", err))
		edit(i18n.Translate(locale, "me.error", nil), nil)
		return
	}
	if user == nil {
		edit(i18n.Translate(locale, "me.notlogged", nil), nil)
		return
	}

	sub, err := h.Oracle.CheckSubscription(ctx, chatID, user.ID)
	if err != nil {
		logger.Warn("subscription check failed", slog.String("chat_id", chatID), slog.Any("err", err))
		edit(i18n.Translate(locale, "me.error", nil), nil)
		return
	}

	subInfo := ""
	subscribed := i18n.Translate(locale, "me.notsubscribed", nil)
	if sub != nil {
		subscribed = i18n.Translate(locale, "me.subscribed", nil)
		gifted := i18n.Translate(locale, "me.no", nil)
		if sub.IsGift {
			gifted = i18n.Translate(locale, "me.yes", nil)
		}
		// tier arrives as "1000"/"2000"/"3000"; only the first digit is shown.
		// It can be absent from the provider response.
		tier := sub.Tier
		if len(tier) > 1 {
			tier = tier[:1]
		}
		subInfo = i18n.Translate(locale, "me.tier", map[string]string{"tier": tier}) +
			i18n.Translate(locale, "me.gifted", map[string]string{"gifted": gifted})
	}
	email := user.Email
	if email == "" {
		email = "N/A"
	}
	text := i18n.Translate(locale, "me.info", map[string]string{
		"username":   user.DisplayName,
		"email":      email,
		"id":         user.ID,
		"subscribed": subscribed,
		"subInfo":    subInfo,
	})

	opts := &telegram.SendOptions{ParseMode: "HTML"}
	if sub == nil {
		opts.Keyboard = [][]telegram.InlineButton{{{
			Text: i18n.Translate(locale, "me.subscribe", nil),
			URL:  "https://twitch.tv/" + h.Cfg.TwitchBroadcasterLogin + "/subscribe",
		}}}
	}
	edit(text, opts)
}

// handleMemberUpdate guards direct joins into the gated group: anyone who
// becomes a regular member without an active subscription is removed on the
// spot. Administrators are never checked.
func (h *Handlers) handleMemberUpdate(ctx context.Context, upd *telegram.ChatMemberUpdated) {
	if upd.Chat.ID != h.Cfg.TelegramGroupID {
		return
	}
	if upd.NewChatMember.Status != "member" {
		return
	}
	old := upd.OldChatMember.Status
	if old != "left" && old != "kicked" && old != "" {
		return
	}

	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "join_guard"))
	userID := upd.NewChatMember.User.ID
	chatID := strconv.FormatInt(userID, 10)

	user, err := h.Oracle.ResolveIdentity(ctx, chatID)
	if err != nil {
		logger.Warn("identity resolution failed", slog.String("chat_id", chatID), slog.Any("err", err))
		return
	}
	if user == nil {
		if err := h.TG.RevokeMembership(ctx, h.Cfg.TelegramGroupID, userID); err != nil {
			logger.Warn("join rejection failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
		return
	}
	sub, err := h.Oracle.CheckSubscription(ctx, chatID, user.ID)
	if err != nil {
		logger.Warn("subscription check failed", slog.String("chat_id", chatID), slog.Any("err", err))
		return
	}
	if sub == nil {
		if err := h.TG.RevokeMembership(ctx, h.Cfg.TelegramGroupID, userID); err != nil {
			logger.Warn("join rejection failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
	}
}
