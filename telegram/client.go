// Package telegram is a minimal Telegram Bot API client covering the group
// management surface this service needs: messaging, membership lookup,
// single-use invite links, and membership revocation.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client calls the Bot API on behalf of a single bot token.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// User is a Telegram account.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// Chat identifies a private chat, group, or supergroup.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming or sent chat message.
type Message struct {
	MessageID int    `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from"`
	Text      string `json:"text"`
}

// ChatMember describes a user's membership in a chat.
type ChatMember struct {
	User   User   `json:"user"`
	Status string `json:"status"`
}

// ChatMemberUpdated carries a chat_member update: a membership transition.
type ChatMemberUpdated struct {
	Chat          Chat       `json:"chat"`
	From          User       `json:"from"`
	OldChatMember ChatMember `json:"old_chat_member"`
	NewChatMember ChatMember `json:"new_chat_member"`
}

// Update is an incoming webhook payload.
type Update struct {
	UpdateID   int64              `json:"update_id"`
	Message    *Message           `json:"message"`
	ChatMember *ChatMemberUpdated `json:"chat_member"`
}

// InlineButton is one button of an inline keyboard. Exactly one of URL or
// WebAppURL should be set.
type InlineButton struct {
	Text      string
	URL       string
	WebAppURL string
}

// SendOptions are the optional knobs for SendMessage and EditMessageText.
type SendOptions struct {
	ParseMode string
	Keyboard  [][]InlineButton
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// APIError is a Bot API level failure (ok=false) as opposed to a transport
// failure; the description comes straight from Telegram.
type APIError struct {
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %s", e.Method, e.Description)
}

func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.base(), c.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http().Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request: %w", method, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s read response: %w", method, err)
	}
	var api apiResponse
	if err := json.Unmarshal(body, &api); err != nil {
		return fmt.Errorf("telegram %s decode response: %w", method, err)
	}
	if !api.OK {
		return &APIError{Method: method, Description: api.Description}
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("telegram %s decode result: %w", method, err)
		}
	}
	return nil
}

func keyboardJSON(rows [][]InlineButton) (string, error) {
	type webApp struct {
		URL string `json:"url"`
	}
	type button struct {
		Text   string  `json:"text"`
		URL    string  `json:"url,omitempty"`
		WebApp *webApp `json:"web_app,omitempty"`
	}
	keyboard := make([][]button, 0, len(rows))
	for _, row := range rows {
		out := make([]button, 0, len(row))
		for _, b := range row {
			btn := button{Text: b.Text, URL: b.URL}
			if b.WebAppURL != "" {
				btn.WebApp = &webApp{URL: b.WebAppURL}
			}
			out = append(out, btn)
		}
		keyboard = append(keyboard, out)
	}
	raw, err := json.Marshal(map[string]any{"inline_keyboard": keyboard})
	if err != nil {
		return "", fmt.Errorf("marshal inline keyboard: %w", err)
	}
	return string(raw), nil
}

// SendMessage sends text to a chat, optionally with parse mode and an inline
// keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if opts != nil {
		if opts.ParseMode != "" {
			params.Set("parse_mode", opts.ParseMode)
		}
		if len(opts.Keyboard) > 0 {
			markup, err := keyboardJSON(opts.Keyboard)
			if err != nil {
				return nil, err
			}
			params.Set("reply_markup", markup)
		}
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces the text of a previously sent message.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts *SendOptions) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	params.Set("text", text)
	if opts != nil {
		if opts.ParseMode != "" {
			params.Set("parse_mode", opts.ParseMode)
		}
		if len(opts.Keyboard) > 0 {
			markup, err := keyboardJSON(opts.Keyboard)
			if err != nil {
				return err
			}
			params.Set("reply_markup", markup)
		}
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// DeleteMessage removes a message the bot sent earlier.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("message_id", strconv.Itoa(messageID))
	return c.call(ctx, "deleteMessage", params, nil)
}

// GetChatMember looks up a user's membership in a chat.
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (*ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))
	var member ChatMember
	if err := c.call(ctx, "getChatMember", params, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// GetChatAdministrators lists the administrators (including the creator) of a
// group.
func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]ChatMember, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	var members []ChatMember
	if err := c.call(ctx, "getChatAdministrators", params, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CreateInviteLink creates a single-use invite link that expires at expireAt
// and admits at most memberLimit users.
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64, expireAt time.Time, memberLimit int) (string, error) {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("expire_date", strconv.FormatInt(expireAt.Unix(), 10))
	params.Set("member_limit", strconv.Itoa(memberLimit))
	var link struct {
		InviteLink string `json:"invite_link"`
	}
	if err := c.call(ctx, "createChatInviteLink", params, &link); err != nil {
		return "", err
	}
	return link.InviteLink, nil
}

// RevokeMembership removes a user from a group. Telegram's unbanChatMember
// kicks a present member without leaving them on the ban list, so they can
// rejoin later through a fresh invite once re-subscribed.
func (c *Client) RevokeMembership(ctx context.Context, chatID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("user_id", strconv.FormatInt(userID, 10))
	return c.call(ctx, "unbanChatMember", params, nil)
}
