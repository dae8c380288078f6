// Package telegram implements the subset of Telegram Bot API used by the bot
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ParseModeHTML is the only parse mode used by the bot
const ParseModeHTML = "HTML"

// ClientConfig defines Bot API client settings
type ClientConfig struct {
	APIURL      string
	Token       string
	PollTimeout time.Duration
	Timeout     time.Duration // request timeout on top of poll timeout
}

// Client talks to Bot API
type Client struct {
	http        *resty.Client
	pollTimeout time.Duration
}

// NewClient makes a Bot API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}

	client := resty.New()
	client.SetBaseURL(fmt.Sprintf("%s/bot%s", strings.TrimSuffix(cfg.APIURL, "/"), cfg.Token))
	client.SetTimeout(cfg.PollTimeout + cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")

	return &Client{http: client, pollTimeout: cfg.PollTimeout}
}

// GetUpdates long-polls for updates starting at offset
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	req := map[string]any{"timeout": int(c.pollTimeout.Seconds())}
	if offset > 0 {
		req["offset"] = offset
	}

	var result []Update
	if err := c.call(ctx, "getUpdates", req, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SendMessage sends a message and returns it as stored by Telegram
func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) (*Message, error) {
	var result Message
	if err := c.call(ctx, "sendMessage", msg, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnswerCallbackQuery acknowledges pressed button, text shown as a notification if not empty
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	req := map[string]any{"callback_query_id": queryID}
	if text != "" {
		req["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", req, nil)
}

// EditMessageReplyMarkup replaces the keyboard of a sent message
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *InlineKeyboardMarkup) error {
	req := map[string]any{
		"chat_id":      chatID,
		"message_id":   messageID,
		"reply_markup": markup,
	}
	return c.call(ctx, "editMessageReplyMarkup", req, nil)
}

// call posts body to method and decodes result field into out
func (c *Client) call(ctx context.Context, method string, body, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post("/" + method)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	var resp struct {
		apiResponse
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(res.Body(), &resp); err != nil {
		return fmt.Errorf("telegram %s: status %d, decode response: %w", method, res.StatusCode(), err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram %s: status %d, %s", method, res.StatusCode(), resp.Description)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}
