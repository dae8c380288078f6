// Package bot implements chat commands on top of Telegram long polling
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/dirtypig/pig/pkg/delivery"
	"github.com/dirtypig/pig/pkg/domain"
	"github.com/dirtypig/pig/pkg/repository"
	"github.com/dirtypig/pig/pkg/telegram"
)

const (
	greeting   = "И СНОВА ЗДРАВСТВУЙТЕ"
	denialText = "🚫 <b>ACCESS DENIED</b>\nSorry, you are <b>not authorized</b> to use this command"
)

// API is the subset of Bot API used by the bot
type API interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) (*telegram.Message, error)
	AnswerCallbackQuery(ctx context.Context, queryID, text string) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *telegram.InlineKeyboardMarkup) error
}

// Selector provides cards and votes
type Selector interface {
	Random(ctx context.Context) (delivery.Card, error)
	ForContent(ctx context.Context, ct domain.ContentType) (delivery.Card, error)
	Vote(ctx context.Context, num int64, delta int) ([]delivery.Button, error)
}

// Config defines bot settings
type Config struct {
	MaxWorkers   int
	OneShotDelay time.Duration // delay of a stream without interval
	RetryDelay   time.Duration // pause after failed getUpdates
}

// Bot dispatches updates and runs stream jobs
type Bot struct {
	api      API
	selector Selector
	guard    *Guard
	cfg      Config

	mu   sync.Mutex
	jobs map[int64]*streamJob // by chat id
	wg   sync.WaitGroup
}

type streamJob struct {
	domain.StreamJob
	cancel context.CancelFunc
}

// New makes a bot
func New(api API, selector Selector, guard *Guard, cfg Config) *Bot {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.OneShotDelay == 0 {
		cfg.OneShotDelay = time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Bot{api: api, selector: selector, guard: guard, cfg: cfg, jobs: map[int64]*streamJob{}}
}

// Run polls updates until ctx is cancelled, then stops all stream jobs
func (b *Bot) Run(ctx context.Context) error {
	lgr.Printf("[INFO] bot started, max workers %d", b.cfg.MaxWorkers)
	defer b.stopAll()

	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lgr.Printf("[WARN] failed to get updates: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.cfg.RetryDelay):
			}
			continue
		}

		g := errgroup.Group{}
		g.SetLimit(b.cfg.MaxWorkers)
		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			g.Go(func() error {
				b.handle(ctx, u)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handle processes one update, errors are logged
func (b *Bot) handle(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			lgr.Printf("[WARN] update %d caused panic: %v", u.UpdateID, r)
		}
	}()

	var err error
	switch {
	case u.Message != nil:
		err = b.onMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		err = b.onCallback(ctx, u.CallbackQuery)
	}
	if err != nil {
		lgr.Printf("[WARN] update %d caused %v", u.UpdateID, err)
	}
}

func (b *Bot) onMessage(ctx context.Context, msg *telegram.Message) error {
	cmd, args := parseCommand(msg.Text)
	chatID := msg.Chat.ID

	switch {
	case cmd == "/start":
		lgr.Printf("[INFO] user %s is now using the bot", userName(msg.From))
		return b.sendText(ctx, chatID, greeting)

	case cmd == "/2ch":
		if !b.authorize(ctx, chatID, msg.From) {
			return nil
		}
		lgr.Printf("[INFO] serving %s", userName(msg.From))
		card, err := b.selector.Random(ctx)
		return b.sendCard(ctx, chatID, card, err)

	case cmd == "/stop":
		if b.Stop(chatID) {
			return b.sendText(ctx, chatID, "stream stopped")
		}
		return nil

	case strings.HasPrefix(cmd, "!"):
		ct, err := domain.ParseContentType(strings.TrimPrefix(cmd, "!"))
		if err != nil {
			return nil // not a stream command
		}
		job := domain.StreamJob{ContentType: ct, ChatID: chatID}
		if len(args) > 0 {
			if mins, err := strconv.Atoi(args[0]); err == nil && mins > 0 {
				job.Interval = time.Duration(mins) * time.Minute
			}
		}
		b.Schedule(ctx, job)
		return nil
	}
	return nil
}

func (b *Bot) onCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if d := b.guard.Check(&q.From); !d.Allowed() {
		lgr.Printf("[WARN] vote denied for %s: %s", userName(&q.From), d.Reason())
		return b.api.AnswerCallbackQuery(ctx, q.ID, "🚫 ACCESS DENIED")
	}

	num, delta, err := delivery.ParseVote(q.Data)
	if err != nil {
		_ = b.api.AnswerCallbackQuery(ctx, q.ID, "")
		return fmt.Errorf("bad callback from %s: %w", userName(&q.From), err)
	}
	if delta == 0 {
		return b.api.AnswerCallbackQuery(ctx, q.ID, "")
	}

	kb, err := b.selector.Vote(ctx, num, delta)
	if errors.Is(err, repository.ErrNotFound) {
		return b.api.AnswerCallbackQuery(ctx, q.ID, "record not found")
	}
	if err != nil {
		_ = b.api.AnswerCallbackQuery(ctx, q.ID, "")
		return fmt.Errorf("vote %d for %d: %w", delta, num, err)
	}
	lgr.Printf("[INFO] %d was voted %+d by %s", num, delta, userName(&q.From))

	if err := b.api.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	if q.Message == nil {
		return nil
	}
	if err := b.api.EditMessageReplyMarkup(ctx, q.Message.Chat.ID, q.Message.MessageID, markup(kb)); err != nil {
		return fmt.Errorf("update rating controls: %w", err)
	}
	return nil
}

// authorize checks user and sends denial to the chat if needed
func (b *Bot) authorize(ctx context.Context, chatID int64, user *telegram.User) bool {
	lgr.Printf("[DEBUG] %s is trying to access a privileged command", userName(user))
	d := b.guard.Check(user)
	if d.Allowed() {
		return true
	}
	lgr.Printf("[WARN] unauthorized access denied for %s: %s", userName(user), d.Reason())
	if err := b.sendText(ctx, chatID, denialText); err != nil {
		lgr.Printf("[WARN] failed to send denial to %d: %v", chatID, err)
	}
	return false
}

// sendCard sends the card with rating controls, or a plain notice when there is no content
func (b *Bot) sendCard(ctx context.Context, chatID int64, card delivery.Card, err error) error {
	if errors.Is(err, delivery.ErrNoContent) {
		return b.sendText(ctx, chatID, delivery.ErrNoContent.Error())
	}
	if err != nil {
		return err
	}
	_, err = b.api.SendMessage(ctx, telegram.OutgoingMessage{
		ChatID:                chatID,
		Text:                  card.Text,
		ParseMode:             telegram.ParseModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup(card.Keyboard),
	})
	if err != nil {
		return fmt.Errorf("send card %d: %w", card.Num, err)
	}
	return nil
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.SendMessage(ctx, telegram.OutgoingMessage{ChatID: chatID, Text: text, ParseMode: telegram.ParseModeHTML})
	if err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// parseCommand splits message text to command and arguments, bot mention in command is dropped
func parseCommand(text string) (cmd string, args []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, _, _ = strings.Cut(fields[0], "@")
	if strings.HasPrefix(fields[0], "!") {
		cmd = fields[0]
	}
	return strings.ToLower(cmd), fields[1:]
}

func markup(kb []delivery.Button) *telegram.InlineKeyboardMarkup {
	row := make([]telegram.InlineKeyboardButton, 0, len(kb))
	for _, btn := range kb {
		row = append(row, telegram.InlineKeyboardButton{Text: btn.Text, CallbackData: btn.Data})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{row}}
}

func userName(u *telegram.User) string {
	if u == nil {
		return "anonymous"
	}
	if u.Username == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return fmt.Sprintf("@%s (%d)", u.Username, u.ID)
}
