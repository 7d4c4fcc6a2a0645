// Package bot implements the Telegram command interface and the channel
// delivery path.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"forum_bot/internal/config"
	"forum_bot/internal/state"
	"forum_bot/internal/storage"
)

// rateLimitBackoff is the wait before the single retry after a Telegram
// 429 response. Variable so tests can shorten it.
var rateLimitBackoff = 5 * time.Second

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot handles admin commands and broadcasts announcements to the
// configured channels.
type Bot struct {
	api    telegramAPI
	ledger *state.Ledger
	store  storage.Storage
	cfg    *config.Config
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token, ledger, archive, and config.
func New(token string, ledger *state.Ledger, store storage.Storage, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:    api,
		ledger: ledger,
		store:  store,
		cfg:    cfg,
		log:    log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// Broadcast sends every message to every configured channel, in order,
// with a fixed delay between messages. A rate-limited send is retried
// once; any other failure drops the remaining messages for that channel
// and moves on to the next one.
func (b *Bot) Broadcast(ctx context.Context, messages []string) {
	if len(messages) == 0 {
		return
	}
	for _, chatID := range b.cfg.ChannelIDs {
		for i, text := range messages {
			if i > 0 {
				if err := sleep(ctx, b.cfg.SendDelay); err != nil {
					return
				}
			}
			b.log.Debug("sending announcement", "chat_id", chatID, "len", len(text))
			if err := b.sendAnnouncement(chatID, text); err != nil {
				b.log.Error("send to channel", "chat_id", chatID, "error", err)
				break
			}
		}
	}
}

// sendAnnouncement delivers one formatted message with HTML rendering
// enabled and link previews disabled.
func (b *Bot) sendAnnouncement(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	_, err := b.api.Send(msg)
	if err != nil && isRateLimited(err) {
		b.log.Warn("rate limited by telegram, retrying once", "chat_id", chatID)
		time.Sleep(rateLimitBackoff)
		_, err = b.api.Send(msg)
	}
	return err
}

func isRateLimited(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == 429
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "listauthors":
		b.handleListAuthors(chatID)
	case "addauthor":
		b.handleAddAuthor(chatID, args)
	case "removeauthor":
		b.handleRemoveAuthor(chatID, args)
	case "chatid":
		b.handleChatID(msg)
	case "history":
		b.handleHistory(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
