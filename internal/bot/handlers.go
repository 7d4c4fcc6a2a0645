package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Forum Notify Bot!

New comments by tracked forum authors are announced to the configured channels.

Quick start:
1. /listauthors — show tracked authors
2. /addauthor <username> — track a new author

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Author tracking:
/listauthors — show tracked authors
/addauthor <username> — track a forum author
/removeauthor <username> — stop tracking an author

Diagnostics:
/chatid — show this chat's ID and type
/history [n] — last n announced posts (default 10)`)
}

func (b *Bot) handleListAuthors(chatID int64) {
	authors := b.ledger.Authors()
	if len(authors) == 0 {
		b.reply(chatID, "No authors tracked. Add one with /addauthor <username>")
		return
	}
	var sb strings.Builder
	sb.WriteString("Tracked authors:\n")
	for _, a := range authors {
		sb.WriteString("• " + a + "\n")
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleAddAuthor(chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.reply(chatID, "Usage: /addauthor <forum_username>")
		return
	}
	if !b.ledger.AddAuthor(name) {
		b.reply(chatID, fmt.Sprintf("Already tracking %q.", name))
		return
	}

	msg := fmt.Sprintf("Added %q. Now tracking: %s", name, FormatAuthorList(b.ledger.Authors()))
	if err := b.ledger.Save(); err != nil {
		b.log.Error("save state", "error", err)
		msg += "\n\nWarning: failed to save state to disk."
	}
	b.reply(chatID, msg)
}

func (b *Bot) handleRemoveAuthor(chatID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.reply(chatID, "Usage: /removeauthor <forum_username>")
		return
	}
	if !b.ledger.RemoveAuthor(name) {
		b.reply(chatID, fmt.Sprintf("%q was not in the list. Current: %s",
			name, FormatAuthorList(b.ledger.Authors())))
		return
	}

	msg := fmt.Sprintf("Removed %q. Now tracking: %s", name, FormatAuthorList(b.ledger.Authors()))
	if err := b.ledger.Save(); err != nil {
		b.log.Error("save state", "error", err)
		msg += "\n\nWarning: failed to save state to disk."
	}
	b.reply(chatID, msg)
}

func (b *Bot) handleChatID(msg *tgbotapi.Message) {
	chatType := msg.Chat.Type
	if chatType == "" {
		chatType = "unknown"
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Chat ID: %d (%s)", msg.Chat.ID, chatType))
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, args string) {
	limit := 10
	if args != "" {
		n, err := strconv.Atoi(strings.Fields(args)[0])
		if err != nil || n < 1 {
			b.reply(chatID, "Usage: /history [n]")
			return
		}
		if n > 50 {
			n = 50
		}
		limit = n
	}

	anns, err := b.store.ListRecent(ctx, limit)
	if err != nil {
		b.log.Error("list history", "error", err)
		b.reply(chatID, "Could not read the announcement history.")
		return
	}
	b.reply(chatID, FormatHistory(anns))
}
