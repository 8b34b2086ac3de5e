package telegram

import (
	"context"
	"fmt"
	"html"

	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var _ adapter.Notifier = (*Notifier)(nil)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier forwards notices to one Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
	log    *zerolog.Logger
}

func NewNotifier(token string, chatID int64, logger *zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	l := logging.Component(logger, "TelegramNotifier")
	l.Info().Str("bot", bot.Self.UserName).Int64("chat_id", chatID).Msg("telegram notifications enabled")
	return &Notifier{bot: bot, chatID: chatID, log: l}, nil
}

var levelIcon = map[adapter.NoticeLevel]string{
	adapter.NoticeInfo:    "ℹ️",
	adapter.NoticeSuccess: "✅",
	adapter.NoticeError:   "❌",
}

func (n *Notifier) Notify(ctx context.Context, notice adapter.Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("%s %s", levelIcon[notice.Level], html.EscapeString(notice.Text))
	if notice.TaskID != "" {
		text += fmt.Sprintf("\n<code>%s</code>", html.EscapeString(notice.TaskID))
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
