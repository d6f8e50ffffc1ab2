package notifier

import (
	"context"
	"fmt"

	"github.com/apex/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram posts escalations to a Telegram channel. The image is attached
// when the complaint carries one, otherwise a plain message is sent.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot and returns a Telegram notifier.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Infof("Telegram notifier authorized as %s", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Post sends the caption, with the photo attached when imageRef is set.
func (t *Telegram) Post(ctx context.Context, imageRef, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.Chattable
	if imageRef != "" {
		photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileURL(imageRef))
		photo.Caption = caption
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(t.chatID, caption)
	}

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
