package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
)

var _ core.MessageSender = (*TelegramService)(nil)

// TelegramService sends rendered messages through the Bot API.
type TelegramService struct {
	bot *tgbotapi.BotAPI
	log *logger.Logger
}

// DefaultHTTPTimeout bounds a single Bot API round trip.
const DefaultHTTPTimeout = 15 * time.Second

func NewTelegramService(token string, timeout time.Duration, log *logger.Logger) (*TelegramService, error) {
	return newTelegramService(token, tgbotapi.APIEndpoint, timeout, log)
}

func newTelegramService(token, endpoint string, timeout time.Duration, log *logger.Logger) (*TelegramService, error) {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramService{bot: bot, log: log.With("service", "TelegramService")}, nil
}

// SendMessage sends text to chatID. Non-empty options become a one-per-row
// reply keyboard; otherwise any previous keyboard is removed.
func (s *TelegramService) SendMessage(ctx context.Context, chatID string, text string, options []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ReplyMarkup = ReplyMarkup(options)

	// The Bot API client takes no context; the HTTP client timeout ends the
	// abandoned request.
	errCh := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(msg)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	s.log.Debug("message sent", "chat_id", chatID, "options", len(options))
	return nil
}

// ReplyMarkup builds the keyboard for a set of answer options.
func ReplyMarkup(options []string) interface{} {
	if len(options) == 0 {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(opt)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}
