package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/markdave123-py/supplement-advisor/internal/core/dispatch"
	"github.com/markdave123-py/supplement-advisor/internal/core/survey"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
	"github.com/markdave123-py/supplement-advisor/internal/services"
)

// Enqueuer accepts outbound messages for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg dispatch.Message) error
}

type TelegramHandler struct {
	svc   SurveyService
	out   Enqueuer
	token string
	log   *logger.Logger
}

func NewTelegramHandler(svc SurveyService, out Enqueuer, token string, log *logger.Logger) *TelegramHandler {
	return &TelegramHandler{svc: svc, out: out, token: token, log: log.With("handler", "TelegramHandler")}
}

// Webhook receives one Bot API update. It always answers 200 once the token
// matches so Telegram does not redeliver updates that failed on our side.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.token == "" || subtle.ConstantTimeCompare([]byte(chi.URLParam(r, "token")), []byte(h.token)) != 1 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	userID := chatID
	var profile survey.Profile
	if msg.From != nil {
		userID = strconv.FormatInt(msg.From.ID, 10)
		profile = survey.Profile{Username: msg.From.UserName, FirstName: msg.From.FirstName}
	}

	text, options := h.handle(r.Context(), userID, profile, msg)
	if err := h.out.Enqueue(r.Context(), dispatch.Message{ChatID: chatID, Text: text, Options: options}); err != nil {
		h.log.Error("enqueue reply failed", "chat_id", chatID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TelegramHandler) handle(ctx context.Context, userID string, profile survey.Profile, msg *tgbotapi.Message) (string, []string) {
	var (
		ev  *models.Event
		err error
	)
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		ev, err = h.svc.Start(ctx, userID, profile)
	case msg.IsCommand() && msg.Command() == "reset":
		ev, err = h.svc.Reset(ctx, userID, profile)
	case msg.IsCommand() && msg.Command() == "help":
		return services.HelpText, nil
	default:
		ev, err = h.svc.Submit(ctx, userID, strings.TrimSpace(msg.Text))
	}

	if errors.Is(err, survey.ErrCompleted) {
		return services.CompletedHintText, nil
	}
	if err != nil {
		h.log.Error("telegram update failed", "user_id", userID, "error", err)
		return services.ErrorText, nil
	}
	return services.Render(ev)
}
