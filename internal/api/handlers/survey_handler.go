package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	"github.com/markdave123-py/supplement-advisor/internal/core/survey"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// SurveyService is the part of survey.Service the HTTP layer drives.
type SurveyService interface {
	Start(ctx context.Context, userID string, profile survey.Profile) (*models.Event, error)
	Reset(ctx context.Context, userID string, profile survey.Profile) (*models.Event, error)
	Submit(ctx context.Context, userID, text string) (*models.Event, error)
	Current(ctx context.Context, userID string) (*models.Event, error)
	Recommend(ctx context.Context, topic string, answers []models.Answer) models.Recommendation
}

// CatalogReader exposes the catalog views the API lists.
type CatalogReader interface {
	Topics(ctx context.Context) []models.Topic
	Snapshot(ctx context.Context) *models.Catalog
}

type SurveyHandler struct {
	svc     SurveyService
	catalog CatalogReader
	log     *logger.Logger
}

func NewSurveyHandler(svc SurveyService, cat CatalogReader, log *logger.Logger) *SurveyHandler {
	return &SurveyHandler{svc: svc, catalog: cat, log: log.With("handler", "SurveyHandler")}
}

// ListTopics returns the selectable topics.
func (h *SurveyHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"topics": h.catalog.Topics(r.Context())})
}

// ListQuestions returns the full ordered question list for one topic.
func (h *SurveyHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	cat := h.catalog.Snapshot(r.Context())
	topic, ok := cat.FindTopic(chi.URLParam(r, "topic"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown topic")
		return
	}
	questions := catalog.QuestionsFor(cat, topic.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"topic":     topic,
		"questions": questions,
		"total":     len(questions) + 1,
	})
}

type profileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

func (h *SurveyHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	h.startOrReset(w, r, h.svc.Start)
}

func (h *SurveyHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.startOrReset(w, r, h.svc.Reset)
}

func (h *SurveyHandler) startOrReset(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, survey.Profile) (*models.Event, error)) {
	var req profileRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	ev, err := fn(r.Context(), chi.URLParam(r, "userID"), survey.Profile{Username: req.Username, FirstName: req.FirstName})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *SurveyHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ev, err := h.svc.Submit(r.Context(), chi.URLParam(r, "userID"), req.Answer)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *SurveyHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ev, err := h.svc.Current(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type recommendRequest struct {
	Topic   string          `json:"topic"`
	Answers []models.Answer `json:"answers"`
}

// Recommend scores a complete answer set in one call, without a session.
func (h *SurveyHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Recommend(r.Context(), req.Topic, req.Answers))
}

func (h *SurveyHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, survey.ErrCompleted) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.log.Error("survey request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
