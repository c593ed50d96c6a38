package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// CatalogAdmin is the cache surface the admin endpoints need.
type CatalogAdmin interface {
	Snapshot(ctx context.Context) *models.Catalog
	Refresh(ctx context.Context) error
}

// Publisher writes a catalog snapshot to durable storage.
type Publisher interface {
	Publish(ctx context.Context, cat *models.Catalog) (string, error)
}

// Sweeper drops idle sessions.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

type AdminHandler struct {
	catalog   CatalogAdmin
	publisher Publisher
	sweeper   Sweeper
	log       *logger.Logger
}

// NewAdminHandler builds the handler. publisher may be nil when no object
// storage is configured.
func NewAdminHandler(cat CatalogAdmin, publisher Publisher, sweeper Sweeper, log *logger.Logger) *AdminHandler {
	return &AdminHandler{catalog: cat, publisher: publisher, sweeper: sweeper, log: log.With("handler", "AdminHandler")}
}

type catalogSummary struct {
	Topics     int       `json:"topics"`
	Questions  int       `json:"questions"`
	Rules      int       `json:"rules"`
	BaseScores int       `json:"base_scores"`
	Products   int       `json:"products"`
	LoadedAt   time.Time `json:"loaded_at"`
	Fallback   bool      `json:"fallback"`
}

func summarize(cat *models.Catalog) catalogSummary {
	return catalogSummary{
		Topics:     len(cat.Topics),
		Questions:  len(cat.Questions),
		Rules:      len(cat.Rules),
		BaseScores: len(cat.BaseScores),
		Products:   len(cat.Products),
		LoadedAt:   cat.LoadedAt,
		Fallback:   cat.Fallback,
	}
}

func (h *AdminHandler) CatalogSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, summarize(h.catalog.Snapshot(r.Context())))
}

// RefreshCatalog forces a reload. On failure the previous snapshot stays live
// and the response says so.
func (h *AdminHandler) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		h.log.Warn("forced refresh failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":   err.Error(),
			"catalog": summarize(h.catalog.Snapshot(r.Context())),
		})
		return
	}
	writeJSON(w, http.StatusOK, summarize(h.catalog.Snapshot(r.Context())))
}

func (h *AdminHandler) PublishCatalog(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}
	url, err := h.publisher.Publish(r.Context(), h.catalog.Snapshot(r.Context()))
	if err != nil {
		h.log.Error("catalog publish failed", "error", err)
		writeError(w, http.StatusBadGateway, "publish failed")
		return
	}
	h.log.Info("catalog published", "url", url)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *AdminHandler) SweepSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.sweeper.SweepExpired(r.Context())
	if err != nil {
		h.log.Error("session sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
