package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/supplement-advisor/internal/api/middlewares"
	"github.com/markdave123-py/supplement-advisor/internal/config"
	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	"github.com/markdave123-py/supplement-advisor/internal/core/scoring"
	"github.com/markdave123-py/supplement-advisor/internal/core/sessionstore"
	"github.com/markdave123-py/supplement-advisor/internal/core/survey"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
)

func testRouter(t *testing.T) (http.Handler, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		Port:                  "0",
		AllowedOrigins:        []string{"http://localhost:5173"},
		CatalogSource:         config.CatalogSourceFallback,
		SessionStore:          config.SessionStoreMemory,
		CatalogRefreshTimeout: time.Second,
		JWTSecret:             "router-secret",
	}
	log := logger.NewNop()
	cache := catalog.NewCache(catalog.FallbackSource{}, log, catalog.Options{})
	svc := survey.NewService(sessionstore.NewMemoryStore(), cache, scoring.NewRanker(3, 2), log, survey.Options{})
	return NewRouter(cfg, Routes{
		Survey: handlers.NewSurveyHandler(svc, cache, log),
		Admin:  handlers.NewAdminHandler(cache, nil, svc, log),
	}), cfg
}

func TestRouterPublicAndProtected(t *testing.T) {
	r, cfg := testRouter(t)

	cases := []struct {
		method, path string
		token        bool
		want         int
	}{
		{http.MethodGet, "/healthz", false, http.StatusOK},
		{http.MethodGet, "/api/topics", false, http.StatusOK},
		{http.MethodPost, "/api/sessions/u1/start", false, http.StatusOK},
		{http.MethodGet, "/api/sessions/u1", false, http.StatusOK},
		{http.MethodGet, "/api/admin/catalog", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/catalog", true, http.StatusOK},
		{http.MethodPost, "/api/admin/sessions/sweep", true, http.StatusOK},
		{http.MethodPost, "/webhook/anything", false, http.StatusNotFound},
	}
	token, err := appMiddleware.GenerateJWT(cfg.JWTSecret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, strings.NewReader(""))
		if c.token {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != c.want {
			t.Fatalf("%s %s: status=%d, want %d (%s)", c.method, c.path, rr.Code, c.want, rr.Body.String())
		}
	}
}

func TestRouterCORS(t *testing.T) {
	r, _ := testRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/topics", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Allow-Origin=%q", got)
	}
}
