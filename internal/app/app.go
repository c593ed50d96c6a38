package app

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/api/handlers"
	"github.com/markdave123-py/supplement-advisor/internal/config"
	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	db "github.com/markdave123-py/supplement-advisor/internal/core/database"
	"github.com/markdave123-py/supplement-advisor/internal/core/dispatch"
	objectclient "github.com/markdave123-py/supplement-advisor/internal/core/object-client"
	"github.com/markdave123-py/supplement-advisor/internal/core/scoring"
	"github.com/markdave123-py/supplement-advisor/internal/core/sessionstore"
	sheetsclient "github.com/markdave123-py/supplement-advisor/internal/core/sheets-client"
	"github.com/markdave123-py/supplement-advisor/internal/core/survey"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/services"
)

type App struct {
	Log        *logger.Logger
	Catalog    *catalog.Cache
	Store      core.SessionStore
	Survey     *survey.Service
	Dispatcher *dispatch.Dispatcher
	Server     *Server
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var obj core.ObjectClient
	if cfg.S3Enabled() {
		s3c, err := objectclient.NewS3Client(appCtx, cfg, log)
		if err != nil {
			return nil, err
		}
		obj = s3c
	}

	source, err := newCatalogSource(appCtx, cfg, obj, log)
	if err != nil {
		return nil, err
	}
	cache := catalog.NewCache(source, log, catalog.Options{TTL: cfg.CatalogTTL, Timeout: cfg.CatalogRefreshTimeout})
	if err := cache.Refresh(appCtx); err != nil {
		log.Warn("initial catalog load failed; serving fallback until the next refresh", "error", err)
	}

	store, err := newSessionStore(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("session store ready", "kind", cfg.SessionStore)

	svc := survey.NewService(store, cache, scoring.NewRanker(cfg.MainRecommendations, cfg.AdditionalRecommendations), log, survey.Options{SessionTTL: cfg.SessionTTL})

	var dispatcher *dispatch.Dispatcher
	if cfg.TelegramBotToken != "" {
		tg, err := services.NewTelegramService(cfg.TelegramBotToken, services.DefaultHTTPTimeout, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		dispatcher = dispatch.NewDispatcher(tg, log, dispatch.Config{})
		dispatcher.Start(ctx, cfg.TelegramWorkers)
	}

	var publisher handlers.Publisher
	if obj != nil {
		publisher = objectclient.NewSnapshotSource(obj, cfg.BucketName, cfg.CatalogObjectKey)
	}

	routes := Routes{
		Survey: handlers.NewSurveyHandler(svc, cache, log),
		Admin:  handlers.NewAdminHandler(cache, publisher, svc, log),
	}
	if dispatcher != nil {
		routes.Telegram = handlers.NewTelegramHandler(svc, dispatcher, cfg.TelegramBotToken, log)
	}
	server := NewServer(cfg, log, routes)

	a := &App{Log: log, Catalog: cache, Store: store, Survey: svc, Dispatcher: dispatcher, Server: server}
	go a.sweepLoop(ctx, cfg.SessionTTL)
	return a, nil
}

func newCatalogSource(ctx context.Context, cfg *config.Config, obj core.ObjectClient, log *logger.Logger) (core.CatalogSource, error) {
	switch cfg.CatalogSource {
	case config.CatalogSourceSheets:
		return sheetsclient.NewSheetsClient(ctx, cfg.SpreadsheetID, sheetsclient.Credentials{
			File:   cfg.GoogleCredentialsFile,
			APIKey: cfg.GoogleAPIKey,
		}, log)
	case config.CatalogSourceS3:
		if obj == nil {
			return nil, fmt.Errorf("catalog source %q needs AWS credentials and BUCKET_NAME", cfg.CatalogSource)
		}
		return objectclient.NewSnapshotSource(obj, cfg.BucketName, cfg.CatalogObjectKey), nil
	case config.CatalogSourceFallback:
		return catalog.FallbackSource{}, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.CatalogSource)
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.SessionStore, error) {
	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		return db.NewDatabaseClient(ctx, cfg.DatabaseURL)
	case config.SessionStoreRedis:
		return sessionstore.NewRedisStore(ctx, cfg.RedisAddr, cfg.SessionTTL, log)
	case config.SessionStoreMemory:
		return sessionstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// sweepLoop removes idle sessions once per TTL until ctx ends.
func (a *App) sweepLoop(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = survey.DefaultSessionTTL
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.Survey.SweepExpired(ctx); err != nil {
				a.Log.Warn("periodic session sweep failed", "error", err)
			}
		}
	}
}

func (a *App) Close() {
	if a.Dispatcher != nil {
		a.Dispatcher.Stop()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
