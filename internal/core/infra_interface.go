package core

import (
	"context"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// CatalogSource loads a complete catalog snapshot from the external data source.
// It abstracts Google Sheets / S3 so the cache never depends on a specific backend.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) (*models.Catalog, error)
}

// SessionStore persists survey sessions keyed by external user id.
// Callers serialize access per key; implementations only need to be safe
// for concurrent use across different keys.
type SessionStore interface {
	// GetOrCreate returns a copy of the stored session, or a fresh
	// not-started session when none exists.
	GetOrCreate(ctx context.Context, userID string, now time.Time) (*models.SurveySession, error)
	Put(ctx context.Context, session *models.SurveySession) error
	// SweepExpired drops sessions idle since before cutoff and reports how many went.
	SweepExpired(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// MessageSender delivers rendered chat messages to the messaging provider.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID string, text string, options []string) error
}
