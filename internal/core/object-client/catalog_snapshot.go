package objectclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const snapshotContentType = "application/json"

var _ core.CatalogSource = (*SnapshotSource)(nil)

// SnapshotSource serves the catalog from a JSON object previously written by Publish.
type SnapshotSource struct {
	obj    core.ObjectClient
	bucket string
	key    string
}

func NewSnapshotSource(obj core.ObjectClient, bucket, key string) *SnapshotSource {
	return &SnapshotSource{obj: obj, bucket: bucket, key: key}
}

func (s *SnapshotSource) LoadCatalog(ctx context.Context) (*models.Catalog, error) {
	raw, err := s.obj.GetFile(ctx, s.bucket, s.key)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(raw)
}

// Publish writes cat as the snapshot object and returns its URL.
func (s *SnapshotSource) Publish(ctx context.Context, cat *models.Catalog) (string, error) {
	raw, err := EncodeSnapshot(cat)
	if err != nil {
		return "", err
	}
	return s.obj.UploadFile(ctx, s.bucket, s.key, raw, snapshotContentType)
}

func EncodeSnapshot(cat *models.Catalog) ([]byte, error) {
	if cat == nil {
		return nil, errors.New("nil catalog")
	}
	snap := *cat
	// A published snapshot is real data even when it started as the fallback.
	snap.Fallback = false
	return json.Marshal(&snap)
}

func DecodeSnapshot(raw []byte) (*models.Catalog, error) {
	var cat models.Catalog
	if err := json.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	if len(cat.Topics) == 0 && len(cat.Products) == 0 {
		return nil, errors.New("catalog snapshot is empty")
	}
	for i := range cat.Rules {
		cat.Rules[i].Kind = models.ParseRuleKind(string(cat.Rules[i].Kind))
	}
	return &cat, nil
}
