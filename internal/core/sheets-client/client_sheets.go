package sheetsclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const (
	TopicsRange     = "Categories!A2:B"
	QuestionsRange  = "Questions!A2:E"
	RulesRange      = "AnswerScores!A2:F"
	BaseScoresRange = "BaseScores!A2:D"
	ProductsRange   = "supplements!A2:J"
)

var _ core.CatalogSource = (*SheetsClient)(nil)

type SheetsClient struct {
	srv           *sheets.Service
	spreadsheetID string
	log           *logger.Logger
}

// Credentials selects how the client authenticates. A service-account file
// wins over an API key when both are set.
type Credentials struct {
	File   string
	APIKey string
}

func NewSheetsClient(ctx context.Context, spreadsheetID string, creds Credentials, log *logger.Logger) (*SheetsClient, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id not set")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	switch {
	case creds.File != "":
		opts = append(opts, option.WithCredentialsFile(creds.File))
	case creds.APIKey != "":
		opts = append(opts, option.WithAPIKey(creds.APIKey))
	default:
		return nil, errors.New("google credentials not set")
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	log.Info("Google Sheets client ready", "spreadsheet_id", spreadsheetID)

	return &SheetsClient{srv: srv, spreadsheetID: spreadsheetID, log: log.With("service", "SheetsClient")}, nil
}

// LoadCatalog reads all five tabs concurrently. Any tab failing fails the load,
// so the cache never swaps in a partial catalog.
func (c *SheetsClient) LoadCatalog(ctx context.Context) (*models.Catalog, error) {
	var topics, questions, rules, baseScores, products [][]interface{}

	g, gctx := errgroup.WithContext(ctx)
	fetch := func(rng string, dst *[][]interface{}) {
		g.Go(func() error {
			rows, err := c.values(gctx, rng)
			if err != nil {
				return fmt.Errorf("read %s: %w", rng, err)
			}
			*dst = rows
			return nil
		})
	}
	fetch(TopicsRange, &topics)
	fetch(QuestionsRange, &questions)
	fetch(RulesRange, &rules)
	fetch(BaseScoresRange, &baseScores)
	fetch(ProductsRange, &products)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	cat := &models.Catalog{
		Topics:     ParseTopics(topics),
		Questions:  ParseQuestions(questions),
		Rules:      ParseRules(rules),
		BaseScores: ParseBaseScores(baseScores),
		Products:   ParseProducts(products),
		LoadedAt:   time.Now(),
	}
	c.log.Debug("sheets read",
		"topic_rows", len(topics),
		"question_rows", len(questions),
		"rule_rows", len(rules),
		"base_score_rows", len(baseScores),
		"product_rows", len(products),
	)
	return cat, nil
}

func (c *SheetsClient) values(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
