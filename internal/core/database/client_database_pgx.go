package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

var _ core.SessionStore = (*DatabaseClient)(nil)

// DatabaseClient is the Postgres-backed session store.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, databaseURL string) (*DatabaseClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return NewDatabaseClientWithDB(db), nil
}

// NewDatabaseClientWithDB wraps an already opened and bootstrapped handle.
func NewDatabaseClientWithDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) GetOrCreate(ctx context.Context, userID string, now time.Time) (*models.SurveySession, error) {
	const q = `
		SELECT user_id, username, first_name, phase, selected_topic, current_index, answers, created_at, last_activity
		FROM survey_sessions
		WHERE user_id = $1
	`
	var (
		s       models.SurveySession
		phase   string
		answers []byte
	)
	err := c.db.QueryRowContext(ctx, q, userID).Scan(
		&s.UserID, &s.Username, &s.FirstName, &phase, &s.SelectedTopic, &s.CurrentIndex, &answers, &s.CreatedAt, &s.LastActivity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewSurveySession(userID, now), nil
	}
	if err != nil {
		return nil, err
	}
	s.Phase = models.Phase(phase)
	if err := json.Unmarshal(answers, &s.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &s, nil
}

func (c *DatabaseClient) Put(ctx context.Context, s *models.SurveySession) error {
	if s == nil {
		return errors.New("nil session")
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return err
	}
	if s.Answers == nil {
		answers = []byte("[]")
	}
	const q = `
		INSERT INTO survey_sessions
			(user_id, username, first_name, phase, selected_topic, current_index, answers, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			phase = EXCLUDED.phase,
			selected_topic = EXCLUDED.selected_topic,
			current_index = EXCLUDED.current_index,
			answers = EXCLUDED.answers,
			last_activity = EXCLUDED.last_activity
	`
	_, err = c.db.ExecContext(ctx, q,
		s.UserID, s.Username, s.FirstName, string(s.Phase), s.SelectedTopic, s.CurrentIndex, answers, s.CreatedAt, s.LastActivity)
	return err
}

func (c *DatabaseClient) SweepExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM survey_sessions WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
