// Package survey runs the multi-turn questionnaire: per-user session state,
// phase transitions and the hand-off to scoring once the last answer is in.
package survey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/supplement-advisor/internal/core"
	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	"github.com/markdave123-py/supplement-advisor/internal/core/scoring"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const DefaultSessionTTL = 30 * time.Minute

// Profile carries optional display data about the respondent.
type Profile struct {
	Username  string
	FirstName string
}

type Options struct {
	SessionTTL time.Duration
	Now        func() time.Time
}

// Service orchestrates sessions. Calls for the same user id are serialized;
// calls for different users run concurrently.
type Service struct {
	store      core.SessionStore
	catalog    *catalog.Cache
	ranker     scoring.Ranker
	sessionTTL time.Duration
	locks      *keyedLocks
	log        *logger.Logger
	now        func() time.Time
}

func NewService(store core.SessionStore, cache *catalog.Cache, ranker scoring.Ranker, log *logger.Logger, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      store,
		catalog:    cache,
		ranker:     ranker,
		sessionTTL: opts.SessionTTL,
		locks:      newKeyedLocks(),
		log:        log.With("service", "SurveyService"),
		now:        opts.Now,
	}
}

// Start clears the user's session and returns the topic prompt.
func (s *Service) Start(ctx context.Context, userID string, profile Profile) (*models.Event, error) {
	return s.withSession(ctx, userID, func(sess *models.SurveySession, cat *models.Catalog) (*models.Event, error) {
		applyProfile(sess, profile)
		if err := newMachine(sess).start(ctx, s.now()); err != nil {
			return nil, err
		}
		s.log.Info("survey started", "user_id", userID)
		return s.topicPrompt(sess, cat), nil
	})
}

// Reset is Start under the name the restart command maps to.
func (s *Service) Reset(ctx context.Context, userID string, profile Profile) (*models.Event, error) {
	return s.Start(ctx, userID, profile)
}

// Submit feeds one answer into the user's session and returns what to show next.
// Unknown users get a session created on the fly.
func (s *Service) Submit(ctx context.Context, userID, text string) (*models.Event, error) {
	return s.withSession(ctx, userID, func(sess *models.SurveySession, cat *models.Catalog) (*models.Event, error) {
		m := newMachine(sess)
		consumed, err := m.submit(ctx, cat, text, s.now())
		if err != nil {
			return nil, err
		}
		if !consumed {
			return s.topicPrompt(sess, cat), nil
		}
		return s.next(sess, cat), nil
	})
}

// Current re-emits the prompt the user is expected to answer, without changing anything.
func (s *Service) Current(ctx context.Context, userID string) (*models.Event, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	cat := s.catalog.Snapshot(ctx)
	switch sess.Phase {
	case models.PhaseCompleted:
		return nil, ErrCompleted
	case models.PhaseQuestions:
		return s.next(sess, cat), nil
	default:
		return s.topicPrompt(sess, cat), nil
	}
}

// Recommend scores a complete answer set without touching any session.
func (s *Service) Recommend(ctx context.Context, topic string, answers []models.Answer) models.Recommendation {
	cat := s.catalog.Snapshot(ctx)
	return s.ranker.Recommend(cat, cat.ResolveTopic(topic), answers)
}

// SweepExpired drops sessions idle longer than the inactivity window.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.store.SweepExpired(ctx, s.now().Add(-s.sessionTTL))
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	if n > 0 {
		s.log.Info("expired sessions swept", "count", n)
	}
	return n, nil
}

func (s *Service) withSession(ctx context.Context, userID string, fn func(*models.SurveySession, *models.Catalog) (*models.Event, error)) (*models.Event, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	ev, err := fn(sess, s.catalog.Snapshot(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session %s: %w", userID, err)
	}
	return ev, nil
}

// load fetches the session, replacing it with a fresh one when it sat idle too long.
func (s *Service) load(ctx context.Context, userID string) (*models.SurveySession, error) {
	now := s.now()
	sess, err := s.store.GetOrCreate(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", userID, err)
	}
	if sess.Expired(now, s.sessionTTL) {
		s.log.Debug("session expired, starting over", "user_id", userID, "last_activity", sess.LastActivity)
		fresh := models.NewSurveySession(userID, now)
		fresh.Username, fresh.FirstName = sess.Username, sess.FirstName
		sess = fresh
	}
	return sess, nil
}

func (s *Service) next(sess *models.SurveySession, cat *models.Catalog) *models.Event {
	if sess.Phase == models.PhaseCompleted {
		return s.completed(sess, cat)
	}
	questions := catalog.QuestionsFor(cat, sess.SelectedTopic)
	i := sess.CurrentIndex - 1
	if i < 0 || i >= len(questions) {
		return s.completed(sess, cat)
	}
	q := questions[i]
	return &models.Event{
		Kind:       models.EventQuestion,
		UserID:     sess.UserID,
		Topic:      sess.SelectedTopic,
		QuestionID: q.ID,
		Text:       q.Text,
		Options:    q.Options,
		Progress: &models.Progress{
			Current: sess.CurrentIndex + 1,
			Total:   catalog.TotalQuestionCount(cat, sess.SelectedTopic),
		},
	}
}

func (s *Service) topicPrompt(sess *models.SurveySession, cat *models.Catalog) *models.Event {
	return &models.Event{
		Kind:     models.EventTopicPrompt,
		UserID:   sess.UserID,
		Greeting: sess.FirstName,
		Text:     "Choose the topic you are interested in",
		Options:  catalog.TopicOptions(cat),
	}
}

func (s *Service) completed(sess *models.SurveySession, cat *models.Catalog) *models.Event {
	rec := s.recommend(sess, cat)
	ev := &models.Event{
		Kind:         models.EventCompleted,
		UserID:       sess.UserID,
		Topic:        sess.SelectedTopic,
		CompletionID: uuid.NewString(),
		Main:         rec.Main,
		Additional:   rec.Additional,
	}
	s.log.Info("survey completed",
		"user_id", sess.UserID,
		"topic", sess.SelectedTopic,
		"answers", len(sess.Answers),
		"main", len(rec.Main),
		"additional", len(rec.Additional),
		"completion_id", ev.CompletionID,
	)
	return ev
}

// recommend never blocks completion: a failure yields empty tiers.
func (s *Service) recommend(sess *models.SurveySession, cat *models.Catalog) (rec models.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("recommendation failed", "user_id", sess.UserID, "panic", r)
			rec = models.Recommendation{Main: []models.ScoredProduct{}, Additional: []models.ScoredProduct{}}
		}
	}()
	return s.ranker.Recommend(cat, sess.SelectedTopic, sess.Answers)
}

func applyProfile(sess *models.SurveySession, p Profile) {
	if p.Username != "" {
		sess.Username = p.Username
	}
	if p.FirstName != "" {
		sess.FirstName = p.FirstName
	}
}
