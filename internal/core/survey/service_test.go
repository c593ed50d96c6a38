package survey

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	"github.com/markdave123-py/supplement-advisor/internal/core/scoring"
	"github.com/markdave123-py/supplement-advisor/internal/core/sessionstore"
	"github.com/markdave123-py/supplement-advisor/internal/logger"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

type staticSource struct{ cat *models.Catalog }

func (s staticSource) LoadCatalog(context.Context) (*models.Catalog, error) { return s.cat, nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *sessionstore.MemoryStore
	clock *testClock
}

func newFixture(t *testing.T, src interface {
	LoadCatalog(context.Context) (*models.Catalog, error)
}) fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	store := sessionstore.NewMemoryStore()
	cache := catalog.NewCache(src, logger.NewNop(), catalog.Options{})
	svc := NewService(store, cache, scoring.NewRanker(3, 2), logger.NewNop(), Options{Now: clock.Now})
	return fixture{svc: svc, store: store, clock: clock}
}

func (f fixture) session(t *testing.T, userID string) *models.SurveySession {
	t.Helper()
	sess, err := f.store.GetOrCreate(context.Background(), userID, f.clock.Now())
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return sess
}

func workedExampleCatalog() *models.Catalog {
	return &models.Catalog{
		Topics: []models.Topic{{ID: "energy", Name: "Energy"}},
		Questions: []models.Question{
			{ID: "q1", Topic: "energy", Text: "Level?", Options: []string{"low", "high"}},
			{ID: "q2", Topic: "energy", Text: "Tired?", Options: []string{"no", "yes"}},
		},
		Rules: []models.ScoringRule{
			{QuestionID: "q1", Answer: "high", ProductCode: "P1", Delta: 3},
			{QuestionID: "q2", Answer: "yes", ProductCode: "P1", Delta: 2},
			{QuestionID: "q1", Answer: "high", ProductCode: "P2", Delta: 1},
		},
		BaseScores: []models.BaseScoreRule{{ProductCode: "P1", Topic: "energy", Value: 1}},
		Products: []models.Product{
			{Code: "P1", Name: "One", Active: true},
			{Code: "P2", Name: "Two", Active: true},
		},
	}
}

func TestServiceWorkedExample(t *testing.T) {
	f := newFixture(t, staticSource{workedExampleCatalog()})
	ctx := context.Background()

	ev, err := f.svc.Start(ctx, "u1", Profile{FirstName: "Ann"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ev.Kind != models.EventTopicPrompt || ev.Greeting != "Ann" || len(ev.Options) != 1 || ev.Options[0] != "Energy" {
		t.Fatalf("start event=%+v", ev)
	}

	steps := []struct {
		answer   string
		kind     models.EventKind
		question string
		current  int
	}{
		{"energy", models.EventQuestion, "q1", 2},
		{"high", models.EventQuestion, "q2", 3},
		{"yes", models.EventCompleted, "", 0},
	}
	for _, s := range steps {
		ev, err = f.svc.Submit(ctx, "u1", s.answer)
		if err != nil {
			t.Fatalf("Submit(%q): %v", s.answer, err)
		}
		if ev.Kind != s.kind || ev.QuestionID != s.question {
			t.Fatalf("Submit(%q) event=%+v, want %s %s", s.answer, ev, s.kind, s.question)
		}
		if s.kind == models.EventQuestion && (ev.Progress.Current != s.current || ev.Progress.Total != 3) {
			t.Fatalf("Submit(%q) progress=%+v, want %d of 3", s.answer, ev.Progress, s.current)
		}
	}

	if len(ev.Main) != 2 || ev.Main[0].Product.Code != "P1" || ev.Main[0].Score != 6 ||
		ev.Main[1].Product.Code != "P2" || ev.Main[1].Score != 1 {
		t.Fatalf("main=%+v, want P1=6 P2=1", ev.Main)
	}
	if ev.CompletionID == "" {
		t.Fatalf("missing completion id")
	}
	if sess := f.session(t, "u1"); sess.Phase != models.PhaseCompleted {
		t.Fatalf("phase=%s, want completed", sess.Phase)
	}
}

func TestServiceCompletesExactlyOnce(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()
	cat := catalog.Fallback()
	total := catalog.TotalQuestionCount(cat, "energy")

	if _, err := f.svc.Start(ctx, "u1", Profile{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	completed := 0
	for i := 0; i < total; i++ {
		answer := "no"
		if i == 0 {
			answer = "Energy and vitality"
		}
		ev, err := f.svc.Submit(ctx, "u1", answer)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if ev.Kind == models.EventCompleted {
			completed++
			if i != total-1 {
				t.Fatalf("completed early at submit %d of %d", i+1, total)
			}
		}
	}
	if completed != 1 {
		t.Fatalf("completed %d times, want 1", completed)
	}

	sess := f.session(t, "u1")
	if sess.SelectedTopic != "energy" {
		t.Fatalf("topic=%q, want energy", sess.SelectedTopic)
	}
	if len(sess.Answers) != total-1 {
		t.Fatalf("answers=%d, want %d", len(sess.Answers), total-1)
	}
	for i, a := range sess.Answers {
		if a.Index != i {
			t.Fatalf("answer %d has index %d", i, a.Index)
		}
	}

	if _, err := f.svc.Submit(ctx, "u1", "more"); !errors.Is(err, ErrCompleted) {
		t.Fatalf("submit after completion err=%v, want ErrCompleted", err)
	}
	if _, err := f.svc.Current(ctx, "u1"); !errors.Is(err, ErrCompleted) {
		t.Fatalf("Current after completion err=%v, want ErrCompleted", err)
	}
}

func TestServiceExcludeRule(t *testing.T) {
	cases := []struct {
		doctor   string
		wantIron bool
	}{
		{"yes", true},
		{"no", false},
		{"NO", false},
	}
	for _, c := range cases {
		f := newFixture(t, catalog.FallbackSource{})
		ctx := context.Background()
		f.svc.Start(ctx, "u", Profile{})
		f.svc.Submit(ctx, "u", "energy")
		var ev *models.Event
		for _, a := range []string{"almost always", "almost always", c.doctor, "almost never", "4+", "5+"} {
			var err error
			if ev, err = f.svc.Submit(ctx, "u", a); err != nil {
				t.Fatalf("submit %q: %v", a, err)
			}
		}
		if ev.Kind != models.EventCompleted {
			t.Fatalf("doctor=%q: event=%s, want completed", c.doctor, ev.Kind)
		}
		found := false
		for _, p := range append(append([]models.ScoredProduct{}, ev.Main...), ev.Additional...) {
			if p.Product.Code == "IRON-001" {
				found = true
			}
		}
		if found != c.wantIron {
			t.Fatalf("doctor=%q: iron recommended=%v, want %v", c.doctor, found, c.wantIron)
		}
	}
}

func TestServiceUnknownTopicCompletesImmediately(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "u1", Profile{})
	ev, err := f.svc.Submit(ctx, "u1", "astrology")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev.Kind != models.EventCompleted {
		t.Fatalf("event=%s, want completed", ev.Kind)
	}
	if len(ev.Main) != 0 || len(ev.Additional) != 0 {
		t.Fatalf("want empty tiers, got %+v / %+v", ev.Main, ev.Additional)
	}
	if sess := f.session(t, "u1"); sess.SelectedTopic != "astrology" {
		t.Fatalf("topic=%q, want literal astrology", sess.SelectedTopic)
	}
}

func TestServiceSubmitBeforeStart(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ev, err := f.svc.Submit(context.Background(), "new", "hello")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev.Kind != models.EventTopicPrompt {
		t.Fatalf("event=%s, want topic prompt", ev.Kind)
	}
	sess := f.session(t, "new")
	if sess.Phase != models.PhaseTopicSelection || sess.SelectedTopic != "" || len(sess.Answers) != 0 {
		t.Fatalf("session=%+v", sess)
	}
}

func TestServiceResetIdempotent(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "u1", Profile{Username: "ann"})
	f.svc.Submit(ctx, "u1", "sleep")
	f.svc.Submit(ctx, "u1", "often")

	if _, err := f.svc.Reset(ctx, "u1", Profile{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	once := f.session(t, "u1")
	if _, err := f.svc.Reset(ctx, "u1", Profile{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	twice := f.session(t, "u1")

	if once.Phase != models.PhaseTopicSelection || once.CurrentIndex != 0 || len(once.Answers) != 0 || once.SelectedTopic != "" {
		t.Fatalf("after reset=%+v", once)
	}
	if once.Phase != twice.Phase || once.CurrentIndex != twice.CurrentIndex ||
		len(once.Answers) != len(twice.Answers) || once.SelectedTopic != twice.SelectedTopic ||
		once.Username != twice.Username {
		t.Fatalf("reset twice %+v differs from once %+v", twice, once)
	}
	if twice.Username != "ann" {
		t.Fatalf("username=%q, want ann kept", twice.Username)
	}
}

func TestServiceCurrentReemitsPrompt(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "u1", Profile{})
	f.svc.Submit(ctx, "u1", "sleep")
	for i := 0; i < 2; i++ {
		ev, err := f.svc.Current(ctx, "u1")
		if err != nil {
			t.Fatalf("Current: %v", err)
		}
		if ev.Kind != models.EventQuestion || ev.QuestionID != "sleep_onset" {
			t.Fatalf("Current=%+v, want sleep_onset", ev)
		}
	}
}

func TestServiceSessionExpiry(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "u1", Profile{FirstName: "Ann"})
	f.svc.Submit(ctx, "u1", "sleep")

	f.clock.Advance(DefaultSessionTTL + time.Second)
	ev, err := f.svc.Submit(ctx, "u1", "often")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if ev.Kind != models.EventTopicPrompt || ev.Greeting != "Ann" {
		t.Fatalf("after expiry event=%+v, want topic prompt greeting Ann", ev)
	}
	if sess := f.session(t, "u1"); len(sess.Answers) != 0 || sess.Phase != models.PhaseTopicSelection {
		t.Fatalf("after expiry session=%+v", sess)
	}
}

func TestServiceSweepExpired(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "old", Profile{})
	f.clock.Advance(20 * time.Minute)
	f.svc.Start(ctx, "fresh", Profile{})
	f.clock.Advance(15 * time.Minute)

	n, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 || f.store.Len() != 1 {
		t.Fatalf("swept %d, left %d; want 1 and 1", n, f.store.Len())
	}
}

func TestServiceConcurrentSubmitsSameUser(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	f.svc.Start(ctx, "u1", Profile{})
	f.svc.Submit(ctx, "u1", "energy")
	remaining := catalog.TotalQuestionCount(catalog.Fallback(), "energy") - 1

	var wg sync.WaitGroup
	events := make(chan *models.Event, remaining)
	for i := 0; i < remaining; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := f.svc.Submit(ctx, "u1", "no")
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			events <- ev
		}()
	}
	wg.Wait()
	close(events)

	completed := 0
	for ev := range events {
		if ev.Kind == models.EventCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("completed %d times, want 1", completed)
	}
	if sess := f.session(t, "u1"); len(sess.Answers) != remaining {
		t.Fatalf("answers=%d, want %d (lost update)", len(sess.Answers), remaining)
	}
	if n := f.svc.locks.size(); n != 0 {
		t.Fatalf("lock table holds %d keys after all calls returned", n)
	}
}

func TestServiceConcurrentUsers(t *testing.T) {
	f := newFixture(t, catalog.FallbackSource{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 20; u++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			f.svc.Start(ctx, id, Profile{})
			f.svc.Submit(ctx, id, "sleep")
			for i := 0; i < 5; i++ {
				if _, err := f.svc.Submit(ctx, id, "often"); err != nil {
					t.Errorf("%s: %v", id, err)
				}
			}
		}(fmt.Sprintf("user-%d", u))
	}
	wg.Wait()

	for u := 0; u < 20; u++ {
		if sess := f.session(t, fmt.Sprintf("user-%d", u)); sess.Phase != models.PhaseCompleted {
			t.Fatalf("user-%d phase=%s, want completed", u, sess.Phase)
		}
	}
}

func TestServiceRecommendStateless(t *testing.T) {
	f := newFixture(t, staticSource{workedExampleCatalog()})
	rec := f.svc.Recommend(context.Background(), "Energy", []models.Answer{
		{QuestionID: "q1", Text: "High"},
		{QuestionID: "q2", Text: "yes"},
	})
	if len(rec.Main) != 2 || rec.Main[0].Score != 6 {
		t.Fatalf("rec=%+v", rec)
	}
	if f.store.Len() != 0 {
		t.Fatalf("Recommend touched the session store")
	}
}
