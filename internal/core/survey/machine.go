package survey

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/markdave123-py/supplement-advisor/internal/core/catalog"
	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// ErrCompleted is returned when an answer arrives after the survey finished.
var ErrCompleted = errors.New("survey already completed")

const (
	eventStart       = "start"
	eventChooseTopic = "choose_topic"
	eventComplete    = "complete"
)

// machine drives one session through its phases. Phases only move forward;
// the start event is the single way back, and it clears everything.
type machine struct {
	sess *models.SurveySession
	fsm  *fsm.FSM
}

func newMachine(sess *models.SurveySession) *machine {
	if sess.Phase == "" {
		sess.Phase = models.PhaseNotStarted
	}
	m := &machine{sess: sess}
	m.fsm = fsm.NewFSM(
		string(sess.Phase),
		fsm.Events{
			{Name: eventStart, Src: []string{
				string(models.PhaseNotStarted),
				string(models.PhaseTopicSelection),
				string(models.PhaseQuestions),
				string(models.PhaseCompleted),
			}, Dst: string(models.PhaseTopicSelection)},
			{Name: eventChooseTopic, Src: []string{string(models.PhaseTopicSelection)}, Dst: string(models.PhaseQuestions)},
			{Name: eventComplete, Src: []string{string(models.PhaseQuestions)}, Dst: string(models.PhaseCompleted)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.sess.Phase = models.Phase(e.Dst)
			},
		},
	)
	return m
}

func (m *machine) fire(ctx context.Context, event string) error {
	err := m.fsm.Event(ctx, event)
	var same fsm.NoTransitionError
	if errors.As(err, &same) {
		return nil
	}
	return err
}

// start clears all collected state and moves to topic selection.
func (m *machine) start(ctx context.Context, now time.Time) error {
	m.sess.SelectedTopic = ""
	m.sess.CurrentIndex = 0
	m.sess.Answers = nil
	m.sess.LastActivity = now
	return m.fire(ctx, eventStart)
}

// submit records text at the current position and advances.
// It reports whether text was consumed: a not-started session is started
// instead and the text is dropped.
func (m *machine) submit(ctx context.Context, cat *models.Catalog, text string, now time.Time) (bool, error) {
	switch m.sess.Phase {
	case models.PhaseNotStarted:
		return false, m.start(ctx, now)

	case models.PhaseTopicSelection:
		m.sess.SelectedTopic = cat.ResolveTopic(text)
		m.sess.CurrentIndex = 1
		m.sess.LastActivity = now
		if err := m.fire(ctx, eventChooseTopic); err != nil {
			return false, err
		}

	case models.PhaseQuestions:
		questions := catalog.QuestionsFor(cat, m.sess.SelectedTopic)
		i := m.sess.CurrentIndex - 1
		if i >= 0 && i < len(questions) {
			m.sess.Answers = append(m.sess.Answers, models.Answer{
				Index:      i,
				QuestionID: questions[i].ID,
				Text:       text,
			})
		}
		m.sess.CurrentIndex++
		m.sess.LastActivity = now

	case models.PhaseCompleted:
		return false, ErrCompleted

	default:
		return false, errors.New("unknown survey phase " + string(m.sess.Phase))
	}

	if IsCompleted(cat, m.sess) {
		if err := m.fire(ctx, eventComplete); err != nil {
			return true, err
		}
	}
	return true, nil
}

// IsCompleted reports whether every question for the selected topic was answered.
func IsCompleted(cat *models.Catalog, sess *models.SurveySession) bool {
	if sess.Phase == models.PhaseNotStarted || sess.Phase == models.PhaseTopicSelection {
		return false
	}
	return sess.CurrentIndex >= catalog.TotalQuestionCount(cat, sess.SelectedTopic)
}
