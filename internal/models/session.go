package models

import "time"

// Phase is the lifecycle phase of a survey session.
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseTopicSelection Phase = "topic_selection"
	PhaseQuestions      Phase = "questions"
	PhaseCompleted      Phase = "completed"
)

// SurveySession is one respondent's in-progress survey.
//
// CurrentIndex counts the topic prompt as position 0, so while answering
// question i the index is i+1.
type SurveySession struct {
	UserID        string    `db:"user_id" json:"user_id"`
	Username      string    `db:"username" json:"username,omitempty"`
	FirstName     string    `db:"first_name" json:"first_name,omitempty"`
	Phase         Phase     `db:"phase" json:"phase"`
	SelectedTopic string    `db:"selected_topic" json:"selected_topic,omitempty"`
	CurrentIndex  int       `db:"current_index" json:"current_index"`
	Answers       []Answer  `db:"answers" json:"answers"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastActivity  time.Time `db:"last_activity" json:"last_activity"`
}

// NewSurveySession returns a fresh session in PhaseNotStarted.
func NewSurveySession(userID string, now time.Time) *SurveySession {
	return &SurveySession{
		UserID:       userID,
		Phase:        PhaseNotStarted,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Clone returns a deep copy so stores never share answer slices with callers.
func (s *SurveySession) Clone() *SurveySession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Answers = append([]Answer(nil), s.Answers...)
	return &cp
}

// Expired reports whether the session has been idle longer than ttl.
func (s *SurveySession) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// EventKind tells the presentation layer what to render.
type EventKind string

const (
	EventTopicPrompt EventKind = "topic_prompt"
	EventQuestion    EventKind = "question"
	EventCompleted   EventKind = "completed"
)

// Progress is a 1-based position out of the total question count, topic prompt included.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Event is what the survey emits after each step.
type Event struct {
	Kind         EventKind       `json:"kind"`
	UserID       string          `json:"user_id"`
	Greeting     string          `json:"greeting,omitempty"`
	Topic        string          `json:"topic,omitempty"`
	QuestionID   string          `json:"question_id,omitempty"`
	Text         string          `json:"text,omitempty"`
	Options      []string        `json:"options,omitempty"`
	Progress     *Progress       `json:"progress,omitempty"`
	CompletionID string          `json:"completion_id,omitempty"`
	Main         []ScoredProduct `json:"main,omitempty"`
	Additional   []ScoredProduct `json:"additional,omitempty"`
}
