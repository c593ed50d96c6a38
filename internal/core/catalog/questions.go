package catalog

import (
	"context"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// QuestionCatalog answers "which questions does this topic ask" on top of the cache.
type QuestionCatalog struct {
	cache *Cache
}

func NewQuestionCatalog(cache *Cache) *QuestionCatalog {
	return &QuestionCatalog{cache: cache}
}

// QuestionsFor returns the topic's questions followed by the general ones.
func (q *QuestionCatalog) QuestionsFor(ctx context.Context, topic string) []models.Question {
	return QuestionsFor(q.cache.Snapshot(ctx), topic)
}

// TotalQuestionCount includes the topic-selection prompt.
func (q *QuestionCatalog) TotalQuestionCount(ctx context.Context, topic string) int {
	return TotalQuestionCount(q.cache.Snapshot(ctx), topic)
}

// TopicOptions lists the display names offered at the topic-selection prompt.
func (q *QuestionCatalog) TopicOptions(ctx context.Context) []string {
	return TopicOptions(q.cache.Snapshot(ctx))
}

// QuestionsFor concatenates the topic's own questions and the general ones.
// A topic the catalog does not know and that owns no questions yields nothing.
func QuestionsFor(cat *models.Catalog, topic string) []models.Question {
	own := cat.TopicQuestions(topic)
	if _, known := cat.FindTopic(topic); !known && len(own) == 0 {
		return nil
	}
	return append(own, cat.GeneralQuestions()...)
}

func TotalQuestionCount(cat *models.Catalog, topic string) int {
	return 1 + len(QuestionsFor(cat, topic))
}

func TopicOptions(cat *models.Catalog) []string {
	out := make([]string, 0, len(cat.Topics))
	for _, t := range cat.Topics {
		name := t.Name
		if name == "" {
			name = t.ID
		}
		out = append(out, name)
	}
	return out
}
