package models

import (
	"math"
	"strings"
	"time"
)

// GeneralTopic marks questions that are asked after every topic's own questions.
const GeneralTopic = "general"

// ExcludedScore is the final score of a product hit by an exclude rule.
const ExcludedScore = -math.MaxFloat64

// Topic represents a selectable health concern.
type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question represents one survey prompt.
type Question struct {
	ID      string   `json:"id"`
	Topic   string   `json:"topic"` // topic id or GeneralTopic
	Text    string   `json:"text"`
	Type    string   `json:"type,omitempty"`
	Options []string `json:"options"`
}

// RuleKind tells the scoring engine how a rule's delta is applied.
type RuleKind string

const (
	RuleAdd     RuleKind = "add"
	RuleSet     RuleKind = "set"
	RuleExclude RuleKind = "exclude"
)

// ParseRuleKind maps a catalog cell to a RuleKind; blank or unknown cells mean RuleAdd.
func ParseRuleKind(s string) RuleKind {
	switch RuleKind(strings.ToLower(strings.TrimSpace(s))) {
	case RuleSet:
		return RuleSet
	case RuleExclude:
		return RuleExclude
	default:
		return RuleAdd
	}
}

// ScoringRule grants Delta to ProductCode when QuestionID was answered with Answer.
type ScoringRule struct {
	QuestionID  string   `json:"question_id"`
	Answer      string   `json:"answer"`
	ProductCode string   `json:"product_code"`
	Delta       float64  `json:"delta"`
	Kind        RuleKind `json:"kind"`
	Description string   `json:"description,omitempty"`
}

// BaseScoreRule is the flat bonus a product gets for the selected topic.
type BaseScoreRule struct {
	ProductCode string  `json:"product_code"`
	Topic       string  `json:"topic"`
	Value       float64 `json:"value"`
	Description string  `json:"description,omitempty"`
}

// Product is a recommendable item.
type Product struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Active      bool     `json:"active"`
	Tags        []string `json:"tags,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	ProductURL  string   `json:"product_url,omitempty"`
	Price       string   `json:"price,omitempty"`
}

// ProductScore is the running tally for one product in one scoring pass.
type ProductScore struct {
	ProductCode string  `json:"product_code"`
	Score       float64 `json:"score"`
	Excluded    bool    `json:"excluded,omitempty"`
}

// ScoredProduct is a ranked product handed to the presentation layer.
type ScoredProduct struct {
	Product Product `json:"product"`
	Score   float64 `json:"score"`
}

// Recommendation holds the two ranked tiers.
type Recommendation struct {
	Main       []ScoredProduct `json:"main"`
	Additional []ScoredProduct `json:"additional"`
}

// Answer is one collected (question, answer) pair.
type Answer struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id"`
	Text       string `json:"answer"`
}

// Catalog is an immutable snapshot of everything loaded from the data source.
// Slice order is the source's load order and is used as the ranking tie-break.
type Catalog struct {
	Topics     []Topic         `json:"topics"`
	Questions  []Question      `json:"questions"`
	Rules      []ScoringRule   `json:"rules"`
	BaseScores []BaseScoreRule `json:"base_scores"`
	Products   []Product       `json:"products"`
	LoadedAt   time.Time       `json:"loaded_at"`
	Fallback   bool            `json:"fallback,omitempty"`
}

// FindTopic looks a topic up by id or display name, case-insensitively.
func (c *Catalog) FindTopic(s string) (Topic, bool) {
	s = strings.TrimSpace(s)
	for _, t := range c.Topics {
		if strings.EqualFold(t.ID, s) || strings.EqualFold(t.Name, s) {
			return t, true
		}
	}
	return Topic{}, false
}

// ResolveTopic returns the id of the topic named by s, or s itself when no topic matches.
func (c *Catalog) ResolveTopic(s string) string {
	if t, ok := c.FindTopic(s); ok {
		return t.ID
	}
	return strings.TrimSpace(s)
}

// TopicMatches reports whether owner (a question's or base score's topic cell)
// refers to the selected topic.
func (c *Catalog) TopicMatches(owner, selected string) bool {
	owner = strings.TrimSpace(owner)
	if owner == "" || selected == "" {
		return false
	}
	if strings.EqualFold(owner, selected) {
		return true
	}
	t, ok := c.FindTopic(selected)
	if !ok {
		return false
	}
	return strings.EqualFold(owner, t.ID) || strings.EqualFold(owner, t.Name)
}

// TopicQuestions returns the questions owned by topic, in catalog order.
func (c *Catalog) TopicQuestions(topic string) []Question {
	var out []Question
	for _, q := range c.Questions {
		if !strings.EqualFold(q.Topic, GeneralTopic) && c.TopicMatches(q.Topic, topic) {
			out = append(out, q)
		}
	}
	return out
}

// GeneralQuestions returns the topic-independent questions, in catalog order.
func (c *Catalog) GeneralQuestions() []Question {
	var out []Question
	for _, q := range c.Questions {
		if strings.EqualFold(q.Topic, GeneralTopic) {
			out = append(out, q)
		}
	}
	return out
}

// ProductByCode returns the product with the given code.
func (c *Catalog) ProductByCode(code string) (Product, bool) {
	for _, p := range c.Products {
		if p.Code == code {
			return p, true
		}
	}
	return Product{}, false
}
