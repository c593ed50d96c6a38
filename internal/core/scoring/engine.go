// Package scoring turns collected survey answers into ranked product recommendations.
//
// Scoring is a flat lookup over the catalog's rule table: a rule fires when its
// (question id, answer) pair equals one the respondent gave, answers compared
// case-insensitively and otherwise exactly.
package scoring

import (
	"strings"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

type ruleKey struct {
	questionID string
	answer     string
}

func keyOf(questionID, answer string) ruleKey {
	return ruleKey{questionID: questionID, answer: strings.ToLower(answer)}
}

// Score computes one ProductScore per active product, in catalog order.
//
// Each product starts at its base score for topic (0 without one). Answers are
// then applied in the order given, and for each answer the matching rules in
// table order: add rules add their delta, set rules overwrite the running
// score, exclude rules mark the product. Excluded products end at
// models.ExcludedScore whatever else matched. Zero and negative scores are kept.
func Score(cat *models.Catalog, topic string, answers []models.Answer) []models.ProductScore {
	if cat == nil {
		return nil
	}

	index := make(map[string]int, len(cat.Products))
	scores := make([]models.ProductScore, 0, len(cat.Products))
	for _, p := range cat.Products {
		if !p.Active {
			continue
		}
		if _, dup := index[p.Code]; dup {
			continue
		}
		index[p.Code] = len(scores)
		scores = append(scores, models.ProductScore{
			ProductCode: p.Code,
			Score:       baseScore(cat, p.Code, topic),
		})
	}

	rules := make(map[ruleKey][]models.ScoringRule)
	for _, r := range cat.Rules {
		k := keyOf(r.QuestionID, r.Answer)
		rules[k] = append(rules[k], r)
	}

	for _, a := range answers {
		for _, r := range rules[keyOf(a.QuestionID, a.Text)] {
			i, ok := index[r.ProductCode]
			if !ok {
				continue
			}
			switch r.Kind {
			case models.RuleSet:
				scores[i].Score = r.Delta
			case models.RuleExclude:
				scores[i].Excluded = true
			default:
				scores[i].Score += r.Delta
			}
		}
	}

	for i := range scores {
		if scores[i].Excluded {
			scores[i].Score = models.ExcludedScore
		}
	}
	return scores
}

// baseScore sums the base-score rows matching product and topic; the source
// sheet may split one bonus across several rows.
func baseScore(cat *models.Catalog, code, topic string) float64 {
	var total float64
	for _, b := range cat.BaseScores {
		if b.ProductCode == code && cat.TopicMatches(b.Topic, topic) {
			total += b.Value
		}
	}
	return total
}
