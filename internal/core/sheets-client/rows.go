package sheetsclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// Row parsers turn raw sheet values into catalog entries. Rows missing a
// mandatory cell are skipped; numbers that fail to parse count as 0.

func ParseTopics(rows [][]interface{}) []models.Topic {
	out := make([]models.Topic, 0, len(rows))
	for _, row := range rows {
		id := cell(row, 0)
		if id == "" {
			continue
		}
		name := cell(row, 1)
		if name == "" {
			name = id
		}
		out = append(out, models.Topic{ID: id, Name: name})
	}
	return out
}

func ParseQuestions(rows [][]interface{}) []models.Question {
	out := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		id, topic, text := cell(row, 0), cell(row, 1), cell(row, 2)
		if id == "" || topic == "" || text == "" {
			continue
		}
		out = append(out, models.Question{
			ID:      id,
			Topic:   topic,
			Text:    text,
			Type:    cell(row, 3),
			Options: SplitOptions(cell(row, 4)),
		})
	}
	return out
}

func ParseRules(rows [][]interface{}) []models.ScoringRule {
	out := make([]models.ScoringRule, 0, len(rows))
	for _, row := range rows {
		qid, answer, code := cell(row, 0), cell(row, 1), cell(row, 2)
		if qid == "" || answer == "" || code == "" {
			continue
		}
		out = append(out, models.ScoringRule{
			QuestionID:  qid,
			Answer:      answer,
			ProductCode: code,
			Delta:       number(cell(row, 3)),
			Description: cell(row, 4),
			Kind:        models.ParseRuleKind(cell(row, 5)),
		})
	}
	return out
}

func ParseBaseScores(rows [][]interface{}) []models.BaseScoreRule {
	out := make([]models.BaseScoreRule, 0, len(rows))
	for _, row := range rows {
		code, topic := cell(row, 0), cell(row, 1)
		if code == "" || topic == "" {
			continue
		}
		out = append(out, models.BaseScoreRule{
			ProductCode: code,
			Topic:       topic,
			Value:       number(cell(row, 2)),
			Description: cell(row, 3),
		})
	}
	return out
}

// ParseProducts reads the supplements tab:
// id, code, name, category, active, tags, product url, description, image url, price.
func ParseProducts(rows [][]interface{}) []models.Product {
	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		code, name := cell(row, 1), cell(row, 2)
		if code == "" || name == "" {
			continue
		}
		out = append(out, models.Product{
			Code:        code,
			Name:        name,
			Category:    cell(row, 3),
			Active:      strings.EqualFold(cell(row, 4), "true"),
			Tags:        splitTags(cell(row, 5)),
			ProductURL:  cell(row, 6),
			Description: cell(row, 7),
			ImageURL:    cell(row, 8),
			Price:       cell(row, 9),
		})
	}
	return out
}

// SplitOptions splits an options cell on ';' or '|'.
func SplitOptions(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func cell(row []interface{}, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func number(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return f
}
