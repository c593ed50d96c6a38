package scoring

import (
	"sort"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const (
	DefaultMainSize       = 3
	DefaultAdditionalSize = 2
)

// Ranker splits positive scores into the main and additional tiers.
type Ranker struct {
	MainSize       int
	AdditionalSize int
}

func NewRanker(mainSize, additionalSize int) Ranker {
	return Ranker{MainSize: max(mainSize, 0), AdditionalSize: max(additionalSize, 0)}
}

// Rank drops excluded and non-positive scores, sorts the rest descending with
// ties kept in input order, and cuts the two tiers. Scores whose product is
// missing from the catalog are skipped.
func (r Ranker) Rank(cat *models.Catalog, scores []models.ProductScore) models.Recommendation {
	if cat == nil {
		return models.Recommendation{Main: []models.ScoredProduct{}, Additional: []models.ScoredProduct{}}
	}
	ranked := make([]models.ScoredProduct, 0, len(scores))
	for _, s := range scores {
		if s.Excluded || s.Score <= 0 {
			continue
		}
		p, ok := cat.ProductByCode(s.ProductCode)
		if !ok || !p.Active {
			continue
		}
		ranked = append(ranked, models.ScoredProduct{Product: p, Score: s.Score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	mainEnd := min(r.MainSize, len(ranked))
	addEnd := min(mainEnd+r.AdditionalSize, len(ranked))
	return models.Recommendation{
		Main:       ranked[:mainEnd:mainEnd],
		Additional: ranked[mainEnd:addEnd:addEnd],
	}
}

// Recommend scores the answers and ranks the result in one step.
func (r Ranker) Recommend(cat *models.Catalog, topic string, answers []models.Answer) models.Recommendation {
	return r.Rank(cat, Score(cat, topic, answers))
}
