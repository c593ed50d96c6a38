package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

// Fallback returns the built-in catalog served when no refresh has ever succeeded.
// It is built once and shared; callers must not modify it.
var Fallback = sync.OnceValue(buildFallback)

func buildFallback() *models.Catalog {
	return &models.Catalog{
		Fallback: true,
		Topics: []models.Topic{
			{ID: "energy", Name: "Energy and vitality"},
			{ID: "sleep", Name: "Sound sleep, less stress"},
		},
		Questions: []models.Question{
			{ID: "morning_energy", Topic: "energy", Text: "Is it hard for you to get going in the morning?", Options: []string{"no", "sometimes", "almost always"}},
			{ID: "afternoon_crash", Topic: "energy", Text: "Do you get sleepy and unproductive after a carb-heavy lunch?", Options: []string{"no", "sometimes", "almost always"}},
			{ID: "iron_anemia_doctor", Topic: "energy", Text: "Has a doctor told you about low iron stores or signs of anemia?", Options: []string{"no", "not sure", "yes"}},
			{ID: "sleep_onset", Topic: "sleep", Text: "Does it take you more than 30 minutes to fall asleep?", Options: []string{"no", "sometimes", "often"}},
			{ID: "night_stress", Topic: "sleep", Text: "Do you wake up at night because of stress or racing thoughts?", Options: []string{"no", "sometimes", "often"}},
			{ID: "fish_consumption", Topic: models.GeneralTopic, Text: "How often do you eat fish or seafood?", Options: []string{"almost never", "less than once a week", "1-2 times a week", "3+ times a week"}},
			{ID: "coffee_daily", Topic: models.GeneralTopic, Text: "How many cups of coffee do you drink a day?", Options: []string{"0", "1", "2-3", "4+"}},
			{ID: "physical_activity", Topic: models.GeneralTopic, Text: "How physically active are you?", Options: []string{"no regular workouts", "1-2 workouts a week", "3-4", "5+"}},
		},
		Rules: []models.ScoringRule{
			{QuestionID: "morning_energy", Answer: "almost always", ProductCode: "ENERGY-001", Delta: 3, Kind: models.RuleAdd},
			{QuestionID: "morning_energy", Answer: "almost always", ProductCode: "COQ10-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "morning_energy", Answer: "sometimes", ProductCode: "ENERGY-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "afternoon_crash", Answer: "almost always", ProductCode: "ENERGY-001", Delta: 2, Kind: models.RuleAdd},
			{QuestionID: "iron_anemia_doctor", Answer: "yes", ProductCode: "IRON-001", Delta: 4, Kind: models.RuleAdd},
			{QuestionID: "iron_anemia_doctor", Answer: "no", ProductCode: "IRON-001", Kind: models.RuleExclude, Description: "iron without a confirmed deficiency is contraindicated"},
			{QuestionID: "sleep_onset", Answer: "often", ProductCode: "MAG-001", Delta: 3, Kind: models.RuleAdd},
			{QuestionID: "sleep_onset", Answer: "often", ProductCode: "5HTP-001", Delta: 2, Kind: models.RuleAdd},
			{QuestionID: "sleep_onset", Answer: "sometimes", ProductCode: "MAG-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "night_stress", Answer: "often", ProductCode: "MAG-001", Delta: 2, Kind: models.RuleAdd},
			{QuestionID: "night_stress", Answer: "often", ProductCode: "5HTP-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "fish_consumption", Answer: "almost never", ProductCode: "COQ10-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "coffee_daily", Answer: "4+", ProductCode: "MAG-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "physical_activity", Answer: "5+", ProductCode: "COQ10-001", Delta: 1, Kind: models.RuleAdd},
			{QuestionID: "physical_activity", Answer: "5+", ProductCode: "MAG-001", Delta: 1, Kind: models.RuleAdd},
		},
		BaseScores: []models.BaseScoreRule{
			{ProductCode: "ENERGY-001", Topic: "energy", Value: 2},
			{ProductCode: "COQ10-001", Topic: "energy", Value: 1},
			{ProductCode: "IRON-001", Topic: "energy", Value: 1},
			{ProductCode: "MAG-001", Topic: "sleep", Value: 2},
			{ProductCode: "5HTP-001", Topic: "sleep", Value: 1},
		},
		Products: []models.Product{
			{Code: "ENERGY-001", Name: "Energy", Category: "Energy", Active: true, Tags: []string{"energy", "vitality"},
				Description: "B vitamins and amino acids for energy and endurance."},
			{Code: "COQ10-001", Name: "Coenzyme Q10", Category: "Energy", Active: true, Tags: []string{"energy", "heart", "antioxidant"},
				Description: "Antioxidant supporting heart function and cellular energy metabolism."},
			{Code: "IRON-001", Name: "Iron bisglycinate", Category: "Energy", Active: true, Tags: []string{"energy", "iron", "hemoglobin"},
				Description: "Chelated iron for raising hemoglobin."},
			{Code: "MAG-001", Name: "Magnesium B6", Category: "Sleep", Active: true, Tags: []string{"sleep", "stress", "magnesium"},
				Description: "Magnesium with vitamin B6 to relax the nervous system and improve sleep."},
			{Code: "5HTP-001", Name: "5-HTP 100 mg", Category: "Sleep", Active: true, Tags: []string{"sleep", "serotonin"},
				Description: "Serotonin and melatonin precursor that helps normalize sleep."},
		},
	}
}

// FallbackSource is a CatalogSource that always yields the built-in catalog.
type FallbackSource struct{}

func (FallbackSource) LoadCatalog(context.Context) (*models.Catalog, error) {
	cp := *Fallback()
	cp.LoadedAt = time.Now()
	return &cp, nil
}
