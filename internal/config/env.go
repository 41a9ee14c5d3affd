package config

import (
	"github.com/caarlos0/env/v10"

	"github.com/legojeon/report-coach/internal/domain"
)

// overrides are flat environment variables layered on top of the YAML file.
// Unset variables leave the YAML value in place.
type overrides struct {
	Alpha    *float64 `env:"SEARCH_ALPHA"`
	Gamma    *float64 `env:"SEARCH_GAMMA"`
	Section1 *float64 `env:"SEARCH_SECTION_WEIGHT_1"`
	Section2 *float64 `env:"SEARCH_SECTION_WEIGHT_2"`
	Section3 *float64 `env:"SEARCH_SECTION_WEIGHT_3"`

	AwardPresident     *float64 `env:"SEARCH_AWARD_PRESIDENT"`
	AwardPrimeMinister *float64 `env:"SEARCH_AWARD_PRIME_MINISTER"`
	AwardExcellent     *float64 `env:"SEARCH_AWARD_EXCELLENT"`
	AwardSpecial       *float64 `env:"SEARCH_AWARD_SPECIAL"`
	AwardGood          *float64 `env:"SEARCH_AWARD_GOOD"`
	AwardEncouragement *float64 `env:"SEARCH_AWARD_ENCOURAGEMENT"`

	MetaField   *float64 `env:"SEARCH_METADATA_FIELD"`
	MetaYear    *float64 `env:"SEARCH_METADATA_YEAR"`
	MetaAward   *float64 `env:"SEARCH_METADATA_AWARD"`
	MetaAuthors *float64 `env:"SEARCH_METADATA_AUTHORS"`
	MetaTeacher *float64 `env:"SEARCH_METADATA_TEACHER"`

	GenModel       *string  `env:"GEMINI_MODEL"`
	GenMaxTokens   *int     `env:"GEMINI_MAX_TOKENS"`
	GenTemperature *float32 `env:"GEMINI_TEMPERATURE"`
	GenTopP        *float32 `env:"GEMINI_TOP_P"`
}

func (c *Config) applyEnvOverrides() error {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	w := &c.Search.Weights
	setFloat(&w.Alpha, o.Alpha)
	setFloat(&w.Gamma, o.Gamma)
	for i, v := range []*float64{o.Section1, o.Section2, o.Section3} {
		if v == nil {
			continue
		}
		for len(w.SectionWeights) <= i {
			w.SectionWeights = append(w.SectionWeights, 0)
		}
		w.SectionWeights[i] = *v
	}

	if w.AwardWeights == nil {
		w.AwardWeights = map[string]float64{}
	}
	setMap(w.AwardWeights, domain.AwardPresident, o.AwardPresident)
	setMap(w.AwardWeights, domain.AwardPrimeMinister, o.AwardPrimeMinister)
	setMap(w.AwardWeights, domain.AwardExcellent, o.AwardExcellent)
	setMap(w.AwardWeights, domain.AwardSpecial, o.AwardSpecial)
	setMap(w.AwardWeights, domain.AwardGood, o.AwardGood)
	setMap(w.AwardWeights, domain.AwardEncouragement, o.AwardEncouragement)

	if w.MetadataWeights == nil {
		w.MetadataWeights = map[string]float64{}
	}
	setMap(w.MetadataWeights, domain.MetaField, o.MetaField)
	setMap(w.MetadataWeights, domain.MetaYear, o.MetaYear)
	setMap(w.MetadataWeights, domain.MetaAward, o.MetaAward)
	setMap(w.MetadataWeights, domain.MetaAuthors, o.MetaAuthors)
	setMap(w.MetadataWeights, domain.MetaTeacher, o.MetaTeacher)

	if o.GenModel != nil && *o.GenModel != "" {
		c.Generation.Model = *o.GenModel
	}
	if o.GenMaxTokens != nil && *o.GenMaxTokens > 0 {
		c.Generation.MaxTokens = *o.GenMaxTokens
	}
	if o.GenTemperature != nil {
		c.Generation.Temperature = *o.GenTemperature
	}
	if o.GenTopP != nil {
		c.Generation.TopP = *o.GenTopP
	}
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setMap(m map[string]float64, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}
