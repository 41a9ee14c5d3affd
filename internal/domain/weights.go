package domain

// Award tier labels used by the corpus.
const (
	AwardPresident     = "대통령상"
	AwardPrimeMinister = "국무총리상"
	AwardExcellent     = "최우수상"
	AwardSpecial       = "특상"
	AwardGood          = "우수상"
	AwardEncouragement = "장려상"
)

// DefaultMetadataWeight applies to filter fields without an explicit weight.
const DefaultMetadataWeight = 0.05

// Weights are the tunable parameters of the rerank score.
type Weights struct {
	Alpha           float64            `yaml:"alpha"`
	Gamma           float64            `yaml:"gamma"`
	SectionWeights  []float64          `yaml:"section_weights"`
	AwardWeights    map[string]float64 `yaml:"award_weights"`
	MetadataWeights map[string]float64 `yaml:"metadata_weights"`
}

// DefaultWeights returns the built-in scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Alpha:          1.1,
		Gamma:          0.05,
		SectionWeights: []float64{0.08, 0.04, 0.01},
		AwardWeights: map[string]float64{
			AwardPresident:     0.15,
			AwardPrimeMinister: 0.12,
			AwardExcellent:     0.10,
			AwardSpecial:       0.08,
			AwardGood:          0.06,
			AwardEncouragement: 0.04,
		},
		MetadataWeights: map[string]float64{
			MetaField:   0.06,
			MetaYear:    0.05,
			MetaAward:   0.08,
			MetaAuthors: 0.1,
			MetaTeacher: 0.1,
		},
	}
}

// SectionWeight returns the weight for a priority position, 0 beyond the table.
func (w Weights) SectionWeight(pos int) float64 {
	if pos < 0 || pos >= len(w.SectionWeights) {
		return 0
	}
	return w.SectionWeights[pos]
}

// AwardWeight returns the weight for an award tier, 0 when unknown.
func (w Weights) AwardWeight(tier string) float64 {
	return w.AwardWeights[tier]
}

// MetadataWeight returns the weight for a filter field.
func (w Weights) MetadataWeight(field string) float64 {
	if v, ok := w.MetadataWeights[field]; ok {
		return v
	}
	return DefaultMetadataWeight
}
