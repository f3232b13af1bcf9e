package engine

// SeverityPolicy scores finding groups from explicit weight tables. The
// tables are always passed in by the caller; two runs with different policies
// can score concurrently because nothing here is ambient or mutable.
type SeverityPolicy struct {
	SeverityWeights    map[Severity]float64 `yaml:"severity_weights" json:"severity_weights"`
	CategoryWeights    map[Category]float64 `yaml:"category_weights" json:"category_weights"`
	CorroborationBonus float64              `yaml:"corroboration_bonus" json:"corroboration_bonus"`
}

// DefaultSeverityWeights is the explicit built-in severity table.
func DefaultSeverityWeights() map[Severity]float64 {
	return map[Severity]float64{
		SeverityCritical: 10,
		SeverityHigh:     5,
		SeverityMedium:   2,
		SeverityLow:      1,
		SeverityInfo:     0,
	}
}

// DefaultCategoryWeights weights IAM and secrets issues above the baseline.
func DefaultCategoryWeights() map[Category]float64 {
	weights := make(map[Category]float64, len(Categories))
	for _, c := range Categories {
		weights[c] = 1
	}
	weights[CategoryIdentityAndAccess] = 1.5
	weights[CategorySecrets] = 1.5
	return weights
}

// DefaultPolicy returns the full built-in table set; explicit configuration
// always replaces it wholesale, never merges silently underneath it.
func DefaultPolicy() SeverityPolicy {
	return SeverityPolicy{
		SeverityWeights:    DefaultSeverityWeights(),
		CategoryWeights:    DefaultCategoryWeights(),
		CorroborationBonus: 0.5,
	}
}

// Score computes a group's score:
//
//	severity_weight × category_weight × (1 + bonus × (corroboration − 1))
//
// Monotonic in both the representative severity and the corroboration count.
func (p SeverityPolicy) Score(g FindingGroup) float64 {
	sevWeight := p.SeverityWeights[g.Severity()]
	catWeight, ok := p.CategoryWeights[g.Category()]
	if !ok {
		catWeight = 1
	}
	extra := float64(g.Corroboration - 1)
	if extra < 0 {
		extra = 0
	}
	return sevWeight * catWeight * (1 + p.CorroborationBonus*extra)
}

// ScoreAll returns the groups with their scores filled in, plus the total.
func (p SeverityPolicy) ScoreAll(groups []FindingGroup) ([]FindingGroup, float64) {
	scored := make([]FindingGroup, len(groups))
	total := 0.0
	for i, g := range groups {
		g.Score = p.Score(g)
		scored[i] = g
		total += g.Score
	}
	return scored, total
}
