// Package profile holds the tunable threshold profile the rule engine and
// ranker evaluate against, plus its YAML loader.
package profile

// Band is a warn/critical threshold pair. Invariant: Warn <= Crit.
type Band struct {
	Warn float64 `json:"warn"`
	Crit float64 `json:"crit"`
}

// Valid reports whether the band respects the warn <= crit invariant.
func (b Band) Valid() bool {
	return b.Warn <= b.Crit
}

// Weights are per-feature contributions to the total penalty. A weight of w
// contributes up to w*100 penalty points when the feature reaches its
// critical threshold.
type Weights struct {
	DistBias      float64 `json:"dist_bias"`
	Duplicates    float64 `json:"duplicates"`
	Surge         float64 `json:"surge"`
	Noise         float64 `json:"noise"`
	ExcessiveFive float64 `json:"excessive_five"`
}

// SakuraBands are the fraud-judgment decision thresholds, separate from the
// penalty bands. All values are ratios in [0,1].
type SakuraBands struct {
	DistBiasSakura   float64 `json:"dist_bias_sakura"`
	DistBiasLikely   float64 `json:"dist_bias_likely"`
	DistBiasUnlikely float64 `json:"dist_bias_unlikely"`
	DuplicateSakura  float64 `json:"duplicate_sakura"`
	DuplicateLikely  float64 `json:"duplicate_likely"`
}

// CustomRule is an operator-defined scoring rule evaluated after the builtin
// catalog, in declaration order. The expression is CEL over the feature
// variables (dist_bias, duplicates, surge, noise, five_star_ratio,
// short_ratio, total_reviews) and must yield a double in [0,1].
type CustomRule struct {
	ID         string  `json:"id" yaml:"id"`
	Flag       string  `json:"flag" yaml:"flag"`
	Expression string  `json:"expression" yaml:"expression"`
	Warn       float64 `json:"warn" yaml:"warn"`
	Crit       float64 `json:"crit" yaml:"crit"`
	Weight     float64 `json:"weight" yaml:"weight"`
}

// Profile is one immutable threshold configuration. Readers always receive a
// complete profile; reload swaps the whole value atomically.
type Profile struct {
	Weights Weights `json:"weights"`

	DistBias      Band `json:"dist_bias"`
	Duplicates    Band `json:"duplicates"`
	SurgeZ        Band `json:"surge_z"`
	Noise         Band `json:"noise"`
	ExcessiveFive Band `json:"excessive_five"`

	Sakura SakuraBands `json:"sakura"`

	CustomRules []CustomRule `json:"custom_rules,omitempty"`
}

// Default returns the built-in threshold profile. The surge band is expressed
// on the surge-ratio scale ([0,1]) even though the key is named surge_z for
// config compatibility.
func Default() *Profile {
	return &Profile{
		Weights: Weights{
			DistBias:      0.35,
			Duplicates:    0.35,
			Surge:         0.20,
			Noise:         0.10,
			ExcessiveFive: 0.15,
		},
		DistBias:      Band{Warn: 0.35, Crit: 0.60},
		Duplicates:    Band{Warn: 0.30, Crit: 0.50},
		SurgeZ:        Band{Warn: 0.60, Crit: 0.90},
		Noise:         Band{Warn: 0.25, Crit: 0.50},
		ExcessiveFive: Band{Warn: 0.65, Crit: 0.85},
		Sakura: SakuraBands{
			DistBiasSakura:   0.80,
			DistBiasLikely:   0.65,
			DistBiasUnlikely: 0.45,
			DuplicateSakura:  0.50,
			DuplicateLikely:  0.40,
		},
	}
}

// Clone returns a deep copy so a loaded profile can be merged without
// mutating the one readers currently hold.
func (p *Profile) Clone() *Profile {
	cp := *p
	if len(p.CustomRules) > 0 {
		cp.CustomRules = append([]CustomRule(nil), p.CustomRules...)
	}
	return &cp
}
