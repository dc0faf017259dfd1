package rules

import (
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/profile"
)

// Engine evaluates the builtin catalog followed by the profile's custom CEL
// rules. It is safe for concurrent use; custom rules are swapped atomically
// on profile reload.
type Engine struct {
	custom *CustomEngine
}

// Evaluation is the combined result of one rule pass.
type Evaluation struct {
	// Penalty is the plain sum of all fired rule points, deliberately not
	// clamped here; the ranker clamps when bucketing.
	Penalty int

	// Flags lists the attention flags of fired rules in catalog order,
	// deduplicated.
	Flags []string

	// Outcomes holds one entry per fired rule; rules that did not fire are
	// absent entirely.
	Outcomes []domain.RuleOutcome
}

// NewEngine creates an engine with a compiled custom-rule environment.
func NewEngine() (*Engine, error) {
	custom, err := NewCustomEngine()
	if err != nil {
		return nil, err
	}
	return &Engine{custom: custom}, nil
}

// ReloadCustom recompiles the profile's custom rules. Intended as a profile
// provider OnReload hook.
func (e *Engine) ReloadCustom(p *profile.Profile) {
	e.custom.Reload(p.CustomRules)
}

// Evaluate runs the full catalog against a snapshot under the given profile.
func (e *Engine) Evaluate(snap *domain.FeatureSnapshot, p *profile.Profile) *Evaluation {
	eval := &Evaluation{}
	seen := make(map[string]bool)

	for _, rule := range catalog {
		value := rule.Value(snap)
		band := rule.Band(p)
		if value < band.Warn {
			continue
		}
		weight := rule.Weight(p)
		points := penaltyPoints(value, band, weight)

		eval.Penalty += points
		eval.Outcomes = append(eval.Outcomes, domain.RuleOutcome{
			RuleID:   rule.ID,
			Flag:     rule.Flag,
			Value:    value,
			Warn:     band.Warn,
			Crit:     band.Crit,
			Weight:   weight,
			Points:   points,
			Evidence: rule.Evidence(snap),
		})
		if !seen[rule.Flag] {
			seen[rule.Flag] = true
			eval.Flags = append(eval.Flags, rule.Flag)
		}
	}

	for _, outcome := range e.custom.Evaluate(snap) {
		eval.Penalty += outcome.Points
		eval.Outcomes = append(eval.Outcomes, outcome)
		if outcome.Flag != "" && !seen[outcome.Flag] {
			seen[outcome.Flag] = true
			eval.Flags = append(eval.Flags, outcome.Flag)
		}
	}

	return eval
}

// CustomRulesCount returns the number of loaded custom rules.
func (e *Engine) CustomRulesCount() int {
	return e.custom.Count()
}
