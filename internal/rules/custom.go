package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/profile"
)

// CustomEngine compiles and evaluates the CEL rules declared in the threshold
// profile. Expressions see the feature vector as flat variables and must
// return bool, int, or double; the result is scored against the rule's own
// warn/crit band like a builtin rule.
type CustomEngine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []*compiledCustomRule
}

type compiledCustomRule struct {
	config  profile.CustomRule
	program cel.Program
}

// NewCustomEngine creates the CEL environment with the feature variables.
func NewCustomEngine() (*CustomEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("dist_bias", cel.DoubleType),
		cel.Variable("duplicates", cel.DoubleType),
		cel.Variable("surge", cel.DoubleType),
		cel.Variable("noise", cel.DoubleType),
		cel.Variable("five_star_ratio", cel.DoubleType),
		cel.Variable("short_ratio", cel.DoubleType),
		cel.Variable("total_reviews", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CustomEngine{env: env}, nil
}

// Reload replaces the compiled rule set. Rules that fail to compile are
// skipped with a warning so one bad expression cannot disable scoring;
// the remaining rules keep their declaration order.
func (c *CustomEngine) Reload(configs []profile.CustomRule) {
	compiled := make([]*compiledCustomRule, 0, len(configs))
	for _, cfg := range configs {
		program, err := c.compile(cfg)
		if err != nil {
			slog.Warn("custom rule failed to compile, skipped",
				"rule_id", cfg.ID,
				"error", err,
			)
			continue
		}
		compiled = append(compiled, &compiledCustomRule{config: cfg, program: program})
	}

	c.mu.Lock()
	c.compiled = compiled
	c.mu.Unlock()
}

// Evaluate runs all compiled custom rules and returns outcomes for those that
// fired. Evaluation errors skip the rule; they never fail the scoring run.
func (c *CustomEngine) Evaluate(snap *domain.FeatureSnapshot) []domain.RuleOutcome {
	c.mu.RLock()
	compiled := c.compiled
	c.mu.RUnlock()

	if len(compiled) == 0 {
		return nil
	}

	activation := map[string]any{
		"dist_bias":       snap.DistBias,
		"duplicates":      snap.DuplicateRate,
		"surge":           snap.SurgeRatio,
		"noise":           snap.NoiseRatio,
		"five_star_ratio": snap.Stats.FiveStarRatio,
		"short_ratio":     snap.Stats.ShortRatio,
		"total_reviews":   snap.Stats.TotalReviews,
	}

	var outcomes []domain.RuleOutcome
	for _, rule := range compiled {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Warn("custom rule evaluation failed",
				"rule_id", rule.config.ID,
				"error", err,
			)
			continue
		}

		value := toValue(out)
		band := profile.Band{Warn: rule.config.Warn, Crit: rule.config.Crit}
		if value < band.Warn {
			continue
		}

		outcomes = append(outcomes, domain.RuleOutcome{
			RuleID: rule.config.ID,
			Flag:   rule.config.Flag,
			Value:  value,
			Warn:   band.Warn,
			Crit:   band.Crit,
			Weight: rule.config.Weight,
			Points: penaltyPoints(value, band, rule.config.Weight),
		})
	}
	return outcomes
}

// Count returns the number of compiled custom rules.
func (c *CustomEngine) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiled)
}

func (c *CustomEngine) compile(cfg profile.CustomRule) (cel.Program, error) {
	ast, issues := c.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	return c.env.Program(ast)
}

// toValue converts a CEL result to a numeric observation.
func toValue(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}
