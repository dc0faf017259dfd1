package profile

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Provider owns the active threshold profile. Readers call Get and always see
// a complete, immutable profile via an atomic pointer; reload replaces the
// pointer in one step so a scoring run never observes a torn profile.
//
// When an external path is configured the file's mtime is checked on Get and
// the profile reloaded on change. A malformed file, or any malformed value in
// it, degrades to the last-known-good value and is logged, never fatal.
type Provider struct {
	mu     sync.Mutex // serializes reloads
	active atomic.Pointer[Profile]
	path   string

	// lastMod is the watched file's mtime in UnixNano. Atomic because every
	// Get compares it lock-free before deciding whether to reload.
	lastMod  atomic.Int64
	onReload func(*Profile)
}

// NewProvider creates a provider seeded with defaults. path may be empty
// (defaults only). An initial load is attempted immediately.
func NewProvider(path string) *Provider {
	p := &Provider{path: path}
	p.active.Store(Default())
	if path != "" {
		p.Reload()
	}
	return p
}

// OnReload registers a callback invoked with the new profile after every
// successful swap. Used to recompile custom CEL rules.
func (p *Provider) OnReload(fn func(*Profile)) {
	p.onReload = fn
}

// Get returns the active profile, reloading first if the watched file changed.
func (p *Provider) Get() *Profile {
	p.refreshIfChanged()
	return p.active.Load()
}

// Reload forces a reload from the configured path regardless of timestamps.
// Returns the error from reading or parsing; the active profile is left
// untouched on failure.
func (p *Provider) Reload() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadAndSwap()
}

// Swap installs the given profile directly. Used by tests and embedded callers.
func (p *Provider) Swap(next *Profile) {
	p.active.Store(next)
	if p.onReload != nil {
		p.onReload(next)
	}
}

func (p *Provider) refreshIfChanged() {
	if p.path == "" {
		return
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return
	}
	mod := info.ModTime().UnixNano()
	if mod == p.lastMod.Load() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Re-check under the lock; another goroutine may have reloaded already.
	if mod == p.lastMod.Load() {
		return
	}
	if err := p.loadAndSwap(); err != nil {
		slog.Warn("thresholds reload failed, keeping previous profile",
			"path", p.path,
			"error", err,
		)
	}
	p.lastMod.Store(mod)
}

func (p *Provider) loadAndSwap() error {
	if p.path == "" {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read thresholds file: %w", err)
	}

	next, err := merge(p.active.Load(), data)
	if err != nil {
		return err
	}

	p.active.Store(next)
	if p.onReload != nil {
		p.onReload(next)
	}
	slog.Info("thresholds loaded",
		"path", p.path,
		"custom_rules", len(next.CustomRules),
	)
	return nil
}

// rawProfile mirrors the YAML document with pointer fields so absent keys are
// distinguishable from zero values.
type rawProfile struct {
	Weights *struct {
		DistBias      *float64 `yaml:"dist_bias"`
		Duplicates    *float64 `yaml:"duplicates"`
		Surge         *float64 `yaml:"surge"`
		Noise         *float64 `yaml:"noise"`
		ExcessiveFive *float64 `yaml:"excessive_five"`
	} `yaml:"weights"`

	DistBias      *rawBand `yaml:"dist_bias"`
	Duplicates    *rawBand `yaml:"duplicates"`
	SurgeZ        *rawBand `yaml:"surge_z"`
	Noise         *rawBand `yaml:"noise"`
	ExcessiveFive *rawBand `yaml:"excessive_five"`

	Sakura *struct {
		DistBiasSakura   *float64 `yaml:"dist_bias_sakura"`
		DistBiasLikely   *float64 `yaml:"dist_bias_likely"`
		DistBiasUnlikely *float64 `yaml:"dist_bias_unlikely"`
		DuplicateSakura  *float64 `yaml:"duplicate_sakura"`
		DuplicateLikely  *float64 `yaml:"duplicate_likely"`
	} `yaml:"sakura"`

	CustomRules []CustomRule `yaml:"custom_rules"`
}

type rawBand struct {
	Warn *float64 `yaml:"warn"`
	Crit *float64 `yaml:"crit"`
}

// merge applies the YAML document over the previous profile. Keys absent from
// the document keep their previous value; a band that would violate
// warn <= crit is rejected per-band and keeps its previous value.
func merge(prev *Profile, data []byte) (*Profile, error) {
	var raw rawProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds yaml: %w", err)
	}

	next := prev.Clone()

	if raw.Weights != nil {
		setF(&next.Weights.DistBias, raw.Weights.DistBias)
		setF(&next.Weights.Duplicates, raw.Weights.Duplicates)
		setF(&next.Weights.Surge, raw.Weights.Surge)
		setF(&next.Weights.Noise, raw.Weights.Noise)
		setF(&next.Weights.ExcessiveFive, raw.Weights.ExcessiveFive)
	}

	mergeBand(&next.DistBias, raw.DistBias, "dist_bias")
	mergeBand(&next.Duplicates, raw.Duplicates, "duplicates")
	mergeBand(&next.SurgeZ, raw.SurgeZ, "surge_z")
	mergeBand(&next.Noise, raw.Noise, "noise")
	mergeBand(&next.ExcessiveFive, raw.ExcessiveFive, "excessive_five")

	if raw.Sakura != nil {
		setF(&next.Sakura.DistBiasSakura, raw.Sakura.DistBiasSakura)
		setF(&next.Sakura.DistBiasLikely, raw.Sakura.DistBiasLikely)
		setF(&next.Sakura.DistBiasUnlikely, raw.Sakura.DistBiasUnlikely)
		setF(&next.Sakura.DuplicateSakura, raw.Sakura.DuplicateSakura)
		setF(&next.Sakura.DuplicateLikely, raw.Sakura.DuplicateLikely)
	}

	if raw.CustomRules != nil {
		rules := make([]CustomRule, 0, len(raw.CustomRules))
		for _, r := range raw.CustomRules {
			if r.ID == "" || r.Expression == "" {
				slog.Warn("custom rule missing id or expression, skipped", "rule_id", r.ID)
				continue
			}
			if r.Warn > r.Crit {
				slog.Warn("custom rule violates warn <= crit, skipped", "rule_id", r.ID)
				continue
			}
			rules = append(rules, r)
		}
		next.CustomRules = rules
	}

	return next, nil
}

func mergeBand(dst *Band, src *rawBand, name string) {
	if src == nil {
		return
	}
	candidate := *dst
	setF(&candidate.Warn, src.Warn)
	setF(&candidate.Crit, src.Crit)
	if !candidate.Valid() {
		slog.Warn("threshold band violates warn <= crit, keeping previous values",
			"band", name,
			"warn", candidate.Warn,
			"crit", candidate.Crit,
		)
		return
	}
	*dst = candidate
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
