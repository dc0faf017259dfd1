package profile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	p := Default()

	if p.Weights.DistBias != 0.35 || p.Weights.Duplicates != 0.35 {
		t.Errorf("unexpected default weights: %+v", p.Weights)
	}
	if p.DistBias.Warn != 0.35 || p.DistBias.Crit != 0.60 {
		t.Errorf("unexpected dist_bias band: %+v", p.DistBias)
	}
	if p.Sakura.DistBiasSakura != 0.80 || p.Sakura.DuplicateSakura != 0.50 {
		t.Errorf("unexpected sakura bands: %+v", p.Sakura)
	}

	for name, band := range map[string]Band{
		"dist_bias":      p.DistBias,
		"duplicates":     p.Duplicates,
		"surge_z":        p.SurgeZ,
		"noise":          p.Noise,
		"excessive_five": p.ExcessiveFive,
	} {
		if !band.Valid() {
			t.Errorf("default band %s violates warn <= crit: %+v", name, band)
		}
	}
}

func TestProviderLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yml")
	content := `
weights:
  dist_bias: 0.5
  duplicates: 0.25
dist_bias:
  warn: 0.4
  crit: 0.7
sakura:
  dist_bias_sakura: 0.9
custom_rules:
  - id: many_reviews
    flag: ATTN_VOLUME
    expression: "total_reviews > 500 ? 1.0 : 0.0"
    warn: 0.5
    crit: 1.0
    weight: 0.05
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	provider := NewProvider(path)
	p := provider.Get()

	if p.Weights.DistBias != 0.5 {
		t.Errorf("expected dist_bias weight 0.5, got %f", p.Weights.DistBias)
	}
	// Absent keys keep defaults.
	if p.Weights.Noise != 0.10 {
		t.Errorf("expected default noise weight, got %f", p.Weights.Noise)
	}
	if p.DistBias.Warn != 0.4 || p.DistBias.Crit != 0.7 {
		t.Errorf("unexpected dist_bias band: %+v", p.DistBias)
	}
	if p.Sakura.DistBiasSakura != 0.9 {
		t.Errorf("expected sakura threshold 0.9, got %f", p.Sakura.DistBiasSakura)
	}
	if p.Sakura.DuplicateSakura != 0.50 {
		t.Errorf("expected default duplicate_sakura, got %f", p.Sakura.DuplicateSakura)
	}
	if len(p.CustomRules) != 1 || p.CustomRules[0].ID != "many_reviews" {
		t.Errorf("expected one custom rule, got %+v", p.CustomRules)
	}
}

func TestProviderKeepsPreviousOnMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yml")
	if err := os.WriteFile(path, []byte("dist_bias:\n  warn: 0.4\n  crit: 0.8\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	provider := NewProvider(path)
	if provider.Get().DistBias.Warn != 0.4 {
		t.Fatal("initial load failed")
	}

	if err := os.WriteFile(path, []byte("{{{ not yaml"), 0644); err != nil {
		t.Fatalf("failed to corrupt fixture: %v", err)
	}
	if err := provider.Reload(); err == nil {
		t.Error("expected reload error for malformed yaml")
	}

	// Last-known-good retained.
	if provider.Get().DistBias.Warn != 0.4 {
		t.Error("malformed reload must keep previous profile")
	}
}

func TestProviderRejectsInvertedBand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yml")
	content := `
dist_bias:
  warn: 0.9
  crit: 0.2
noise:
  warn: 0.1
  crit: 0.3
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	provider := NewProvider(path)
	p := provider.Get()

	// Inverted band keeps defaults; valid band applies.
	if p.DistBias.Warn != 0.35 || p.DistBias.Crit != 0.60 {
		t.Errorf("inverted band must keep previous values, got %+v", p.DistBias)
	}
	if p.Noise.Warn != 0.1 || p.Noise.Crit != 0.3 {
		t.Errorf("valid band should apply, got %+v", p.Noise)
	}
}

// Exercises the lock-free mtime check against concurrent readers; run with
// -race to catch unsynchronized access to the reload bookkeeping.
func TestProviderConcurrentGetWhileFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yml")
	if err := os.WriteFile(path, []byte("dist_bias:\n  warn: 0.4\n  crit: 0.8\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	provider := NewProvider(path)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if p := provider.Get(); p == nil || !p.DistBias.Valid() {
					t.Error("reader observed a torn profile")
					return
				}
			}
		}()
	}

	// Keep bumping the file's mtime so readers race the reload path.
	base := time.Now()
	for i := 0; i < 50; i++ {
		mod := base.Add(time.Duration(i+1) * time.Second)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("failed to touch fixture: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	if provider.Get().DistBias.Warn != 0.4 {
		t.Error("profile lost during concurrent reloads")
	}
}

func TestSwapNotifiesCallback(t *testing.T) {
	provider := NewProvider("")

	var got *Profile
	provider.OnReload(func(p *Profile) { got = p })

	next := Default()
	next.Weights.Surge = 0.42
	provider.Swap(next)

	if got == nil || got.Weights.Surge != 0.42 {
		t.Error("OnReload callback not invoked with swapped profile")
	}
	if provider.Get().Weights.Surge != 0.42 {
		t.Error("Get did not observe swapped profile")
	}
}
