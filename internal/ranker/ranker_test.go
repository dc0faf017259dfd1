package ranker

import (
	"testing"

	"github.com/opensource-trust/heron/internal/domain"
	"github.com/opensource-trust/heron/internal/profile"
)

func TestAssignRank(t *testing.T) {
	tests := []struct {
		penalty int
		want    domain.Rank
	}{
		{0, domain.RankA},
		{34, domain.RankA},
		{35, domain.RankB},
		{64, domain.RankB},
		{65, domain.RankC},
		{100, domain.RankC},
		{-5, domain.RankA},
		{250, domain.RankC},
	}

	for _, tt := range tests {
		if got := AssignRank(tt.penalty); got != tt.want {
			t.Errorf("AssignRank(%d) = %s, want %s", tt.penalty, got, tt.want)
		}
	}
}

func TestJudgeFraud(t *testing.T) {
	p := profile.Default()

	tests := []struct {
		name       string
		distBias   float64
		duplicates float64
		want       domain.Judgment
	}{
		{"both extreme", 0.85, 0.55, domain.JudgmentSakura},
		{"bias extreme, dup mild", 0.85, 0.10, domain.JudgmentLikely},
		{"dup extreme, bias mild", 0.20, 0.55, domain.JudgmentLikely},
		{"bias likely only", 0.70, 0.10, domain.JudgmentLikely},
		{"dup likely only", 0.10, 0.45, domain.JudgmentLikely},
		{"bias unlikely band", 0.50, 0.10, domain.JudgmentUnlikely},
		{"clean", 0.10, 0.05, domain.JudgmentGenuine},
		{"exactly at sakura thresholds", 0.80, 0.50, domain.JudgmentSakura},
		{"just below sakura bias", 0.79, 0.50, domain.JudgmentLikely},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &domain.FeatureSnapshot{DistBias: tt.distBias, DuplicateRate: tt.duplicates}
			if got := JudgeFraud(snap, p); got != tt.want {
				t.Errorf("JudgeFraud(bias=%.2f dup=%.2f) = %s, want %s",
					tt.distBias, tt.duplicates, got, tt.want)
			}
		})
	}
}
