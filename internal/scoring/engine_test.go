package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

const floatTolerance = 1e-9

type fixedClassifier struct {
	score float64
	err   error
	calls int
}

func (c *fixedClassifier) Classify(_ context.Context, _ models.ContentRef) (float64, error) {
	c.calls++
	return c.score, c.err
}

func newTestEngine(quality float64) *Engine {
	return NewEngine(DefaultPolicy(), &fixedClassifier{score: quality}, nil)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestCalculateImpactScore(t *testing.T) {
	e := newTestEngine(70)

	tests := []struct {
		name    string
		metrics models.EngagementMetrics
		want    float64
	}{
		{"zero views", models.EngagementMetrics{}, 0},
		{"typical engagement", models.EngagementMetrics{Views: 10_000, Likes: 500, Comments: 100, Shares: 50}, 82},
		{"saturated", models.EngagementMetrics{Views: 1_000_000, Likes: 200_000}, 100},
		{"views only", models.EngagementMetrics{Views: 99}, 24}, // 0.6 * 20*log10(100) = 24
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CalculateImpactScore(tt.metrics)
			if err != nil {
				t.Fatalf("CalculateImpactScore() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CalculateImpactScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateImpactScore_Bounds(t *testing.T) {
	e := newTestEngine(70)

	for _, views := range []int64{1, 7, 100, 12_345, 1_000_000, math.MaxInt32} {
		for _, likes := range []int64{0, 1, views, views * 10} {
			m := models.EngagementMetrics{Views: views, Likes: likes, Comments: likes / 2, Shares: likes / 3}
			got, err := e.CalculateImpactScore(m)
			if err != nil {
				t.Fatalf("CalculateImpactScore(%+v) error = %v", m, err)
			}
			if got < 0 || got > 100 {
				t.Errorf("CalculateImpactScore(%+v) = %v, want within [0,100]", m, got)
			}
		}
	}
}

func TestCalculateImpactScore_NegativeCounts(t *testing.T) {
	e := newTestEngine(70)

	_, err := e.CalculateImpactScore(models.EngagementMetrics{Views: 10, Likes: -1})
	if !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestCalculateFairnessMultiplier(t *testing.T) {
	e := newTestEngine(70)

	tests := []struct {
		name     string
		tier     models.CreatorTier
		category string
		want     float64
	}{
		{"small education", models.CreatorTierSmall, "education", 1.32},
		{"large dance", models.CreatorTierLarge, "dance", 0.72},
		{"case insensitive", models.CreatorTierSmall, "EDUCATION", 1.32},
		{"mid news", models.CreatorTierMid, "news", 1.05},
		{"unmapped category uses tier alone", models.CreatorTierSmall, "cooking", 1.2},
		{"empty category is general", models.CreatorTierLarge, "", 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CalculateFairnessMultiplier(tt.tier, tt.category)
			if err != nil {
				t.Fatalf("CalculateFairnessMultiplier() error = %v", err)
			}
			if !approxEqual(got, tt.want) {
				t.Errorf("CalculateFairnessMultiplier(%s, %s) = %v, want %v", tt.tier, tt.category, got, tt.want)
			}
		})
	}
}

func TestCalculateFairnessMultiplier_UnknownTier(t *testing.T) {
	e := newTestEngine(70)

	_, err := e.CalculateFairnessMultiplier("huge", "education")
	if !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}

func TestCalculateTotalScore(t *testing.T) {
	e := newTestEngine(70)

	if got := e.CalculateTotalScore(82, 70); got != 77 {
		t.Errorf("CalculateTotalScore(82, 70) = %v, want 77", got)
	}
	if got := e.CalculateTotalScore(0, 0); got != 0 {
		t.Errorf("CalculateTotalScore(0, 0) = %v, want 0", got)
	}
	if got := e.CalculateTotalScore(100, 100); got != 100 {
		t.Errorf("CalculateTotalScore(100, 100) = %v, want 100", got)
	}
}

func TestApplyFairness(t *testing.T) {
	e := newTestEngine(70)

	if got := e.ApplyFairness(90, 1.32); got != 100 {
		t.Errorf("ApplyFairness(90, 1.32) = %v, want 100 (clamped)", got)
	}
	if got := e.ApplyFairness(50, 0.72); !approxEqual(got, 36) {
		t.Errorf("ApplyFairness(50, 0.72) = %v, want 36", got)
	}

	// Monotonic non-decreasing in multiplier.
	prev := -1.0
	for m := 0.5; m <= 1.5; m += 0.05 {
		got := e.ApplyFairness(70, m)
		if got < prev {
			t.Fatalf("ApplyFairness(70, %.2f) = %v decreased from %v", m, got, prev)
		}
		prev = got
	}
}

func TestCalculateNanas(t *testing.T) {
	e := newTestEngine(70)

	tests := []struct {
		name  string
		score float64
		views int64
		want  string
	}{
		{"zero score floors", 0, 1_000_000, "0.001"},
		{"zero views floors", 80, 0, "0.001"},
		{"full score", 100, 1_000_000, "10"},
		{"rounded to three places", 55.44, 10_000, "0.055"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CalculateNanas(tt.score, tt.views)
			if err != nil {
				t.Fatalf("CalculateNanas() error = %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("CalculateNanas(%v, %d) = %s, want %s", tt.score, tt.views, got, tt.want)
			}
		})
	}
}

func TestCalculateNanas_InvalidInput(t *testing.T) {
	e := newTestEngine(70)

	if _, err := e.CalculateNanas(50, -1); !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("negative views error = %v, want ErrInvalidArgument", err)
	}
	if _, err := e.CalculateNanas(101, 10); !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("score > 100 error = %v, want ErrInvalidArgument", err)
	}
}

func TestEvaluate_FullBreakdown(t *testing.T) {
	e := newTestEngine(70)

	req := EvaluationRequest{
		Content:  models.ContentRef{VideoID: "123", URL: "https://www.tiktok.com/@a/video/123"},
		Metrics:  models.EngagementMetrics{Views: 10_000, Likes: 500, Comments: 100, Shares: 50},
		Tier:     models.CreatorTierLarge,
		Category: "dance",
	}

	got, err := e.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if got.ImpactScore != 82 {
		t.Errorf("ImpactScore = %v, want 82", got.ImpactScore)
	}
	if got.QualityScore != 70 {
		t.Errorf("QualityScore = %v, want 70", got.QualityScore)
	}
	if !approxEqual(got.FairnessMultiplier, 0.72) {
		t.Errorf("FairnessMultiplier = %v, want 0.72", got.FairnessMultiplier)
	}
	if got.TotalScore != 77 {
		t.Errorf("TotalScore = %v, want 77", got.TotalScore)
	}
	if !approxEqual(got.QSEScore, 55.44) {
		t.Errorf("QSEScore = %v, want 55.44", got.QSEScore)
	}
	if !got.Nanas.Equal(decimal.RequireFromString("0.055")) {
		t.Errorf("Nanas = %s, want 0.055", got.Nanas)
	}
}

// reloadingClassifier swaps the engine's policy while an evaluation is in flight.
type reloadingClassifier struct {
	engine *Engine
	next   Policy
}

func (c *reloadingClassifier) Classify(_ context.Context, _ models.ContentRef) (float64, error) {
	if err := c.engine.Reload(c.next); err != nil {
		return 0, err
	}
	return 70, nil
}

func TestEvaluate_UsesOnePolicySnapshot(t *testing.T) {
	next := DefaultPolicy()
	next.TierMultipliers[models.CreatorTierLarge] = 2.0
	next.NanasRate = 1.0

	rc := &reloadingClassifier{next: next}
	e := NewEngine(DefaultPolicy(), rc, nil)
	rc.engine = e

	got, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics:  models.EngagementMetrics{Views: 10_000, Likes: 500, Comments: 100, Shares: 50},
		Tier:     models.CreatorTierLarge,
		Category: "dance",
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if !approxEqual(got.FairnessMultiplier, 0.72) {
		t.Errorf("FairnessMultiplier = %v, want 0.72 from the policy at call start", got.FairnessMultiplier)
	}
	if !got.Nanas.Equal(decimal.RequireFromString("0.055")) {
		t.Errorf("Nanas = %s, want 0.055 from the policy at call start", got.Nanas)
	}
	if e.Policy().NanasRate != 1.0 {
		t.Errorf("reloaded NanasRate = %v, want 1.0", e.Policy().NanasRate)
	}
}

func TestEvaluate_ClampsAtHundred(t *testing.T) {
	e := newTestEngine(70)

	got, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics:  models.EngagementMetrics{Views: 10_000, Likes: 500, Comments: 100, Shares: 50},
		Tier:     models.CreatorTierSmall,
		Category: "education",
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if got.QSEScore != 100 {
		t.Errorf("QSEScore = %v, want 100", got.QSEScore)
	}
	if !got.Nanas.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Nanas = %s, want 0.1", got.Nanas)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := newTestEngine(64)
	req := EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: 48_213, Likes: 3_100, Comments: 240, Shares: 90},
		Tier:    models.CreatorTierMid,
	}

	first, err := e.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Evaluate(context.Background(), req)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if again.QSEScore != first.QSEScore || !again.Nanas.Equal(first.Nanas) {
			t.Fatalf("Evaluate() not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestEvaluate_ClassifierFailure(t *testing.T) {
	classifier := &fixedClassifier{err: errors.New("model unavailable")}
	e := NewEngine(DefaultPolicy(), classifier, nil)

	got, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: 100},
		Tier:    models.CreatorTierSmall,
	})
	if !errors.Is(err, config.ErrAnalysisFailed) {
		t.Fatalf("error = %v, want ErrAnalysisFailed", err)
	}
	if got != (models.ScoreBreakdown{}) {
		t.Errorf("Evaluate() returned partial breakdown %+v", got)
	}
}

func TestEvaluate_QualityOutOfRange(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &fixedClassifier{score: 140}, nil)

	_, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: 100},
		Tier:    models.CreatorTierSmall,
	})
	if !errors.Is(err, config.ErrAnalysisFailed) {
		t.Errorf("error = %v, want ErrAnalysisFailed", err)
	}
}

func TestEvaluate_NoClassifier(t *testing.T) {
	e := NewEngine(DefaultPolicy(), nil, nil)

	_, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: 100},
		Tier:    models.CreatorTierSmall,
	})
	if !errors.Is(err, config.ErrAnalysisFailed) {
		t.Errorf("error = %v, want ErrAnalysisFailed", err)
	}
}

func TestEvaluate_UnknownTier(t *testing.T) {
	classifier := &fixedClassifier{score: 70}
	e := NewEngine(DefaultPolicy(), classifier, nil)

	_, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: 100},
		Tier:    "huge",
	})
	if !errors.Is(err, config.ErrAnalysisFailed) {
		t.Errorf("error = %v, want ErrAnalysisFailed", err)
	}
	if !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument in chain", err)
	}
}

func TestEvaluate_InvalidMetricsSkipsClassifier(t *testing.T) {
	classifier := &fixedClassifier{score: 70}
	e := NewEngine(DefaultPolicy(), classifier, nil)

	_, err := e.Evaluate(context.Background(), EvaluationRequest{
		Metrics: models.EngagementMetrics{Views: -5},
		Tier:    models.CreatorTierSmall,
	})
	if !errors.Is(err, config.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
	if classifier.calls != 0 {
		t.Errorf("classifier called %d times, want 0", classifier.calls)
	}
}

func TestEvaluate_VariationApplied(t *testing.T) {
	e := NewEngine(DefaultPolicy(), &fixedClassifier{score: 100}, doubleVariation{})

	got, err := e.CalculateNanas(100, 1_000_000)
	if err != nil {
		t.Fatalf("CalculateNanas() error = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("CalculateNanas() with 2x variation = %s, want 20", got)
	}
}

type doubleVariation struct{}

func (doubleVariation) Factor() float64 { return 2 }

func TestReload_Valid(t *testing.T) {
	e := newTestEngine(70)

	p := DefaultPolicy()
	p.TierMultipliers[models.CreatorTierSmall] = 1.5
	if err := e.Reload(p); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	got, _ := e.CalculateFairnessMultiplier(models.CreatorTierSmall, "general")
	if !approxEqual(got, 1.5) {
		t.Errorf("after reload multiplier = %v, want 1.5", got)
	}
}

func TestReload_Invalid(t *testing.T) {
	e := newTestEngine(70)

	p := DefaultPolicy()
	p.ViewWeight = 0.9 // no longer sums to 1
	if err := e.Reload(p); err == nil {
		t.Fatal("Reload() should reject invalid policy")
	}

	got, _ := e.CalculateFairnessMultiplier(models.CreatorTierSmall, "general")
	if !approxEqual(got, 1.2) {
		t.Errorf("after failed reload multiplier = %v, want 1.2", got)
	}
}

func TestPolicy_ReturnsCopy(t *testing.T) {
	e := newTestEngine(70)

	p := e.Policy()
	p.TierMultipliers[models.CreatorTierSmall] = 99
	p.CategoryMultipliers["education"] = 99

	got, _ := e.CalculateFairnessMultiplier(models.CreatorTierSmall, "education")
	if !approxEqual(got, 1.32) {
		t.Errorf("Policy() should return a copy, multiplier = %v", got)
	}
}
