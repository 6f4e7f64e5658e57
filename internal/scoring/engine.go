package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

// QualityClassifier rates a content item on a [0,100] quality scale.
type QualityClassifier interface {
	Classify(ctx context.Context, ref models.ContentRef) (float64, error)
}

// EvaluationRequest is the input of one scoring run.
type EvaluationRequest struct {
	Content  models.ContentRef
	Metrics  models.EngagementMetrics
	Tier     models.CreatorTier
	Category string
}

// Engine converts engagement metrics and creator context into a nanas payout.
// Thread-safe: the policy is protected by a RWMutex for hot-reload from the admin API.
type Engine struct {
	policy     Policy
	mu         sync.RWMutex
	classifier QualityClassifier
	variation  VariationPolicy
}

// NewEngine creates an engine with the given policy, quality classifier and
// variation policy. A nil variation means IdentityVariation.
func NewEngine(policy Policy, classifier QualityClassifier, variation VariationPolicy) *Engine {
	if variation == nil {
		variation = IdentityVariation{}
	}
	slog.Info("scoring engine initialized",
		"categories", len(policy.CategoryMultipliers),
		"variation", fmt.Sprintf("%T", variation),
	)
	return &Engine{
		policy:     policy.Clone(),
		classifier: classifier,
		variation:  variation,
	}
}

// Reload replaces the current policy. Returns error if the new policy is invalid.
func (e *Engine) Reload(p Policy) error {
	if err := ValidatePolicy(p); err != nil {
		return fmt.Errorf("reload policy: %w", err)
	}

	e.mu.Lock()
	e.policy = p.Clone()
	e.mu.Unlock()

	slog.Info("scoring policy reloaded", "categories", len(p.CategoryMultipliers))
	return nil
}

// Policy returns a copy of the current policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy.Clone()
}

func (e *Engine) snapshot() Policy {
	e.mu.RLock()
	p := e.policy
	e.mu.RUnlock()
	return p
}

// CalculateImpactScore scores reach and engagement on [0,100].
// engagementRate = (likes + 2*comments + 3*shares) / views (0 when views = 0),
// viewScore = min(100, 20*log10(views+1)), engagementScore = min(100, 1000*rate),
// impact = round(0.6*viewScore + 0.4*engagementScore).
func (e *Engine) CalculateImpactScore(m models.EngagementMetrics) (float64, error) {
	return impactScore(e.snapshot(), m)
}

func impactScore(p Policy, m models.EngagementMetrics) (float64, error) {
	if m.Views < 0 || m.Likes < 0 || m.Comments < 0 || m.Shares < 0 {
		return 0, fmt.Errorf("%w: engagement counts must be non-negative", config.ErrInvalidArgument)
	}

	views := float64(m.Views)

	var engagementRate float64
	if views > 0 {
		weighted := float64(m.Likes) + p.CommentWeight*float64(m.Comments) + p.ShareWeight*float64(m.Shares)
		engagementRate = weighted / views
	}

	viewScore := math.Min(config.MaxScore, config.ViewScoreScale*math.Log10(views+1))
	engagementScore := math.Min(config.MaxScore, config.EngagementScoreScale*engagementRate)
	impact := math.Round(p.ViewWeight*viewScore + p.EngagementWeight*engagementScore)

	slog.Debug("impact score calculated",
		"views", m.Views,
		"engagementRate", engagementRate,
		"viewScore", viewScore,
		"engagementScore", engagementScore,
		"impact", impact,
	)
	return impact, nil
}

// AnalyzeContentQuality asks the quality classifier for a [0,100] score.
// Classifier failures and out-of-range scores are analysis failures; there is
// no fallback score.
func (e *Engine) AnalyzeContentQuality(ctx context.Context, ref models.ContentRef) (float64, error) {
	if e.classifier == nil {
		return 0, fmt.Errorf("%w: no quality classifier configured", config.ErrAnalysisFailed)
	}

	score, err := e.classifier.Classify(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("%w: quality classifier: %w", config.ErrAnalysisFailed, err)
	}
	if math.IsNaN(score) || score < config.MinScore || score > config.MaxScore {
		return 0, fmt.Errorf("%w: quality score %v out of range", config.ErrAnalysisFailed, score)
	}
	return score, nil
}

// CalculateFairnessMultiplier returns tierMultiplier * categoryMultiplier.
// An unknown tier is rejected; an unknown category counts as 1.0.
func (e *Engine) CalculateFairnessMultiplier(tier models.CreatorTier, category string) (float64, error) {
	return fairnessMultiplier(e.snapshot(), tier, category)
}

func fairnessMultiplier(p Policy, tier models.CreatorTier, category string) (float64, error) {
	tierMult, ok := p.TierMultipliers[tier]
	if !ok {
		return 0, fmt.Errorf("%w: unknown creator tier %q", config.ErrInvalidArgument, tier)
	}

	key := strings.ToLower(strings.TrimSpace(category))
	if key == "" {
		key = config.DefaultCategory
	}
	catMult, ok := p.CategoryMultipliers[key]
	if !ok {
		catMult = 1.0
	}

	return tierMult * catMult, nil
}

// CalculateTotalScore combines impact and quality with the same 0.6/0.4 split
// the impact score uses for reach vs engagement.
func (e *Engine) CalculateTotalScore(impact, quality float64) float64 {
	return totalScore(e.snapshot(), impact, quality)
}

func totalScore(p Policy, impact, quality float64) float64 {
	return math.Round(p.ImpactWeight*impact + p.QualityWeight*quality)
}

// ApplyFairness scales total by multiplier and clamps the result to [0,100].
func (e *Engine) ApplyFairness(total, multiplier float64) float64 {
	return math.Max(config.MinScore, math.Min(config.MaxScore, total*multiplier))
}

// CalculateNanas converts a normalized score and view count into a payout:
// max(floor, (score/100) * (views/10000) * 0.1 * variation), rounded to 3 places.
func (e *Engine) CalculateNanas(normalizedScore float64, views int64) (decimal.Decimal, error) {
	return e.nanas(e.snapshot(), normalizedScore, views)
}

func (e *Engine) nanas(p Policy, normalizedScore float64, views int64) (decimal.Decimal, error) {
	if views < 0 {
		return decimal.Zero, fmt.Errorf("%w: view count must be non-negative", config.ErrInvalidArgument)
	}
	if math.IsNaN(normalizedScore) || normalizedScore < config.MinScore || normalizedScore > config.MaxScore {
		return decimal.Zero, fmt.Errorf("%w: normalized score %v out of range", config.ErrInvalidArgument, normalizedScore)
	}

	base := (normalizedScore / config.MaxScore) * (float64(views) / p.NanasViewDivisor) * p.NanasRate
	nanas := math.Max(p.NanasFloor, base*e.variation.Factor())

	return decimal.NewFromFloat(nanas).Round(config.NanasPrecision), nil
}

// Evaluate runs the full pipeline: impact, quality, fairness multiplier, total,
// normalization, payout. Every step reads the same policy snapshot, so a
// concurrent Reload never mixes two policies in one breakdown. It returns
// either a fully populated breakdown or an error wrapping ErrAnalysisFailed;
// partial results are never returned.
func (e *Engine) Evaluate(ctx context.Context, req EvaluationRequest) (models.ScoreBreakdown, error) {
	p := e.snapshot()

	impact, err := impactScore(p, req.Metrics)
	if err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("%w: impact score: %w", config.ErrAnalysisFailed, err)
	}

	quality, err := e.AnalyzeContentQuality(ctx, req.Content)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	multiplier, err := fairnessMultiplier(p, req.Tier, req.Category)
	if err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("%w: fairness multiplier: %w", config.ErrAnalysisFailed, err)
	}

	total := totalScore(p, impact, quality)
	qse := e.ApplyFairness(total, multiplier)

	nanas, err := e.nanas(p, qse, req.Metrics.Views)
	if err != nil {
		return models.ScoreBreakdown{}, fmt.Errorf("%w: nanas: %w", config.ErrAnalysisFailed, err)
	}

	breakdown := models.ScoreBreakdown{
		ImpactScore:        impact,
		QualityScore:       quality,
		FairnessMultiplier: multiplier,
		TotalScore:         total,
		QSEScore:           qse,
		Nanas:              nanas,
	}

	slog.Info("content evaluated",
		"videoID", req.Content.VideoID,
		"tier", req.Tier,
		"category", req.Category,
		"impact", impact,
		"quality", quality,
		"multiplier", multiplier,
		"total", total,
		"qse", qse,
		"nanas", nanas.String(),
	)
	return breakdown, nil
}
