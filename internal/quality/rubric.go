package quality

import (
	"math"

	"github.com/Fantasim/nanas/internal/config"
)

// Band is the coarse quality grade derived from the overall score.
type Band string

const (
	BandNone   Band = "none"
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// Scores are the per-criterion ratings of a content item, each in [0,1].
// Out-of-range values are clamped.
type Scores struct {
	Hook                  float64 `json:"hook"`
	Retention             float64 `json:"retention"`
	Clarity               float64 `json:"clarity"`
	UsefulnessOriginality float64 `json:"usefulness_originality"`
	AudienceSpecificValue float64 `json:"audience_specific_value"`
	Engagement            float64 `json:"engagement"`
}

// Rubric is one graded evaluation: criterion scores plus compliance findings.
type Rubric struct {
	Scores            Scores  `json:"scores"`
	ComplianceRisk    float64 `json:"compliance_risk"`
	AIGenerated       bool    `json:"ai_generated"`
	CriticalViolation bool    `json:"critical_violation"`
}

// Result is the scored rubric.
type Result struct {
	Base       float64 `json:"base"`
	Penalty    float64 `json:"penalty"`
	NicheBonus float64 `json:"bonus_niche"`
	AIGCBonus  float64 `json:"bonus_aigc"`
	Overall    float64 `json:"overall"`
	Band       Band    `json:"band"`
}

// RubricScore turns a rubric into a [0,100] quality score.
//
//	base    = 100 * weighted sum of criteria
//	penalty = 100 * risk^2 * 0.6
//	niche   = clamp(20 * (audience - 0.7), 0, 10)
//	aigc    = 5 when AI generated with usefulness and clarity >= 0.8
//	overall = clamp(base - penalty + niche + aigc, 0, 100)
//
// A critical violation forces the score to 0 and the band to none.
func RubricScore(r Rubric) Result {
	s := r.Scores
	hook := clamp(s.Hook, 0, 1)
	retention := clamp(s.Retention, 0, 1)
	clarity := clamp(s.Clarity, 0, 1)
	usefulness := clamp(s.UsefulnessOriginality, 0, 1)
	audience := clamp(s.AudienceSpecificValue, 0, 1)
	engagement := clamp(s.Engagement, 0, 1)
	risk := clamp(r.ComplianceRisk, 0, 1)

	base := config.MaxScore * (config.RubricHookWeight*hook +
		config.RubricRetentionWeight*retention +
		config.RubricClarityWeight*clarity +
		config.RubricUsefulnessWeight*usefulness +
		config.RubricAudienceWeight*audience +
		config.RubricEngagementWeight*engagement)

	penalty := config.MaxScore * risk * risk * config.RubricRiskPenaltyFactor
	niche := clamp(config.RubricNicheScale*(audience-config.RubricNicheThreshold), 0, config.RubricNicheMaxBonus)

	var aigc float64
	if r.AIGenerated && usefulness >= config.RubricAIGCMinScore && clarity >= config.RubricAIGCMinScore {
		aigc = config.RubricAIGCBonus
	}

	overall := clamp(base-penalty+niche+aigc, config.MinScore, config.MaxScore)
	band := BandFor(overall)
	if r.CriticalViolation {
		overall = 0
		band = BandNone
	}

	return Result{
		Base:       base,
		Penalty:    penalty,
		NicheBonus: niche,
		AIGCBonus:  aigc,
		Overall:    overall,
		Band:       band,
	}
}

// BandFor grades a [0,100] score.
func BandFor(score float64) Band {
	switch {
	case score < config.QualityBandLow:
		return BandNone
	case score < config.QualityBandMedium:
		return BandLow
	case score < config.QualityBandHigh:
		return BandMedium
	default:
		return BandHigh
	}
}

func clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}
