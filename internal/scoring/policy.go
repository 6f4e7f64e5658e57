package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

// weightTolerance absorbs float noise when checking that a weight pair sums to 1.
const weightTolerance = 1e-9

// Policy holds every tunable constant of the reward formula. Divergent
// dashboard variants become different policy files, not different code.
type Policy struct {
	ViewWeight       float64 `json:"view_weight"`
	EngagementWeight float64 `json:"engagement_weight"`
	ImpactWeight     float64 `json:"impact_weight"`
	QualityWeight    float64 `json:"quality_weight"`

	CommentWeight float64 `json:"comment_weight"`
	ShareWeight   float64 `json:"share_weight"`

	TierMultipliers     map[models.CreatorTier]float64 `json:"tier_multipliers"`
	CategoryMultipliers map[string]float64             `json:"category_multipliers"`

	NanasRate        float64 `json:"nanas_rate"`
	NanasViewDivisor float64 `json:"nanas_view_divisor"`
	NanasFloor       float64 `json:"nanas_floor"`
}

// DefaultPolicy returns the canonical reward policy.
func DefaultPolicy() Policy {
	return Policy{
		ViewWeight:       config.ImpactViewWeight,
		EngagementWeight: config.ImpactEngagementWeight,
		ImpactWeight:     config.TotalImpactWeight,
		QualityWeight:    config.TotalQualityWeight,
		CommentWeight:    config.CommentWeight,
		ShareWeight:      config.ShareWeight,
		TierMultipliers: map[models.CreatorTier]float64{
			models.CreatorTierSmall: 1.2,
			models.CreatorTierMid:   1.0,
			models.CreatorTierLarge: 0.8,
		},
		CategoryMultipliers: map[string]float64{
			"education": 1.1,
			"science":   1.1,
			"news":      1.05,
			"comedy":    0.95,
			"dance":     0.9,
			"general":   1.0,
		},
		NanasRate:        config.NanasRate,
		NanasViewDivisor: config.NanasViewDivisor,
		NanasFloor:       config.NanasFloor,
	}
}

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	out := p
	out.TierMultipliers = make(map[models.CreatorTier]float64, len(p.TierMultipliers))
	for k, v := range p.TierMultipliers {
		out.TierMultipliers[k] = v
	}
	out.CategoryMultipliers = make(map[string]float64, len(p.CategoryMultipliers))
	for k, v := range p.CategoryMultipliers {
		out.CategoryMultipliers[k] = v
	}
	return out
}

// ValidatePolicy checks that a policy satisfies all invariants:
//   - each weight pair is within [0,1] and sums to 1
//   - comment/share weights are >= 0
//   - all three creator tiers have a positive multiplier
//   - category keys are lowercase and multipliers positive
//   - payout rate, divisor and floor are positive
func ValidatePolicy(p Policy) error {
	pairs := []struct {
		name string
		a, b float64
	}{
		{"view/engagement", p.ViewWeight, p.EngagementWeight},
		{"impact/quality", p.ImpactWeight, p.QualityWeight},
	}
	for _, pair := range pairs {
		if pair.a < 0 || pair.a > 1 || pair.b < 0 || pair.b > 1 {
			return fmt.Errorf("%w: policy %s weights must be within [0,1]", config.ErrInvalidConfig, pair.name)
		}
		if math.Abs(pair.a+pair.b-1) > weightTolerance {
			return fmt.Errorf("%w: policy %s weights must sum to 1, got %.4f", config.ErrInvalidConfig, pair.name, pair.a+pair.b)
		}
	}

	if p.CommentWeight < 0 || p.ShareWeight < 0 {
		return fmt.Errorf("%w: policy comment/share weights must be >= 0", config.ErrInvalidConfig)
	}

	for _, tier := range []models.CreatorTier{models.CreatorTierSmall, models.CreatorTierMid, models.CreatorTierLarge} {
		m, ok := p.TierMultipliers[tier]
		if !ok {
			return fmt.Errorf("%w: policy missing tier multiplier for %q", config.ErrInvalidConfig, tier)
		}
		if m <= 0 {
			return fmt.Errorf("%w: policy tier %q multiplier must be > 0, got %.4f", config.ErrInvalidConfig, tier, m)
		}
	}
	if len(p.TierMultipliers) != 3 {
		return fmt.Errorf("%w: policy has unknown creator tiers", config.ErrInvalidConfig)
	}

	for cat, m := range p.CategoryMultipliers {
		if cat == "" || cat != strings.ToLower(cat) {
			return fmt.Errorf("%w: policy category %q must be a non-empty lowercase key", config.ErrInvalidConfig, cat)
		}
		if m <= 0 {
			return fmt.Errorf("%w: policy category %q multiplier must be > 0, got %.4f", config.ErrInvalidConfig, cat, m)
		}
	}

	if p.NanasRate <= 0 || p.NanasViewDivisor <= 0 || p.NanasFloor <= 0 {
		return fmt.Errorf("%w: policy nanas rate, view divisor and floor must be > 0", config.ErrInvalidConfig)
	}

	return nil
}

// LoadPolicy reads a policy from a JSON file, validates it, and returns it.
func LoadPolicy(path string) (Policy, error) {
	slog.Debug("loading reward policy", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file %q: %w", path, err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy JSON: %w", err)
	}

	if err := ValidatePolicy(p); err != nil {
		return Policy{}, err
	}

	slog.Info("reward policy loaded",
		"path", path,
		"categories", len(p.CategoryMultipliers),
	)

	return p, nil
}

// SavePolicy validates p and writes it to path.
func SavePolicy(path string, p Policy) error {
	if err := ValidatePolicy(p); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write policy to %q: %w", path, err)
	}

	slog.Info("reward policy saved", "path", path)
	return nil
}

// LoadOrCreatePolicy tries to load the policy from path. If the file does not
// exist, it writes the default policy first, then loads it.
func LoadOrCreatePolicy(path string) (Policy, error) {
	p, err := LoadPolicy(path)
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		// File exists but is invalid.
		return Policy{}, err
	}

	slog.Info("creating default reward policy", "path", path)
	if err := SavePolicy(path, DefaultPolicy()); err != nil {
		return Policy{}, err
	}

	return LoadPolicy(path)
}
