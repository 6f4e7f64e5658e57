package scoring

import (
	"fmt"
	"strings"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

// categoryKeywords is checked in order; the first matching category wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"education", []string{"tutorial", "how to", "learn"}},
	{"comedy", []string{"comedy", "funny", "joke"}},
	{"dance", []string{"dance", "choreography"}},
	{"news", []string{"news", "update", "breaking"}},
	{"science", []string{"science", "experiment", "research"}},
}

// CreatorTierForFollowers buckets a follower count into a creator tier.
func CreatorTierForFollowers(followers int64) models.CreatorTier {
	switch {
	case followers < config.SmallCreatorMaxFollowers:
		return models.CreatorTierSmall
	case followers < config.MidCreatorMaxFollowers:
		return models.CreatorTierMid
	default:
		return models.CreatorTierLarge
	}
}

// CategoryFromTitle guesses a content category from title keywords.
func CategoryFromTitle(title string) string {
	lower := strings.ToLower(title)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return config.DefaultCategory
}

// ParseCreatorTier converts user input into a CreatorTier.
func ParseCreatorTier(s string) (models.CreatorTier, error) {
	switch t := models.CreatorTier(strings.ToLower(strings.TrimSpace(s))); t {
	case models.CreatorTierSmall, models.CreatorTierMid, models.CreatorTierLarge:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown creator tier %q", config.ErrInvalidArgument, s)
	}
}
