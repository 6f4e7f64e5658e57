// Command score evaluates engagement numbers against a reward policy offline,
// without any collaborator or wallet. The quality score is given on the
// command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/quality"
	"github.com/Fantasim/nanas/internal/scoring"
)

func main() {
	views := flag.Int64("views", 0, "View count")
	likes := flag.Int64("likes", 0, "Like count")
	comments := flag.Int64("comments", 0, "Comment count")
	shares := flag.Int64("shares", 0, "Share count")
	tier := flag.String("tier", "small", "Creator tier: small, mid or large")
	category := flag.String("category", "", "Content category (default: derived from -title)")
	title := flag.String("title", "", "Content title")
	qualityScore := flag.Float64("quality", 50, "Quality score in [0,100]")
	policyFile := flag.String("policy", "", "Reward policy JSON file (default: built-in policy)")
	flag.Parse()

	if err := run(*views, *likes, *comments, *shares, *tier, *category, *title, *qualityScore, *policyFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(views, likes, comments, shares int64, tierStr, category, title string, qualityScore float64, policyFile string) error {
	policy := scoring.DefaultPolicy()
	if policyFile != "" {
		p, err := scoring.LoadPolicy(policyFile)
		if err != nil {
			return err
		}
		policy = p
	}

	tier, err := scoring.ParseCreatorTier(tierStr)
	if err != nil {
		return err
	}
	if category == "" {
		category = scoring.CategoryFromTitle(title)
	}

	engine := scoring.NewEngine(policy, quality.StaticClassifier{Score: qualityScore}, nil)
	breakdown, err := engine.Evaluate(context.Background(), scoring.EvaluationRequest{
		Content:  models.ContentRef{VideoID: "offline", Title: title},
		Metrics:  models.EngagementMetrics{Views: views, Likes: likes, Comments: comments, Shares: shares},
		Tier:     tier,
		Category: category,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Tier      models.CreatorTier    `json:"creator_tier"`
		Category  string                `json:"category"`
		Breakdown models.ScoreBreakdown `json:"score_breakdown"`
	}{tier, category, breakdown})
}
