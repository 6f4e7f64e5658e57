package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/metadata"
	"github.com/Fantasim/nanas/internal/metrics"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/scoring"
	"github.com/Fantasim/nanas/internal/wallet"
)

// MetadataFetcher resolves a content URL into metadata and engagement counts.
type MetadataFetcher interface {
	Fetch(ctx context.Context, contentURL string) (models.VideoMetadata, error)
}

// EntryStore persists ledger entries.
type EntryStore interface {
	CreateLedgerEntry(ctx context.Context, e models.LedgerEntry) error
	DeleteLedgerEntry(ctx context.Context, id string) error
	GetLedgerEntry(ctx context.Context, id string) (models.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error)
	DeleteAccount(ctx context.Context, accountID string) error
}

// AnalyzeRequest is the input of one analysis. Only URL and AccountID are required.
type AnalyzeRequest struct {
	URL         string `json:"url"`
	AccountID   string `json:"account_id"`
	CreatorID   string `json:"creator_id,omitempty"`
	CreatorTier string `json:"creator_tier,omitempty"`
	Followers   *int64 `json:"followers,omitempty"`
	Category    string `json:"category,omitempty"`
}

// AnalyzeResult is what a successful analysis produced.
type AnalyzeResult struct {
	Metadata  models.VideoMetadata  `json:"metadata"`
	Breakdown models.ScoreBreakdown `json:"score_breakdown"`
	Entry     models.LedgerEntry    `json:"ledger_entry"`
	Balance   models.WalletBalance  `json:"balance"`
}

// Service runs the analysis pipeline: fetch, evaluate, record, credit.
type Service struct {
	fetcher MetadataFetcher
	engine  *scoring.Engine
	entries EntryStore
	wallets *wallet.Manager
	metrics *metrics.Metrics
	clock   func() time.Time
}

// NewService wires the pipeline. m may be nil.
func NewService(fetcher MetadataFetcher, engine *scoring.Engine, entries EntryStore, wallets *wallet.Manager, m *metrics.Metrics) *Service {
	return &Service{
		fetcher: fetcher,
		engine:  engine,
		entries: entries,
		wallets: wallets,
		metrics: m,
		clock:   time.Now,
	}
}

// Engine returns the scoring engine, for policy administration.
func (s *Service) Engine() *scoring.Engine {
	return s.engine
}

// Analyze scores one content item and credits its payout to the account.
// A failure at any step before the credit is applied leaves no ledger entry
// and no transaction behind.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	start := time.Now()
	res, err := s.analyze(ctx, req)

	switch {
	case err == nil:
		s.metrics.ObserveEvaluation(metrics.ResultSuccess, time.Since(start))
	case errors.Is(err, config.ErrInvalidArgument):
		s.metrics.ObserveEvaluation(metrics.ResultRejected, time.Since(start))
	default:
		s.metrics.ObserveEvaluation(metrics.ResultFailed, time.Since(start))
	}
	return res, err
}

func (s *Service) analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	ledger, err := s.wallets.Ledger(req.AccountID)
	if err != nil {
		return AnalyzeResult{}, err
	}

	contentURL := strings.TrimSpace(req.URL)
	videoID, err := metadata.ExtractVideoID(contentURL)
	if err != nil {
		return AnalyzeResult{}, err
	}

	tier, err := resolveTier(req)
	if err != nil {
		return AnalyzeResult{}, err
	}

	meta, err := s.fetcher.Fetch(ctx, contentURL)
	if err != nil {
		slog.Warn("metadata fetch failed", "accountID", req.AccountID, "videoID", videoID, "error", err)
		return AnalyzeResult{}, fmt.Errorf("%w: %w", config.ErrAnalysisFailed, err)
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = scoring.CategoryFromTitle(meta.Title)
	}

	breakdown, err := s.engine.Evaluate(ctx, scoring.EvaluationRequest{
		Content:  models.ContentRef{VideoID: videoID, URL: contentURL, Title: meta.Title},
		Metrics:  meta.Metrics,
		Tier:     tier,
		Category: category,
	})
	if err != nil {
		return AnalyzeResult{}, err
	}

	creatorID := strings.TrimSpace(req.CreatorID)
	if creatorID == "" {
		creatorID = req.AccountID
	}

	entry := models.LedgerEntry{
		ID:          uuid.New().String(),
		AccountID:   req.AccountID,
		VideoID:     videoID,
		CreatorID:   creatorID,
		URL:         contentURL,
		Title:       meta.Title,
		Timestamp:   s.clock().UTC(),
		Category:    category,
		CreatorTier: tier,
		Metrics:     meta.Metrics,
	}
	breakdown.LedgerEntryID = entry.ID
	entry.Breakdown = breakdown

	if err := s.entries.CreateLedgerEntry(ctx, entry); err != nil {
		return AnalyzeResult{}, fmt.Errorf("record ledger entry: %w", err)
	}

	bal, err := ledger.Credit(ctx, breakdown.Nanas, wallet.CreditSource{
		VideoID:       videoID,
		LedgerEntryID: entry.ID,
		Description:   fmt.Sprintf("Earned from video analysis (%s)", videoID),
	})
	if err != nil {
		// The request context may already be cancelled; the rollback must still run.
		if delErr := s.entries.DeleteLedgerEntry(context.WithoutCancel(ctx), entry.ID); delErr != nil {
			slog.Error("failed to remove uncredited ledger entry",
				"ledgerEntryID", entry.ID,
				"error", delErr,
			)
		}
		return AnalyzeResult{}, fmt.Errorf("credit payout: %w", err)
	}
	s.metrics.AddCredited(breakdown.Nanas)

	slog.Info("video analyzed",
		"accountID", req.AccountID,
		"videoID", videoID,
		"ledgerEntryID", entry.ID,
		"qse", breakdown.QSEScore,
		"nanas", breakdown.Nanas.String(),
	)

	return AnalyzeResult{
		Metadata:  meta,
		Breakdown: breakdown,
		Entry:     entry,
		Balance:   bal,
	}, nil
}

// resolveTier picks the creator tier: explicit tier, then follower count, then small.
func resolveTier(req AnalyzeRequest) (models.CreatorTier, error) {
	if strings.TrimSpace(req.CreatorTier) != "" {
		return scoring.ParseCreatorTier(req.CreatorTier)
	}
	if req.Followers != nil {
		if *req.Followers < 0 {
			return "", fmt.Errorf("%w: follower count must be non-negative", config.ErrInvalidArgument)
		}
		return scoring.CreatorTierForFollowers(*req.Followers), nil
	}
	return models.CreatorTierSmall, nil
}

// ListLedgerEntries returns the newest ledger entries of an account.
// limit <= 0 means config.DefaultHistoryLimit; larger values are capped.
func (s *Service) ListLedgerEntries(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if err := wallet.ValidateAccountID(accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = config.DefaultHistoryLimit
	}
	if limit > config.MaxHistoryLimit {
		limit = config.MaxHistoryLimit
	}
	return s.entries.ListLedgerEntries(ctx, accountID, limit)
}

// GetLedgerEntry returns one entry of an account; entries of other accounts
// are reported as not found.
func (s *Service) GetLedgerEntry(ctx context.Context, accountID, id string) (models.LedgerEntry, error) {
	if err := wallet.ValidateAccountID(accountID); err != nil {
		return models.LedgerEntry{}, err
	}
	e, err := s.entries.GetLedgerEntry(ctx, id)
	if err != nil {
		return models.LedgerEntry{}, err
	}
	if e.AccountID != accountID {
		return models.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", id, config.ErrNotFound)
	}
	return e, nil
}

// DeleteAccount removes an account's wallet and its ledger entries.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) error {
	if err := s.wallets.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	return s.entries.DeleteAccount(ctx, accountID)
}
