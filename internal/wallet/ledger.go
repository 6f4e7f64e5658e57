package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

// Settings are the cash-out policy limits.
type Settings struct {
	KYCThreshold   decimal.Decimal
	MinCashOut     decimal.Decimal
	KYCReviewDelay time.Duration
}

// DefaultSettings returns the canonical cash-out limits.
func DefaultSettings() Settings {
	return Settings{
		KYCThreshold:   decimal.NewFromFloat(config.DefaultKYCThreshold),
		MinCashOut:     decimal.NewFromFloat(config.DefaultMinCashOut),
		KYCReviewDelay: config.DefaultKYCReviewDelay,
	}
}

// withDefaults fills each zero field from DefaultSettings independently.
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.KYCThreshold.IsZero() {
		s.KYCThreshold = d.KYCThreshold
	}
	if s.MinCashOut.IsZero() {
		s.MinCashOut = d.MinCashOut
	}
	if s.KYCReviewDelay == 0 {
		s.KYCReviewDelay = d.KYCReviewDelay
	}
	return s
}

// ReviewScheduler runs a deferred KYC review for an account.
type ReviewScheduler interface {
	Schedule(accountID string, review func(ctx context.Context) error)
}

// CreditSource describes what produced a credit.
type CreditSource struct {
	VideoID       string
	LedgerEntryID string
	Description   string
}

// Options are the injectable collaborators of a Ledger. Zero settings fields
// fall back to DefaultSettings one by one; other zero values mean NoLatency,
// time.Now and no analytics.
type Options struct {
	Settings  Settings
	Latency   Latency
	Analytics AnalyticsSource
	Reviews   ReviewScheduler
	Clock     func() time.Time
}

// Ledger is the wallet of one account. Every operation holds the account
// mutex while it loads, validates and writes state, so concurrent debits
// cannot interleave. Latency is awaited before the mutex is taken.
type Ledger struct {
	accountID string
	store     Store
	settings  Settings
	latency   Latency
	analytics AnalyticsSource
	reviews   ReviewScheduler
	clock     func() time.Time

	mu sync.Mutex
}

// NewLedger creates the ledger of accountID.
func NewLedger(accountID string, store Store, opts Options) *Ledger {
	l := &Ledger{
		accountID: accountID,
		store:     store,
		settings:  opts.Settings.withDefaults(),
		latency:   opts.Latency,
		analytics: opts.Analytics,
		reviews:   opts.Reviews,
		clock:     opts.Clock,
	}
	if l.latency == nil {
		l.latency = NoLatency{}
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	return l
}

// AccountID returns the account this ledger belongs to.
func (l *Ledger) AccountID() string {
	return l.accountID
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC()
}

// GetBalance returns the current balance snapshot.
func (l *Ledger) GetBalance(ctx context.Context) (models.WalletBalance, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.WalletBalance{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.WalletBalance{}, fmt.Errorf("load account: %w", err)
	}
	return state.Balance, nil
}

// Credit adds a scoring payout to the account and records a nana transaction.
func (l *Ledger) Credit(ctx context.Context, amount decimal.Decimal, src CreditSource) (models.WalletBalance, error) {
	if !amount.IsPositive() {
		return models.WalletBalance{}, fmt.Errorf("%w: credit amount must be > 0, got %s", config.ErrInvalidArgument, amount)
	}
	if err := l.latency.Wait(ctx); err != nil {
		return models.WalletBalance{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.WalletBalance{}, fmt.Errorf("load account: %w", err)
	}

	now := l.now()
	bal := state.Balance
	bal.Nanas = bal.Nanas.Add(amount)
	bal.TotalEarned = bal.TotalEarned.Add(amount)
	bal.LastUpdated = now

	desc := src.Description
	if desc == "" {
		desc = "Earned from video analysis"
	}
	txn := models.Transaction{
		ID:             uuid.New().String(),
		AccountID:      l.accountID,
		Type:           models.TransactionTypeNana,
		Amount:         amount,
		Description:    desc,
		Timestamp:      now,
		RelatedVideoID: src.VideoID,
		LedgerEntryID:  src.LedgerEntryID,
	}

	if err := l.store.SaveCredit(ctx, l.accountID, bal, txn); err != nil {
		return models.WalletBalance{}, fmt.Errorf("save credit: %w", err)
	}

	slog.Info("nanas credited",
		"accountID", l.accountID,
		"amount", amount.String(),
		"nanas", bal.Nanas.String(),
		"videoID", src.VideoID,
		"ledgerEntryID", src.LedgerEntryID,
	)
	return bal, nil
}

// RequestCashOut moves amount from nanas to pending and opens a pending
// cash-out request. Checks run in order, first failure wins: positive amount,
// available funds, KYC threshold, known payment method. The minimum amount is
// advisory and only reported by GetCashOutEligibility.
func (l *Ledger) RequestCashOut(ctx context.Context, amount decimal.Decimal, method models.PaymentMethod, details models.PaymentDetails) (models.CashOutRequest, error) {
	if !amount.IsPositive() {
		return models.CashOutRequest{}, fmt.Errorf("%w: cash-out amount must be > 0, got %s", config.ErrInvalidArgument, amount)
	}
	if err := l.latency.Wait(ctx); err != nil {
		return models.CashOutRequest{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.CashOutRequest{}, fmt.Errorf("load account: %w", err)
	}

	if amount.GreaterThan(state.Balance.Nanas) {
		slog.Warn("cash-out rejected: insufficient nanas",
			"accountID", l.accountID,
			"amount", amount.String(),
			"nanas", state.Balance.Nanas.String(),
		)
		return models.CashOutRequest{}, fmt.Errorf("%w: requested %s, available %s", config.ErrInsufficientFunds, amount, state.Balance.Nanas)
	}
	if l.kycRequired(amount, state.KYC) {
		slog.Warn("cash-out rejected: KYC required",
			"accountID", l.accountID,
			"amount", amount.String(),
			"threshold", l.settings.KYCThreshold.String(),
		)
		return models.CashOutRequest{}, fmt.Errorf("%w: amounts of %s or more need verification", config.ErrKYCRequired, l.settings.KYCThreshold)
	}
	if !method.Valid() {
		return models.CashOutRequest{}, fmt.Errorf("%w: unknown payment method %q", config.ErrInvalidArgument, method)
	}

	now := l.now()
	bal := state.Balance
	bal.Nanas = bal.Nanas.Sub(amount)
	bal.PendingNanas = bal.PendingNanas.Add(amount)
	bal.LastUpdated = now

	req := models.CashOutRequest{
		ID:             uuid.New().String(),
		AccountID:      l.accountID,
		Amount:         amount,
		Status:         models.CashOutStatusPending,
		RequestedAt:    now,
		PaymentMethod:  method,
		PaymentDetails: details,
	}
	txn := models.Transaction{
		ID:               uuid.New().String(),
		AccountID:        l.accountID,
		Type:             models.TransactionTypeCashOut,
		Amount:           amount.Neg(),
		Description:      fmt.Sprintf("Cash-out request via %s", method),
		Timestamp:        now,
		CashOutRequestID: req.ID,
	}

	if err := l.store.SaveCashOut(ctx, l.accountID, bal, req, txn); err != nil {
		return models.CashOutRequest{}, fmt.Errorf("save cash-out: %w", err)
	}

	slog.Info("cash-out requested",
		"accountID", l.accountID,
		"requestID", req.ID,
		"amount", amount.String(),
		"method", method,
	)
	return req, nil
}

func (l *Ledger) kycRequired(amount decimal.Decimal, kyc models.KYCStatus) bool {
	return amount.GreaterThanOrEqual(l.settings.KYCThreshold) && !kyc.IsVerified
}

// GetCashOutEligibility advises whether amount can be cashed out right now,
// without changing anything. On top of the RequestCashOut checks it applies
// the recommended minimum.
func (l *Ledger) GetCashOutEligibility(ctx context.Context, amount decimal.Decimal) (models.CashOutEligibility, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.CashOutEligibility{}, err
	}

	l.mu.Lock()
	state, err := l.store.LoadAccount(ctx, l.accountID)
	l.mu.Unlock()
	if err != nil {
		return models.CashOutEligibility{}, fmt.Errorf("load account: %w", err)
	}

	out := models.CashOutEligibility{
		MinAmount: l.settings.MinCashOut,
		MaxAmount: state.Balance.Nanas,
	}

	switch {
	case amount.LessThan(l.settings.MinCashOut) || !amount.IsPositive():
		out.Reason = fmt.Sprintf("Minimum cash-out amount is %s", l.settings.MinCashOut)
	case amount.GreaterThan(state.Balance.Nanas):
		out.Reason = "Insufficient nanas"
	case l.kycRequired(amount, state.KYC):
		out.KYCRequired = true
		out.Reason = fmt.Sprintf("KYC verification required for amounts of %s or more", l.settings.KYCThreshold)
	default:
		out.Eligible = true
	}
	return out, nil
}

// ApproveCashOutRequest settles a pending request: pending nanas leave the
// account and a debit transaction is recorded.
func (l *Ledger) ApproveCashOutRequest(ctx context.Context, requestID string) (models.CashOutRequest, error) {
	return l.settle(ctx, requestID, models.CashOutStatusApproved, "")
}

// RejectCashOutRequest declines a pending request and refunds its amount to nanas.
func (l *Ledger) RejectCashOutRequest(ctx context.Context, requestID, reason string) (models.CashOutRequest, error) {
	return l.settle(ctx, requestID, models.CashOutStatusRejected, reason)
}

func (l *Ledger) settle(ctx context.Context, requestID string, to models.CashOutStatus, reason string) (models.CashOutRequest, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.CashOutRequest{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	req, err := l.store.GetCashOutRequest(ctx, l.accountID, requestID)
	if err != nil {
		return models.CashOutRequest{}, err
	}
	if req.Status != models.CashOutStatusPending {
		return models.CashOutRequest{}, fmt.Errorf("%w: cash-out request %s is %s, not pending", config.ErrInvalidState, requestID, req.Status)
	}

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.CashOutRequest{}, fmt.Errorf("load account: %w", err)
	}
	if state.Balance.PendingNanas.LessThan(req.Amount) {
		return models.CashOutRequest{}, fmt.Errorf("%w: pending nanas %s below request amount %s", config.ErrInvalidState, state.Balance.PendingNanas, req.Amount)
	}

	now := l.now()
	bal := state.Balance
	bal.PendingNanas = bal.PendingNanas.Sub(req.Amount)
	bal.LastUpdated = now

	txn := models.Transaction{
		ID:               uuid.New().String(),
		AccountID:        l.accountID,
		Timestamp:        now,
		CashOutRequestID: req.ID,
	}
	switch to {
	case models.CashOutStatusApproved:
		txn.Type = models.TransactionTypeDebit
		txn.Amount = req.Amount.Neg()
		txn.Description = fmt.Sprintf("Cash-out settled via %s", req.PaymentMethod)
	case models.CashOutStatusRejected:
		bal.Nanas = bal.Nanas.Add(req.Amount)
		txn.Type = models.TransactionTypeRefund
		txn.Amount = req.Amount
		txn.Description = "Cash-out rejected, amount refunded"
		req.Reason = strings.TrimSpace(reason)
	}

	req.Status = to
	req.ProcessedAt = &now

	if err := l.store.SaveSettlement(ctx, l.accountID, bal, req, txn); err != nil {
		return models.CashOutRequest{}, fmt.Errorf("save settlement: %w", err)
	}

	slog.Info("cash-out request processed",
		"accountID", l.accountID,
		"requestID", req.ID,
		"status", req.Status,
		"amount", req.Amount.String(),
		"pendingNanas", bal.PendingNanas.String(),
	)
	return req, nil
}

// CompleteCashOutRequest records that the payment collaborator delivered an
// approved payout. No balance changes.
func (l *Ledger) CompleteCashOutRequest(ctx context.Context, requestID string) (models.CashOutRequest, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.CashOutRequest{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	req, err := l.store.GetCashOutRequest(ctx, l.accountID, requestID)
	if err != nil {
		return models.CashOutRequest{}, err
	}
	if req.Status != models.CashOutStatusApproved {
		return models.CashOutRequest{}, fmt.Errorf("%w: cash-out request %s is %s, not approved", config.ErrInvalidState, requestID, req.Status)
	}

	now := l.now()
	req.Status = models.CashOutStatusCompleted
	req.ProcessedAt = &now

	if err := l.store.UpdateCashOutRequest(ctx, l.accountID, req); err != nil {
		return models.CashOutRequest{}, fmt.Errorf("update cash-out request: %w", err)
	}

	slog.Info("cash-out request completed", "accountID", l.accountID, "requestID", req.ID)
	return req, nil
}

// GetCashOutRequests returns all cash-out requests, newest first.
func (l *Ledger) GetCashOutRequests(ctx context.Context) ([]models.CashOutRequest, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return nil, err
	}
	return l.store.ListCashOutRequests(ctx, l.accountID)
}

// SubmitKYCDocuments records the submitted document kinds and moves the
// account to basic verification. Full verification is granted later by the
// review scheduler, never within this call.
func (l *Ledger) SubmitKYCDocuments(ctx context.Context, documents []string) (models.KYCStatus, error) {
	docs := normalizeDocuments(documents)
	if len(docs) == 0 {
		return models.KYCStatus{}, fmt.Errorf("%w: at least one document is required", config.ErrInvalidArgument)
	}
	if err := l.latency.Wait(ctx); err != nil {
		return models.KYCStatus{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.KYCStatus{}, fmt.Errorf("load account: %w", err)
	}
	if state.KYC.IsVerified {
		return models.KYCStatus{}, fmt.Errorf("%w: account is already fully verified", config.ErrInvalidState)
	}

	now := l.now()
	next := now.Add(config.KYCNextReviewInterval)
	kyc := models.KYCStatus{
		IsVerified:         false,
		VerificationLevel:  models.VerificationBasic,
		DocumentsSubmitted: normalizeDocuments(append(state.KYC.DocumentsSubmitted, docs...)),
		LastUpdated:        now,
		NextReviewDate:     &next,
	}

	if err := l.store.SaveKYC(ctx, l.accountID, kyc); err != nil {
		return models.KYCStatus{}, fmt.Errorf("save KYC: %w", err)
	}

	if l.reviews != nil {
		l.reviews.Schedule(l.accountID, l.completeKYCReview)
	}

	slog.Info("KYC documents submitted",
		"accountID", l.accountID,
		"documents", kyc.DocumentsSubmitted,
	)
	return kyc, nil
}

// completeKYCReview grants full verification to an account still at basic level.
func (l *Ledger) completeKYCReview(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if state.KYC.VerificationLevel != models.VerificationBasic {
		return nil
	}

	kyc := state.KYC
	kyc.IsVerified = true
	kyc.VerificationLevel = models.VerificationFull
	kyc.LastUpdated = l.now()

	if err := l.store.SaveKYC(ctx, l.accountID, kyc); err != nil {
		return fmt.Errorf("save KYC: %w", err)
	}

	slog.Info("KYC review completed", "accountID", l.accountID, "level", kyc.VerificationLevel)
	return nil
}

// GetKYCStatus returns the current verification state.
func (l *Ledger) GetKYCStatus(ctx context.Context) (models.KYCStatus, error) {
	if err := l.latency.Wait(ctx); err != nil {
		return models.KYCStatus{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.store.LoadAccount(ctx, l.accountID)
	if err != nil {
		return models.KYCStatus{}, fmt.Errorf("load account: %w", err)
	}
	return state.KYC, nil
}

// GetTransactionHistory returns at most limit transactions, newest first.
// limit is capped at MaxHistoryLimit.
func (l *Ledger) GetTransactionHistory(ctx context.Context, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be > 0, got %d", config.ErrInvalidArgument, limit)
	}
	limit = min(limit, config.MaxHistoryLimit)

	if err := l.latency.Wait(ctx); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, l.accountID, limit)
}

// normalizeDocuments lowercases, trims and de-duplicates document kinds,
// keeping first-seen order.
func normalizeDocuments(documents []string) []string {
	out := make([]string, 0, len(documents))
	for _, d := range documents {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}
