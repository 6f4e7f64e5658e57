package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/models"
)

// AccountState is the mutable aggregate of one account.
type AccountState struct {
	Balance models.WalletBalance
	KYC     models.KYCStatus
}

// NewAccountState returns the state of an account that has never been written.
func NewAccountState() AccountState {
	return AccountState{
		Balance: models.WalletBalance{
			Nanas:        decimal.Zero,
			PendingNanas: decimal.Zero,
			TotalEarned:  decimal.Zero,
		},
		KYC: models.KYCStatus{
			VerificationLevel:  models.VerificationNone,
			DocumentsSubmitted: []string{},
		},
	}
}

// Store persists account state. Each Save* method must apply all of its
// arguments atomically: either every write is visible or none is.
//
// Transactions are append-only; list order is insertion order, so callers
// never depend on timestamp resolution for ordering.
type Store interface {
	// LoadAccount returns the current state, or NewAccountState for unknown accounts.
	LoadAccount(ctx context.Context, accountID string) (AccountState, error)

	SaveCredit(ctx context.Context, accountID string, bal models.WalletBalance, txn models.Transaction) error
	SaveCashOut(ctx context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error
	// SaveSettlement stores a status change of an existing request along with
	// the balance change and transaction it caused.
	SaveSettlement(ctx context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error
	// UpdateCashOutRequest stores a status change that moves no funds.
	UpdateCashOutRequest(ctx context.Context, accountID string, req models.CashOutRequest) error
	SaveKYC(ctx context.Context, accountID string, kyc models.KYCStatus) error

	// ListTransactions returns up to limit transactions, newest first.
	ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	// TransactionsSince returns transactions with Timestamp >= since, oldest first.
	TransactionsSince(ctx context.Context, accountID string, since time.Time) ([]models.Transaction, error)

	// GetCashOutRequest returns config.ErrNotFound for unknown ids.
	GetCashOutRequest(ctx context.Context, accountID, requestID string) (models.CashOutRequest, error)
	// ListCashOutRequests returns all requests, newest first.
	ListCashOutRequests(ctx context.Context, accountID string) ([]models.CashOutRequest, error)

	DeleteAccount(ctx context.Context, accountID string) error
}

// AnalyticsSource supplies the per-account aggregates the ledger does not own.
type AnalyticsSource interface {
	AccountStats(ctx context.Context, accountID string) (totalViews int64, avgQSEScore float64, err error)
}
