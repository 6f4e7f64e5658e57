package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/Fantasim/nanas/internal/config"
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ValidateAccountID rejects empty or malformed account identifiers.
func ValidateAccountID(accountID string) error {
	if !accountIDPattern.MatchString(accountID) {
		return fmt.Errorf("%w: invalid account id %q", config.ErrInvalidArgument, accountID)
	}
	return nil
}

// Manager owns one Ledger per account and the KYC reviewer they share.
type Manager struct {
	store    Store
	opts     Options
	reviewer *KYCReviewer

	mu      sync.Mutex
	ledgers map[string]*Ledger
}

// NewManager creates a manager. opts.Reviews is replaced by the manager's reviewer.
func NewManager(store Store, opts Options) *Manager {
	opts.Settings = opts.Settings.withDefaults()
	reviewer := NewKYCReviewer(opts.Settings.KYCReviewDelay)
	opts.Reviews = reviewer

	slog.Info("wallet manager initialized",
		"kycThreshold", opts.Settings.KYCThreshold.String(),
		"minCashOut", opts.Settings.MinCashOut.String(),
		"kycReviewDelay", opts.Settings.KYCReviewDelay,
	)

	return &Manager{
		store:    store,
		opts:     opts,
		reviewer: reviewer,
		ledgers:  make(map[string]*Ledger),
	}
}

// Ledger returns the ledger of accountID, creating it on first use.
func (m *Manager) Ledger(accountID string) (*Ledger, error) {
	if err := ValidateAccountID(accountID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.ledgers[accountID]
	if !ok {
		l = NewLedger(accountID, m.store, m.opts)
		m.ledgers[accountID] = l
		slog.Debug("ledger opened", "accountID", accountID)
	}
	return l, nil
}

// Settings returns the cash-out limits applied to every ledger.
func (m *Manager) Settings() Settings {
	return m.opts.Settings
}

// Reviewer returns the shared KYC reviewer.
func (m *Manager) Reviewer() *KYCReviewer {
	return m.reviewer
}

// DeleteAccount cancels the account's pending KYC review and removes all of
// its state. The ledger stays registered so the account keeps a single lock;
// later operations start from a fresh state.
func (m *Manager) DeleteAccount(ctx context.Context, accountID string) error {
	l, err := m.Ledger(accountID)
	if err != nil {
		return err
	}

	m.reviewer.Cancel(accountID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := m.store.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	slog.Info("account deleted", "accountID", accountID)
	return nil
}

// Stop cancels pending KYC reviews and waits for them to exit.
func (m *Manager) Stop() {
	m.reviewer.Stop()
}
