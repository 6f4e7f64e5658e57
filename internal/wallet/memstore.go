package wallet

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

type memAccount struct {
	state        AccountState
	transactions []models.Transaction
	requests     []models.CashOutRequest
}

// MemoryStore is an in-process Store. Used by tests and the demo server when
// no database path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*memAccount
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memAccount)}
}

func (s *MemoryStore) account(accountID string) *memAccount {
	a, ok := s.accounts[accountID]
	if !ok {
		a = &memAccount{state: NewAccountState()}
		s.accounts[accountID] = a
	}
	return a
}

func (s *MemoryStore) LoadAccount(_ context.Context, accountID string) (AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return NewAccountState(), nil
	}
	state := a.state
	state.KYC.DocumentsSubmitted = slices.Clone(a.state.KYC.DocumentsSubmitted)
	return state, nil
}

func (s *MemoryStore) SaveCredit(_ context.Context, accountID string, bal models.WalletBalance, txn models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account(accountID)
	a.state.Balance = bal
	a.transactions = append(a.transactions, txn)
	return nil
}

func (s *MemoryStore) SaveCashOut(_ context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account(accountID)
	a.state.Balance = bal
	a.requests = append(a.requests, req)
	a.transactions = append(a.transactions, txn)
	return nil
}

func (s *MemoryStore) SaveSettlement(_ context.Context, accountID string, bal models.WalletBalance, req models.CashOutRequest, txn models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account(accountID)
	i := a.requestIndex(req.ID)
	if i < 0 {
		return fmt.Errorf("cash-out request %s: %w", req.ID, config.ErrNotFound)
	}
	a.state.Balance = bal
	a.requests[i] = req
	a.transactions = append(a.transactions, txn)
	return nil
}

func (s *MemoryStore) UpdateCashOutRequest(_ context.Context, accountID string, req models.CashOutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.account(accountID)
	i := a.requestIndex(req.ID)
	if i < 0 {
		return fmt.Errorf("cash-out request %s: %w", req.ID, config.ErrNotFound)
	}
	a.requests[i] = req
	return nil
}

func (s *MemoryStore) SaveKYC(_ context.Context, accountID string, kyc models.KYCStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kyc.DocumentsSubmitted = slices.Clone(kyc.DocumentsSubmitted)
	s.account(accountID).state.KYC = kyc
	return nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID string, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return []models.Transaction{}, nil
	}

	n := len(a.transactions)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Transaction, 0, n)
	for i := len(a.transactions) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.transactions[i])
	}
	return out, nil
}

func (s *MemoryStore) TransactionsSince(_ context.Context, accountID string, since time.Time) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Transaction{}
	a, ok := s.accounts[accountID]
	if !ok {
		return out, nil
	}
	for _, t := range a.transactions {
		if !t.Timestamp.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetCashOutRequest(_ context.Context, accountID, requestID string) (models.CashOutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID]; ok {
		if i := a.requestIndex(requestID); i >= 0 {
			return a.requests[i], nil
		}
	}
	return models.CashOutRequest{}, fmt.Errorf("cash-out request %s: %w", requestID, config.ErrNotFound)
}

func (s *MemoryStore) ListCashOutRequests(_ context.Context, accountID string) ([]models.CashOutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CashOutRequest{}
	if a, ok := s.accounts[accountID]; ok {
		for i := len(a.requests) - 1; i >= 0; i-- {
			out = append(out, a.requests[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, accountID)
	return nil
}

func (a *memAccount) requestIndex(id string) int {
	return slices.IndexFunc(a.requests, func(r models.CashOutRequest) bool { return r.ID == id })
}
