package rewards

import (
	"context"
	"fmt"
	"sync"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/wallet"
)

var (
	_ EntryStore             = (*MemoryEntryStore)(nil)
	_ wallet.AnalyticsSource = (*MemoryEntryStore)(nil)
)

// MemoryEntryStore keeps ledger entries in insertion order. Used when the
// service runs without a database and in tests.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries []models.LedgerEntry
}

// NewMemoryEntryStore creates an empty store.
func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{}
}

func (s *MemoryEntryStore) CreateLedgerEntry(_ context.Context, e models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return fmt.Errorf("%w: duplicate ledger entry %s", config.ErrInvalidState, e.ID)
		}
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryEntryStore) DeleteLedgerEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryEntryStore) GetLedgerEntry(_ context.Context, id string) (models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.LedgerEntry{}, fmt.Errorf("ledger entry %s: %w", id, config.ErrNotFound)
}

func (s *MemoryEntryStore) ListLedgerEntries(_ context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *MemoryEntryStore) DeleteAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.AccountID != accountID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// AccountStats implements wallet.AnalyticsSource.
func (s *MemoryEntryStore) AccountStats(_ context.Context, accountID string) (int64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		views int64
		sum   float64
		n     int
	)
	for _, e := range s.entries {
		if e.AccountID != accountID {
			continue
		}
		views += e.Metrics.Views
		sum += e.Breakdown.QSEScore
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return views, sum / float64(n), nil
}
