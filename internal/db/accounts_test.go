package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
	"github.com/Fantasim/nanas/internal/wallet"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testTxn(id, accountID string, typ models.TransactionType, amount string, ts time.Time) models.Transaction {
	return models.Transaction{
		ID:          id,
		AccountID:   accountID,
		Type:        typ,
		Amount:      dec(amount),
		Description: "test " + id,
		Timestamp:   ts,
	}
}

func TestLoadAccount_Unknown(t *testing.T) {
	d := newTestDB(t)

	state, err := d.LoadAccount(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("LoadAccount() error = %v", err)
	}
	if !state.Balance.Nanas.IsZero() || !state.Balance.TotalEarned.IsZero() {
		t.Errorf("unknown account balance = %+v, want zero", state.Balance)
	}
	if state.KYC.VerificationLevel != models.VerificationNone {
		t.Errorf("unknown account KYC level = %q, want none", state.KYC.VerificationLevel)
	}
	if state.KYC.DocumentsSubmitted == nil {
		t.Error("documents should be an empty slice, not nil")
	}
}

func TestSaveCredit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	bal := models.WalletBalance{
		Nanas:        dec("1.234"),
		PendingNanas: decimal.Zero,
		TotalEarned:  dec("1.234"),
		LastUpdated:  now,
	}
	txn := testTxn("t1", "alice", models.TransactionTypeNana, "1.234", now)
	txn.RelatedVideoID = "7234567890123456789"
	txn.LedgerEntryID = "le-1"

	if err := d.SaveCredit(ctx, "alice", bal, txn); err != nil {
		t.Fatalf("SaveCredit() error = %v", err)
	}

	state, err := d.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadAccount() error = %v", err)
	}
	if !state.Balance.Nanas.Equal(dec("1.234")) {
		t.Errorf("Nanas = %s, want 1.234", state.Balance.Nanas)
	}
	if !state.Balance.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", state.Balance.LastUpdated, now)
	}

	txns, err := d.ListTransactions(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txns))
	}
	got := txns[0]
	if got.ID != "t1" || got.Type != models.TransactionTypeNana || !got.Amount.Equal(dec("1.234")) {
		t.Errorf("transaction = %+v", got)
	}
	if got.RelatedVideoID != txn.RelatedVideoID || got.LedgerEntryID != "le-1" {
		t.Errorf("transaction links = %q/%q", got.RelatedVideoID, got.LedgerEntryID)
	}
}

func TestSaveCredit_AtomicOnDuplicateTransaction(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := models.WalletBalance{Nanas: dec("1"), PendingNanas: decimal.Zero, TotalEarned: dec("1"), LastUpdated: now}
	if err := d.SaveCredit(ctx, "alice", first, testTxn("dup", "alice", models.TransactionTypeNana, "1", now)); err != nil {
		t.Fatalf("SaveCredit() error = %v", err)
	}

	second := models.WalletBalance{Nanas: dec("2"), PendingNanas: decimal.Zero, TotalEarned: dec("2"), LastUpdated: now}
	if err := d.SaveCredit(ctx, "alice", second, testTxn("dup", "alice", models.TransactionTypeNana, "1", now)); err == nil {
		t.Fatal("expected duplicate transaction id to fail")
	}

	state, _ := d.LoadAccount(ctx, "alice")
	if !state.Balance.Nanas.Equal(dec("1")) {
		t.Errorf("balance after failed save = %s, want 1 (rolled back)", state.Balance.Nanas)
	}
}

func TestListTransactions_OrderAndLimit(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	// Identical timestamps: ordering must come from insertion order.
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		bal := models.WalletBalance{Nanas: decimal.NewFromInt(int64(i + 1)), PendingNanas: decimal.Zero, TotalEarned: decimal.NewFromInt(int64(i + 1)), LastUpdated: now}
		if err := d.SaveCredit(ctx, "alice", bal, testTxn(id, "alice", models.TransactionTypeNana, "1", now)); err != nil {
			t.Fatalf("SaveCredit(%s) error = %v", id, err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"d", "c", "b", "a"}},
		{"limited", 2, []string{"d", "c"}},
		{"over", 10, []string{"d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns, err := d.ListTransactions(ctx, "alice", tt.limit)
			if err != nil {
				t.Fatalf("ListTransactions() error = %v", err)
			}
			if len(txns) != len(tt.want) {
				t.Fatalf("got %d transactions, want %d", len(txns), len(tt.want))
			}
			for i, id := range tt.want {
				if txns[i].ID != id {
					t.Errorf("txns[%d].ID = %q, want %q", i, txns[i].ID, id)
				}
			}
		})
	}

	other, err := d.ListTransactions(ctx, "bob", 10)
	if err != nil {
		t.Fatalf("ListTransactions(bob) error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("bob should have no transactions, got %d", len(other))
	}
}

func TestTransactionsSince(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		bal := models.WalletBalance{Nanas: decimal.NewFromInt(int64(i + 1)), PendingNanas: decimal.Zero, TotalEarned: decimal.NewFromInt(int64(i + 1)), LastUpdated: ts}
		id := string(rune('a' + i))
		if err := d.SaveCredit(ctx, "alice", bal, testTxn(id, "alice", models.TransactionTypeNana, "1", ts)); err != nil {
			t.Fatalf("SaveCredit() error = %v", err)
		}
	}

	txns, err := d.TransactionsSince(ctx, "alice", base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("TransactionsSince() error = %v", err)
	}
	want := []string{"c", "d", "e"}
	if len(txns) != len(want) {
		t.Fatalf("got %d transactions, want %d", len(txns), len(want))
	}
	for i, id := range want {
		if txns[i].ID != id {
			t.Errorf("txns[%d].ID = %q, want %q", i, txns[i].ID, id)
		}
	}
}

func TestCashOutRequests(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	req := models.CashOutRequest{
		ID:            "req-1",
		AccountID:     "alice",
		Amount:        dec("10"),
		Status:        models.CashOutStatusPending,
		RequestedAt:   now,
		PaymentMethod: models.PaymentMethodPayPal,
		PaymentDetails: models.PaymentDetails{
			PaypalEmail: "alice@example.com",
		},
	}
	bal := models.WalletBalance{Nanas: dec("5"), PendingNanas: dec("10"), TotalEarned: dec("15"), LastUpdated: now}
	txn := testTxn("t-co", "alice", models.TransactionTypeCashOut, "-10", now)
	txn.CashOutRequestID = "req-1"

	if err := d.SaveCashOut(ctx, "alice", bal, req, txn); err != nil {
		t.Fatalf("SaveCashOut() error = %v", err)
	}

	got, err := d.GetCashOutRequest(ctx, "alice", "req-1")
	if err != nil {
		t.Fatalf("GetCashOutRequest() error = %v", err)
	}
	if got.Status != models.CashOutStatusPending || !got.Amount.Equal(dec("10")) {
		t.Errorf("request = %+v", got)
	}
	if got.ProcessedAt != nil {
		t.Errorf("ProcessedAt = %v, want nil", got.ProcessedAt)
	}
	if got.PaymentDetails.PaypalEmail != "alice@example.com" {
		t.Errorf("PaypalEmail = %q", got.PaymentDetails.PaypalEmail)
	}

	// Approve: status change plus the pending debit.
	processed := now.Add(time.Minute)
	got.Status = models.CashOutStatusApproved
	got.ProcessedAt = &processed
	settled := models.WalletBalance{Nanas: dec("5"), PendingNanas: decimal.Zero, TotalEarned: dec("15"), LastUpdated: processed}
	if err := d.SaveSettlement(ctx, "alice", settled, got, testTxn("t-debit", "alice", models.TransactionTypeDebit, "-10", processed)); err != nil {
		t.Fatalf("SaveSettlement() error = %v", err)
	}

	got, _ = d.GetCashOutRequest(ctx, "alice", "req-1")
	if got.Status != models.CashOutStatusApproved || got.ProcessedAt == nil || !got.ProcessedAt.Equal(processed) {
		t.Errorf("approved request = %+v", got)
	}
	state, _ := d.LoadAccount(ctx, "alice")
	if !state.Balance.PendingNanas.IsZero() {
		t.Errorf("PendingNanas = %s, want 0", state.Balance.PendingNanas)
	}

	got.Status = models.CashOutStatusCompleted
	if err := d.UpdateCashOutRequest(ctx, "alice", got); err != nil {
		t.Fatalf("UpdateCashOutRequest() error = %v", err)
	}

	// Requests are scoped to their account.
	if _, err := d.GetCashOutRequest(ctx, "bob", "req-1"); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("GetCashOutRequest(bob) error = %v, want ErrNotFound", err)
	}
	if err := d.UpdateCashOutRequest(ctx, "bob", got); !errors.Is(err, config.ErrNotFound) {
		t.Errorf("UpdateCashOutRequest(bob) error = %v, want ErrNotFound", err)
	}
}

func TestListCashOutRequests_NewestFirst(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"r1", "r2", "r3"} {
		req := models.CashOutRequest{
			ID: id, AccountID: "alice", Amount: dec("5"), Status: models.CashOutStatusPending,
			RequestedAt: now, PaymentMethod: models.PaymentMethodGiftCard,
			PaymentDetails: models.PaymentDetails{GiftCardType: "amazon"},
		}
		bal := models.WalletBalance{Nanas: decimal.Zero, PendingNanas: dec("5"), TotalEarned: dec("15"), LastUpdated: now}
		if err := d.SaveCashOut(ctx, "alice", bal, req, testTxn("t-"+id, "alice", models.TransactionTypeCashOut, "-5", now)); err != nil {
			t.Fatalf("SaveCashOut(%s) error = %v", id, err)
		}
	}

	reqs, err := d.ListCashOutRequests(ctx, "alice")
	if err != nil {
		t.Fatalf("ListCashOutRequests() error = %v", err)
	}
	want := []string{"r3", "r2", "r1"}
	if len(reqs) != len(want) {
		t.Fatalf("got %d requests, want %d", len(reqs), len(want))
	}
	for i, id := range want {
		if reqs[i].ID != id {
			t.Errorf("reqs[%d].ID = %q, want %q", i, reqs[i].ID, id)
		}
	}
}

func TestSaveKYC(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(config.KYCNextReviewInterval)

	// KYC before any credit creates the account row.
	kyc := models.KYCStatus{
		IsVerified:         true,
		VerificationLevel:  models.VerificationFull,
		DocumentsSubmitted: []string{"id_card", "proof_of_address"},
		LastUpdated:        now,
		NextReviewDate:     &next,
	}
	if err := d.SaveKYC(ctx, "alice", kyc); err != nil {
		t.Fatalf("SaveKYC() error = %v", err)
	}

	// A later credit must not clobber the KYC columns.
	bal := models.WalletBalance{Nanas: dec("1"), PendingNanas: decimal.Zero, TotalEarned: dec("1"), LastUpdated: now}
	if err := d.SaveCredit(ctx, "alice", bal, testTxn("t1", "alice", models.TransactionTypeNana, "1", now)); err != nil {
		t.Fatalf("SaveCredit() error = %v", err)
	}

	state, err := d.LoadAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadAccount() error = %v", err)
	}
	if !state.KYC.IsVerified || state.KYC.VerificationLevel != models.VerificationFull {
		t.Errorf("KYC = %+v", state.KYC)
	}
	if len(state.KYC.DocumentsSubmitted) != 2 || state.KYC.DocumentsSubmitted[1] != "proof_of_address" {
		t.Errorf("documents = %v", state.KYC.DocumentsSubmitted)
	}
	if state.KYC.NextReviewDate == nil || !state.KYC.NextReviewDate.Equal(next) {
		t.Errorf("NextReviewDate = %v, want %v", state.KYC.NextReviewDate, next)
	}
	if !state.Balance.Nanas.Equal(dec("1")) {
		t.Errorf("Nanas = %s, want 1", state.Balance.Nanas)
	}
}

func TestDeleteAccount(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	bal := models.WalletBalance{Nanas: dec("3"), PendingNanas: decimal.Zero, TotalEarned: dec("3"), LastUpdated: now}
	if err := d.SaveCredit(ctx, "alice", bal, testTxn("t1", "alice", models.TransactionTypeNana, "3", now)); err != nil {
		t.Fatalf("SaveCredit() error = %v", err)
	}
	if err := d.SaveCredit(ctx, "bob", bal, testTxn("t2", "bob", models.TransactionTypeNana, "3", now)); err != nil {
		t.Fatalf("SaveCredit() error = %v", err)
	}

	if err := d.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	state, _ := d.LoadAccount(ctx, "alice")
	if !state.Balance.Nanas.IsZero() {
		t.Errorf("deleted account balance = %s, want 0", state.Balance.Nanas)
	}
	txns, _ := d.ListTransactions(ctx, "alice", 0)
	if len(txns) != 0 {
		t.Errorf("deleted account has %d transactions", len(txns))
	}
	bobTxns, _ := d.ListTransactions(ctx, "bob", 0)
	if len(bobTxns) != 1 {
		t.Errorf("bob should keep 1 transaction, got %d", len(bobTxns))
	}
}

// The ledger's guarantees must hold on the sqlite store as well as the memory store.
func TestLedgerOnSQLite(t *testing.T) {
	d := newTestDB(t)
	ctx := context.Background()
	l := wallet.NewLedger("alice", d, wallet.Options{Analytics: d})

	if _, err := l.Credit(ctx, dec("100"), wallet.CreditSource{VideoID: "v1", Description: "seed"}); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.RequestCashOut(ctx, dec("10"), models.PaymentMethodPayPal, models.PaymentDetails{PaypalEmail: "a@example.com"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("succeeded cash-outs = %d, want 10", succeeded)
	}
	bal, err := l.GetBalance(ctx)
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if !bal.Nanas.IsZero() || !bal.PendingNanas.Equal(dec("100")) {
		t.Errorf("balance = %s/%s, want 0/100", bal.Nanas, bal.PendingNanas)
	}

	reqs, err := l.GetCashOutRequests(ctx)
	if err != nil {
		t.Fatalf("GetCashOutRequests() error = %v", err)
	}
	if len(reqs) != 10 {
		t.Fatalf("requests = %d, want 10", len(reqs))
	}

	if _, err := l.RejectCashOutRequest(ctx, reqs[0].ID, "test"); err != nil {
		t.Fatalf("RejectCashOutRequest() error = %v", err)
	}
	bal, _ = l.GetBalance(ctx)
	if !bal.Nanas.Equal(dec("10")) || !bal.PendingNanas.Equal(dec("90")) {
		t.Errorf("after reject = %s/%s, want 10/90", bal.Nanas, bal.PendingNanas)
	}
}
