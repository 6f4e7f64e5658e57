package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Fantasim/nanas/internal/config"
	"github.com/Fantasim/nanas/internal/models"
)

func newTestManager(t *testing.T, delay time.Duration) *Manager {
	t.Helper()
	settings := DefaultSettings()
	settings.KYCReviewDelay = delay
	m := NewManager(NewMemoryStore(), Options{Settings: settings})
	t.Cleanup(m.Stop)
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestManager_LedgerPerAccount(t *testing.T) {
	m := newTestManager(t, time.Hour)

	a1, err := m.Ledger("alice")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := m.Ledger("alice")
	b, _ := m.Ledger("bob")

	if a1 != a2 {
		t.Error("Ledger() should return the same ledger for the same account")
	}
	if a1 == b {
		t.Error("different accounts share a ledger")
	}

	mustCredit(t, a1, "10")
	bal, _ := b.GetBalance(context.Background())
	if !bal.Nanas.IsZero() {
		t.Errorf("bob balance = %s, want 0", bal.Nanas)
	}
}

func TestManager_InvalidAccountID(t *testing.T) {
	m := newTestManager(t, time.Hour)

	for _, id := range []string{"", "has space", "../etc", string(make([]byte, 65))} {
		if _, err := m.Ledger(id); !errors.Is(err, config.ErrInvalidArgument) {
			t.Errorf("Ledger(%q) error = %v, want ErrInvalidArgument", id, err)
		}
	}
}

func TestManager_KYCReviewGrantsFull(t *testing.T) {
	m := newTestManager(t, 20*time.Millisecond)
	l, _ := m.Ledger("alice")
	ctx := context.Background()

	if _, err := l.SubmitKYCDocuments(ctx, []string{"passport"}); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		kyc, _ := l.GetKYCStatus(ctx)
		return kyc.IsVerified
	})
	if !ok {
		t.Fatal("KYC was not verified after the review delay")
	}

	kyc, _ := l.GetKYCStatus(ctx)
	if kyc.VerificationLevel != models.VerificationFull {
		t.Errorf("level = %s, want full", kyc.VerificationLevel)
	}

	// Verified accounts may now cash out above the threshold.
	mustCredit(t, l, "100")
	if _, err := l.RequestCashOut(ctx, dec("60"), models.PaymentMethodPayPal, paypal()); err != nil {
		t.Errorf("RequestCashOut(60) after verification error = %v", err)
	}

	if _, err := l.SubmitKYCDocuments(ctx, []string{"passport"}); !errors.Is(err, config.ErrInvalidState) {
		t.Errorf("resubmit after full error = %v, want ErrInvalidState", err)
	}
}

func TestManager_DeleteAccountCancelsReview(t *testing.T) {
	m := newTestManager(t, 50*time.Millisecond)
	l, _ := m.Ledger("alice")
	ctx := context.Background()

	mustCredit(t, l, "10")
	if _, err := l.SubmitKYCDocuments(ctx, []string{"id_card"}); err != nil {
		t.Fatal(err)
	}
	if m.Reviewer().Pending() != 1 {
		t.Fatalf("pending reviews = %d, want 1", m.Reviewer().Pending())
	}

	if err := m.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if m.Reviewer().Pending() != 0 {
		t.Errorf("pending reviews after delete = %d, want 0", m.Reviewer().Pending())
	}

	time.Sleep(100 * time.Millisecond)

	fresh, _ := m.Ledger("alice")
	kyc, _ := fresh.GetKYCStatus(ctx)
	if kyc.IsVerified || kyc.VerificationLevel != models.VerificationNone {
		t.Errorf("deleted account KYC = %+v, want none", kyc)
	}
	bal, _ := fresh.GetBalance(ctx)
	if !bal.Nanas.IsZero() {
		t.Errorf("deleted account balance = %s, want 0", bal.Nanas)
	}
}

func TestManager_DeleteAccountKeepsSingleLedger(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	stale, _ := m.Ledger("alice")
	mustCredit(t, stale, "10")
	if err := m.DeleteAccount(ctx, "alice"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	fresh, _ := m.Ledger("alice")
	if stale != fresh {
		t.Fatal("DeleteAccount() replaced the account's ledger")
	}

	const credits = 200
	var wg sync.WaitGroup
	for i := 0; i < credits; i++ {
		l := stale
		if i%2 == 0 {
			l = fresh
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Credit(ctx, dec("1"), CreditSource{VideoID: "v"}); err != nil {
				t.Errorf("Credit() error = %v", err)
			}
		}()
	}
	wg.Wait()

	bal, _ := fresh.GetBalance(ctx)
	if !bal.Nanas.Equal(dec("200")) {
		t.Errorf("nanas = %s, want %d", bal.Nanas, credits)
	}
}

func TestSettings_DefaultsPerField(t *testing.T) {
	m := NewManager(NewMemoryStore(), Options{Settings: Settings{KYCReviewDelay: time.Hour}})
	t.Cleanup(m.Stop)

	got := m.Settings()
	if got.KYCReviewDelay != time.Hour {
		t.Errorf("KYCReviewDelay = %s, want 1h", got.KYCReviewDelay)
	}
	if !got.KYCThreshold.Equal(dec("50")) || !got.MinCashOut.Equal(dec("5")) {
		t.Errorf("limits = %s/%s, want defaults 50/5", got.KYCThreshold, got.MinCashOut)
	}

	l := NewLedger("acct-1", NewMemoryStore(), Options{Settings: Settings{KYCThreshold: dec("10")}})
	mustCredit(t, l, "100")
	_, err := l.RequestCashOut(context.Background(), dec("10"), models.PaymentMethodPayPal, paypal())
	if !errors.Is(err, config.ErrKYCRequired) {
		t.Errorf("RequestCashOut(10) error = %v, want ErrKYCRequired at custom threshold", err)
	}
}

func TestKYCReviewer_RescheduleReplaces(t *testing.T) {
	r := NewKYCReviewer(30 * time.Millisecond)
	defer r.Stop()

	calls := make(chan string, 2)
	r.Schedule("alice", func(context.Context) error { calls <- "first"; return nil })
	r.Schedule("alice", func(context.Context) error { calls <- "second"; return nil })

	select {
	case got := <-calls:
		if got != "second" {
			t.Errorf("review ran = %s, want second", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("review did not run")
	}

	select {
	case got := <-calls:
		t.Errorf("replaced review also ran: %s", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestKYCReviewer_StopWaits(t *testing.T) {
	r := NewKYCReviewer(time.Hour)

	ran := false
	r.Schedule("alice", func(context.Context) error { ran = true; return nil })
	r.Schedule("bob", func(context.Context) error { ran = true; return nil })

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
	if ran {
		t.Error("review ran after Stop()")
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d after Stop, want 0", r.Pending())
	}

	r.Schedule("carol", func(context.Context) error { return nil })
	if r.Pending() != 0 {
		t.Error("Schedule after Stop should be a no-op")
	}
}
