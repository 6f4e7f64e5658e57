package wallet

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type scheduledReview struct {
	cancel context.CancelFunc
}

// KYCReviewer runs one delayed verification review per account, each in its
// own goroutine. Scheduling again for the same account replaces the pending
// review; Cancel drops it; Stop cancels everything and waits.
type KYCReviewer struct {
	delay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*scheduledReview
	stopped bool
	wg      sync.WaitGroup
}

// NewKYCReviewer creates a reviewer that waits delay before each review.
func NewKYCReviewer(delay time.Duration) *KYCReviewer {
	ctx, cancel := context.WithCancel(context.Background())
	slog.Info("KYC reviewer initialized", "delay", delay)
	return &KYCReviewer{
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*scheduledReview),
	}
}

// Schedule implements ReviewScheduler.
func (r *KYCReviewer) Schedule(accountID string, review func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		slog.Warn("KYC review not scheduled, reviewer stopped", "accountID", accountID)
		return
	}
	if prev, ok := r.pending[accountID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(r.ctx)
	entry := &scheduledReview{cancel: cancel}
	r.pending[accountID] = entry

	r.wg.Add(1)
	go r.run(ctx, accountID, entry, review)

	slog.Debug("KYC review scheduled", "accountID", accountID, "delay", r.delay)
}

func (r *KYCReviewer) run(ctx context.Context, accountID string, entry *scheduledReview, review func(ctx context.Context) error) {
	defer r.wg.Done()
	defer func() {
		r.mu.Lock()
		if r.pending[accountID] == entry {
			delete(r.pending, accountID)
		}
		r.mu.Unlock()
		entry.cancel()
	}()

	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		slog.Debug("KYC review cancelled", "accountID", accountID)
		return
	case <-timer.C:
	}

	if err := review(ctx); err != nil {
		slog.Error("KYC review failed", "accountID", accountID, "error", err)
	}
}

// Cancel drops the pending review of accountID. Returns false if none was pending.
func (r *KYCReviewer) Cancel(accountID string) bool {
	r.mu.Lock()
	entry, ok := r.pending[accountID]
	if ok {
		delete(r.pending, accountID)
	}
	r.mu.Unlock()

	if ok {
		entry.cancel()
		slog.Info("KYC review cancelled", "accountID", accountID)
	}
	return ok
}

// Pending returns the number of scheduled reviews.
func (r *KYCReviewer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels all pending reviews and waits for their goroutines to exit.
func (r *KYCReviewer) Stop() {
	r.mu.Lock()
	r.stopped = true
	n := len(r.pending)
	r.mu.Unlock()

	slog.Info("stopping KYC reviewer", "pending", n)
	r.cancel()
	r.wg.Wait()
	slog.Info("KYC reviewer stopped")
}
