package wallet

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoLatency(t *testing.T) {
	if err := (NoLatency{}).Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (NoLatency{}).Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() on cancelled ctx = %v, want context.Canceled", err)
	}
}

func TestJitterLatency_WithinBounds(t *testing.T) {
	j := NewJitterLatency(5*time.Millisecond, 15*time.Millisecond, 1)

	for i := 0; i < 5; i++ {
		start := time.Now()
		if err := j.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if d := time.Since(start); d < 5*time.Millisecond {
			t.Errorf("waited %v, want at least 5ms", d)
		}
	}
}

func TestJitterLatency_Cancelled(t *testing.T) {
	j := NewJitterLatency(time.Hour, time.Hour, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := j.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}
