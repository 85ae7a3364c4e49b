package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opadata/checkout-api/internal/infra/resilience"
)

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	calls := 0
	wantErr := errors.New("still failing")
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected final error, got %v", err)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentStopsEarly(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Millisecond}

	calls := 0
	inner := errors.New("cep not found")
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return resilience.Permanent(inner)
	})
	if !errors.Is(err, inner) {
		t.Fatalf("expected the underlying error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call for a permanent error, got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 10, InitialBackoff: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("should not matter")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBulkhead(t *testing.T) {
	b := resilience.NewBulkhead(1)

	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.Acquire(ctx); err == nil {
		t.Fatal("expected second acquire to block until timeout")
	}

	b.Release()
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}
