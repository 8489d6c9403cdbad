package provider

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSpacesCalls(t *testing.T) {
	r := NewRateLimiter(20)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.WaitTurn(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("three calls at 20rps took %v", elapsed)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := NewRateLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := r.WaitTurn(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("disabled limiter slept %v", elapsed)
	}
}

func TestRateLimiterHonoursCancel(t *testing.T) {
	r := NewRateLimiter(1)
	ctx, cancel := context.WithCancel(context.Background())
	_ = r.WaitTurn(ctx)
	cancel()
	if err := r.WaitTurn(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}
