package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS = one token every 100ms, burst 1 means the second call
	// has to wait for the refill.
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{
		DefaultRPS:   1,
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Host B has its own bucket and must not be blocked by A.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("host B blocked unexpectedly")
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{
		DefaultRPS:   0.1,
		DefaultBurst: 1,
	})
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx, "https://slow.com"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://slow.com"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLimiter_UnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.Wait(ctx, "https://fast.com"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("unlimited limiter introduced delay")
	}
}
