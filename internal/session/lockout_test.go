package session

import (
	"context"
	"testing"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/cache"
)

func newTestLockout(cfg LockoutConfig) *Lockout {
	return NewLockout(cache.NewMemory("test"), cfg)
}

func TestLockout_BelowThresholdNoLock(t *testing.T) {
	lk := newTestLockout(LockoutConfig{Threshold: 3, BaseWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if locked, _ := lk.RecordFailure(ctx, "mgarcia"); locked {
			t.Fatalf("failure %d must not lock below threshold", i+1)
		}
	}
	if _, locked := lk.Locked(ctx, "mgarcia"); locked {
		t.Fatal("user must not be locked below threshold")
	}
}

func TestLockout_CompoundingWindow(t *testing.T) {
	lk := newTestLockout(LockoutConfig{
		Threshold:  2,
		BaseWindow: time.Minute,
		Multiplier: 2,
		MaxWindow:  time.Hour,
	})
	ctx := context.Background()

	lk.RecordFailure(ctx, "mgarcia")
	_, until2 := lk.RecordFailure(ctx, "mgarcia") // threshold hit: ventana base
	_, until3 := lk.RecordFailure(ctx, "mgarcia") // 1 extra: x2
	_, until4 := lk.RecordFailure(ctx, "mgarcia") // 2 extra: x4

	w2 := time.Until(until2)
	w3 := time.Until(until3)
	w4 := time.Until(until4)

	if w2 < 50*time.Second || w2 > 70*time.Second {
		t.Fatalf("first lock window ~1m, got %v", w2)
	}
	if w3 < 110*time.Second || w3 > 130*time.Second {
		t.Fatalf("second lock window ~2m, got %v", w3)
	}
	if w4 < 230*time.Second || w4 > 250*time.Second {
		t.Fatalf("third lock window ~4m, got %v", w4)
	}
}

func TestLockout_MaxWindowCap(t *testing.T) {
	lk := newTestLockout(LockoutConfig{
		Threshold:  1,
		BaseWindow: time.Minute,
		Multiplier: 10,
		MaxWindow:  5 * time.Minute,
	})
	ctx := context.Background()

	var until time.Time
	for i := 0; i < 6; i++ {
		_, until = lk.RecordFailure(ctx, "mgarcia")
	}
	if w := time.Until(until); w > 5*time.Minute+time.Second {
		t.Fatalf("window must be capped at max, got %v", w)
	}
}

func TestLockout_ResetClears(t *testing.T) {
	lk := newTestLockout(LockoutConfig{Threshold: 1, BaseWindow: time.Hour})
	ctx := context.Background()

	if locked, _ := lk.RecordFailure(ctx, "mgarcia"); !locked {
		t.Fatal("threshold 1 locks on first failure")
	}
	lk.Reset(ctx, "mgarcia")
	if _, locked := lk.Locked(ctx, "mgarcia"); locked {
		t.Fatal("reset must clear the lockout")
	}
}

func TestLockout_KeyNormalization(t *testing.T) {
	lk := newTestLockout(LockoutConfig{Threshold: 1, BaseWindow: time.Hour})
	ctx := context.Background()

	lk.RecordFailure(ctx, "  MGarcia ")
	if _, locked := lk.Locked(ctx, "mgarcia"); !locked {
		t.Fatal("lockout key must normalize case and whitespace")
	}
}
