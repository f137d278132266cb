package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSlidingWindowBudget(t *testing.T) {
	l := NewSlidingWindow(Config{MaxRequests: 5, Window: time.Minute})
	base := time.Unix(1_700_000_000, 0)
	current := base
	l.now = func() time.Time { return current }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limited, err := l.IsRateLimited(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if limited {
			t.Fatalf("call %d limited, want allowed", i+1)
		}
		current = current.Add(time.Second)
	}

	limited, err := l.IsRateLimited(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("6th call: %v", err)
	}
	if !limited {
		t.Fatal("6th call within window not limited")
	}

	// Past the window the budget refills.
	current = base.Add(2 * time.Minute)
	limited, err = l.IsRateLimited(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("post-window call: %v", err)
	}
	if limited {
		t.Fatal("call after window still limited")
	}
}

func TestSlidingWindowIdentifiersIndependent(t *testing.T) {
	l := NewSlidingWindow(Config{MaxRequests: 1, Window: time.Minute})
	ctx := context.Background()

	if limited, _ := l.IsRateLimited(ctx, "a"); limited {
		t.Fatal("first call for a limited")
	}
	if limited, _ := l.IsRateLimited(ctx, "a"); !limited {
		t.Fatal("second call for a not limited")
	}
	if limited, _ := l.IsRateLimited(ctx, "b"); limited {
		t.Fatal("first call for b limited by a's budget")
	}
}

func TestSlidingWindowSustainedBurstStaysLimited(t *testing.T) {
	l := NewSlidingWindow(Config{MaxRequests: 5, Window: time.Minute})
	base := time.Unix(1_700_000_000, 0)
	current := base
	l.now = func() time.Time { return current }
	ctx := context.Background()

	// Hammer one identifier inside a single window. After the budget is
	// spent every call must stay limited, including the calls where the
	// list crosses the 2*MaxRequests trim threshold.
	for i := 1; i <= 12; i++ {
		limited, err := l.IsRateLimited(ctx, "abuser")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if i <= 5 && limited {
			t.Fatalf("call %d limited, want allowed", i)
		}
		if i > 5 && !limited {
			t.Fatalf("call %d admitted during sustained burst", i)
		}
		current = current.Add(time.Second)
	}
}

func TestSlidingWindowTrimBoundsMemory(t *testing.T) {
	l := NewSlidingWindow(Config{MaxRequests: 5, Window: time.Hour})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if _, err := l.IsRateLimited(ctx, "abuser"); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	l.mu.Lock()
	n := len(l.hits["abuser"])
	l.mu.Unlock()
	if n > 2*5 {
		t.Fatalf("window list holds %d entries, want <= 10", n)
	}
}

func TestSlidingWindowReset(t *testing.T) {
	l := NewSlidingWindow(Config{MaxRequests: 1, Window: time.Hour})
	ctx := context.Background()

	l.IsRateLimited(ctx, "x")
	if limited, _ := l.IsRateLimited(ctx, "x"); !limited {
		t.Fatal("not limited before reset")
	}
	l.Reset("x")
	if limited, _ := l.IsRateLimited(ctx, "x"); limited {
		t.Fatal("still limited after reset")
	}
}

func TestRedisLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := NewRedisLimiter(rdb, "irl", Config{MaxRequests: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limited, err := l.IsRateLimited(ctx, "email:abc")
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if limited {
			t.Fatalf("call %d limited, want allowed", i+1)
		}
	}
	if limited, _ := l.IsRateLimited(ctx, "email:abc"); !limited {
		t.Fatal("4th call not limited")
	}

	mr.FastForward(2 * time.Minute)
	if limited, _ := l.IsRateLimited(ctx, "email:abc"); limited {
		t.Fatal("call after window expiry still limited")
	}
}
