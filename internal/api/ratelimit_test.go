package api

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Take("10.0.0.1"); !ok {
			t.Fatalf("request %d refused", i)
		}
	}
	now = now.Add(20 * time.Second)
	ok, retry := rl.Take("10.0.0.1")
	if ok || retry != 40*time.Second {
		t.Fatalf("third request: ok=%v retry=%v", ok, retry)
	}
	if ok, _ := rl.Take("10.0.0.2"); !ok {
		t.Fatal("other client refused")
	}

	now = now.Add(time.Minute)
	if ok, _ := rl.Take("10.0.0.1"); !ok {
		t.Fatal("refused after window reset")
	}

	now = now.Add(3 * time.Minute)
	rl.Take("10.0.0.3")
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.clients) != 1 {
		t.Fatalf("idle clients not swept: %d left", len(rl.clients))
	}
}
