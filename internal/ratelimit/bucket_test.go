package ratelimit

import (
	"testing"
	"time"
)

func TestNewBucket(t *testing.T) {
	b := NewBucket(10, 2)

	if b.Capacity() != 10 {
		t.Errorf("expected capacity 10, got %f", b.Capacity())
	}
	if b.RefillRate() != 2 {
		t.Errorf("expected refill rate 2, got %f", b.RefillRate())
	}
	if b.Tokens() != 10 {
		t.Errorf("expected a fresh bucket to start full at 10, got %f", b.Tokens())
	}
}

func TestTryConsume(t *testing.T) {
	b := NewBucket(5, 1)

	for i := 0; i < 5; i++ {
		if !b.TryConsume(1) {
			t.Fatalf("expected withdrawal %d to succeed", i)
		}
	}

	if b.TryConsume(1) {
		t.Error("expected withdrawal to fail once the bucket is drained")
	}
}

func TestTryConsumePartial(t *testing.T) {
	b := NewBucket(10, 1)

	if !b.TryConsume(7) {
		t.Fatal("expected a 7-token withdrawal from a 10-token bucket to succeed")
	}
	if b.Tokens() > 3.01 || b.Tokens() < 2.99 {
		t.Errorf("expected ~3 tokens remaining, got %f", b.Tokens())
	}
	if b.TryConsume(4) {
		t.Error("expected a 4-token withdrawal against a ~3-token balance to fail")
	}
}

func TestBucketRefill(t *testing.T) {
	b := NewBucket(10, 100) // fast enough to observe refill within test time
	for !b.TryConsume(10) {
	}

	if b.TryConsume(1) {
		t.Error("expected the bucket to be empty immediately after draining it")
	}

	time.Sleep(50 * time.Millisecond)

	if !b.TryConsume(1) {
		t.Error("expected tokens to have refilled after waiting")
	}
}

func TestBucketRefillCapsAtCapacity(t *testing.T) {
	b := NewBucket(5, 1000)
	time.Sleep(20 * time.Millisecond)

	if b.Tokens() != 5 {
		t.Errorf("expected refill to cap at capacity 5, got %f", b.Tokens())
	}
}

func TestTimeToWait(t *testing.T) {
	b := NewBucket(1, 2) // 2 tokens/sec
	if !b.TryConsume(1) {
		t.Fatal("expected initial withdrawal to succeed")
	}

	wait := b.TimeToWait(1)
	if wait <= 0 || wait > 600*time.Millisecond {
		t.Errorf("expected a wait around 500ms for 1 token at 2/sec, got %v", wait)
	}

	if w := b.TimeToWait(0); w != 0 {
		t.Errorf("expected zero wait for zero tokens, got %v", w)
	}
}

func TestBucketReset(t *testing.T) {
	b := NewBucket(8, 1)
	b.TryConsume(8)

	if b.Tokens() >= 1 {
		t.Fatalf("setup: expected bucket to be drained, got %f tokens", b.Tokens())
	}

	b.Reset()

	if b.Tokens() != 8 {
		t.Errorf("expected reset to refill to capacity 8, got %f", b.Tokens())
	}
}

func TestBucketConcurrentAccess(t *testing.T) {
	b := NewBucket(100, 10)
	done := make(chan bool, 20)

	for i := 0; i < 20; i++ {
		go func() {
			b.TryConsume(1)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}

	// The bucket keeps refilling at 10/s while the goroutines run, so allow a
	// small fraction of a token above 80.
	if got := b.Tokens(); got < 80 || got > 80.5 {
		t.Errorf("expected 80 tokens remaining after 20 concurrent withdrawals, got %f", got)
	}
}
