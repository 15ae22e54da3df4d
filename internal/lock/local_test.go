package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalSerializesSameKey(t *testing.T) {
	locker := NewLocal(Options{Wait: time.Second})
	ctx := context.Background()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "post-1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				current := atomic.LoadInt32(&maxInside)
				if n <= current || atomic.CompareAndSwapInt32(&maxInside, current, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxInside)
	}
	if locker.size() != 0 {
		t.Fatalf("expected lock table to drain, %d keys left", locker.size())
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	locker := NewLocal(Options{Wait: 50 * time.Millisecond})
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "post-a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	releaseB, err := locker.Acquire(ctx, "post-b")
	if err != nil {
		t.Fatalf("acquire b while a is held: %v", err)
	}
	releaseB()
}

func TestLocalWaitTimeout(t *testing.T) {
	locker := NewLocal(Options{Wait: 20 * time.Millisecond})
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "post-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = locker.Acquire(ctx, "post-1")
	if !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestLocalCancelledContext(t *testing.T) {
	locker := NewLocal(Options{Wait: time.Second})

	release, err := locker.Acquire(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "post-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocalReleaseIsIdempotent(t *testing.T) {
	locker := NewLocal(Options{Wait: 20 * time.Millisecond})
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "post-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()

	again, err := locker.Acquire(ctx, "post-1")
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	again()
}
