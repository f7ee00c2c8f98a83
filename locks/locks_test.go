package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newRedisLocker(t *testing.T, opts ...RedisOption) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLocker(rdb, zap.NewNop(), opts...), mr
}

func lockers(t *testing.T) map[string]Locker {
	rl, _ := newRedisLocker(t, WithRetryDelay(5*time.Millisecond))
	return map[string]Locker{"local": NewLocalLocker(), "redis": rl}
}

func TestTryAcquireExcludes(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release, ok, err := l.TryAcquire(ctx, MatchKey(1))
			if err != nil || !ok {
				t.Fatalf("first TryAcquire = %v, %v", ok, err)
			}
			if _, ok, _ := l.TryAcquire(ctx, MatchKey(1)); ok {
				t.Fatal("second holder admitted")
			}
			if _, ok, _ := l.TryAcquire(ctx, MatchKey(2)); !ok {
				t.Fatal("other key blocked")
			}
			release()
			release()
			again, ok, _ := l.TryAcquire(ctx, MatchKey(1))
			if !ok {
				t.Fatal("key not freed by release")
			}
			again()
		})
	}
}

func TestAcquireWaitsForRelease(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release, err := l.Acquire(ctx, ResyncKey(3))
			if err != nil {
				t.Fatal(err)
			}
			got := make(chan error, 1)
			go func() {
				r, err := l.Acquire(ctx, ResyncKey(3))
				if err == nil {
					r()
				}
				got <- err
			}()
			select {
			case <-got:
				t.Fatal("acquired while held")
			case <-time.After(30 * time.Millisecond):
			}
			release()
			select {
			case err := <-got:
				if err != nil {
					t.Fatal(err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("waiter never acquired")
			}
		})
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, _ := l.Acquire(context.Background(), MatchKey(9))
			defer release()
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			if _, err := l.Acquire(ctx, MatchKey(9)); !errors.Is(err, ErrNotAcquired) {
				t.Fatalf("err = %v, want ErrNotAcquired", err)
			}
		})
	}
}

func TestLocalLockerSerializes(t *testing.T) {
	l := NewLocalLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "k")
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("%d holders at once", maxSeen)
	}
	if len(l.entries) != 0 {
		t.Fatalf("%d entries leaked", len(l.entries))
	}
}

func TestRedisLeaseExpires(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second))
	ctx := context.Background()
	if _, ok, _ := l.TryAcquire(ctx, "crashed"); !ok {
		t.Fatal("not acquired")
	}
	mr.FastForward(2 * time.Second)
	release, ok, err := l.TryAcquire(ctx, "crashed")
	if err != nil || !ok {
		t.Fatalf("lease did not expire: %v %v", ok, err)
	}
	release()
}

func TestRedisReleaseKeepsForeignLease(t *testing.T) {
	l, mr := newRedisLocker(t, WithTTL(time.Second))
	ctx := context.Background()
	stale, _, _ := l.TryAcquire(ctx, "k")
	mr.FastForward(2 * time.Second)
	fresh, ok, _ := l.TryAcquire(ctx, "k")
	if !ok {
		t.Fatal("fresh holder rejected")
	}
	stale()
	if !mr.Exists(keyPrefix + "k") {
		t.Fatal("stale release removed the new holder's lease")
	}
	fresh()
	if mr.Exists(keyPrefix + "k") {
		t.Fatal("lease not released")
	}
}
