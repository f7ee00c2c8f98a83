package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotAcquired is returned by Acquire when the context ends before the key frees up.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives the key back. Calling it more than once is a no-op.
type Release func()

// Locker provides mutual exclusion per key.
type Locker interface {
	// Acquire blocks until the key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
	// TryAcquire returns ok=false immediately when the key is taken.
	TryAcquire(ctx context.Context, key string) (release Release, ok bool, err error)
}

func MatchKey(matchID int) string       { return fmt.Sprintf("match:%d", matchID) }
func ResyncKey(tournamentID int) string { return fmt.Sprintf("resync:%d", tournamentID) }

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker serializes holders inside one process.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

func (l *LocalLocker) entry(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) drop(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *LocalLocker) release(key string, e *localEntry) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.drop(key, e)
		})
	}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	e := l.entry(key)
	select {
	case e.ch <- struct{}{}:
		return l.release(key, e), nil
	case <-ctx.Done():
		l.drop(key, e)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
}

func (l *LocalLocker) TryAcquire(ctx context.Context, key string) (Release, bool, error) {
	e := l.entry(key)
	select {
	case e.ch <- struct{}{}:
		return l.release(key, e), true, nil
	default:
		l.drop(key, e)
		return nil, false, nil
	}
}

// NoopLocker never blocks. Used when a caller has no locking requirements.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (Release, error) { return func() {}, nil }

func (NoopLocker) TryAcquire(context.Context, string) (Release, bool, error) {
	return func() {}, true, nil
}
