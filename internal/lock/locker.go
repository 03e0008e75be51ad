// internal/lock/locker.go
package lock

import (
	"context"
	"sort"
	"sync"
)

// AccountLocker serialises ledger mutations per account. Lock acquires every id
// in ascending order and blocks until all are held or ctx ends. The returned
// func releases them.
type AccountLocker interface {
	Lock(ctx context.Context, ids []int64) (unlock func(), err error)
}

// sortedUnique returns ids ascending without duplicates.
func sortedUnique(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedLocker is an in-process AccountLocker: one mutex per account, created on
// demand and dropped when nobody holds or waits for it.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[int64]*keyedEntry
}

// NewKeyedLocker creates an empty KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[int64]*keyedEntry)}
}

// Lock implements AccountLocker.
func (l *KeyedLocker) Lock(ctx context.Context, ids []int64) (func(), error) {
	ids = sortedUnique(ids)
	held := make([]int64, 0, len(ids))
	for _, id := range ids {
		if err := l.acquire(ctx, id); err != nil {
			l.releaseAll(held)
			return nil, err
		}
		held = append(held, id)
	}
	var once sync.Once
	return func() { once.Do(func() { l.releaseAll(held) }) }, nil
}

func (l *KeyedLocker) acquire(ctx context.Context, id int64) error {
	l.mu.Lock()
	e, ok := l.entries[id]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.unref(id, e)
		return ctx.Err()
	}
}

func (l *KeyedLocker) releaseAll(ids []int64) {
	for i := len(ids) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[ids[i]]
		l.mu.Unlock()
		<-e.sem
		l.unref(ids[i], e)
	}
}

func (l *KeyedLocker) unref(id int64, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

// size reports how many accounts currently have an entry.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
