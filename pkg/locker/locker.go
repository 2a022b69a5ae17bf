package locker

import (
	"sync"
)

// Locker issues one exclusive lock per key. Locks are created on first
// use, so callers on different keys never block each other.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New() *Locker {
	return &Locker{
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *Locker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = new(sync.Mutex)
		l.locks[key] = m
	}
	return m
}

// WithLock method    runs fn while holding the lock named key.
// The lock is released even if fn panics.
func (l *Locker) WithLock(key string, fn func() error) error {
	m := l.get(key)
	m.Lock()
	defer m.Unlock()
	return fn()
}

// TryLock method    claims the lock named key without blocking.
// A claim taken here must be released with Unlock.
func (l *Locker) TryLock(key string) bool {
	return l.get(key).TryLock()
}

func (l *Locker) Unlock(key string) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	if ok {
		m.Unlock()
	}
}

// Delete method    reclaims an idle entry. An entry that is currently
// held is left alone, so a held lock is never freed from under its owner.
// Callers must stop acquiring the key before deleting it.
func (l *Locker) Delete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		return
	}
	if !m.TryLock() {
		return
	}
	delete(l.locks, key)
	m.Unlock()
}

func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
