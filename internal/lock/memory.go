package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is an in-process Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates a new MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]memoryEntry),
		now:    time.Now,
	}
}

// TryAcquire takes the lease unless an unexpired one exists.
func (l *MemoryLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expiresAt) {
		return nil, ErrNotAcquired
	}
	l.leases[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token}, nil
}

// Held reports whether key is currently leased.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.leases[key]
	return ok && l.now().Before(cur.expiresAt)
}

func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[key]; ok && cur.token == token {
		delete(l.leases, key)
	}
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
	once   sync.Once
}

func (m *memoryLease) Key() string { return m.key }

func (m *memoryLease) Release(_ context.Context) error {
	m.once.Do(func() { m.locker.release(m.key, m.token) })
	return nil
}
