package settlement

import "sync"

// userLocks hands out one mutex per user id so the snapshot-cart → create-
// order → clear-cart sequence never interleaves for the same user. Entries
// are never evicted; the key space is bounded by the user population.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *userLocks) forUser(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
