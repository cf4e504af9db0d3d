package turn

import "sync"

// userLocks serializes turns per user. Entries are reference counted and
// removed when the last holder releases, so the table stays bounded by the
// number of users with a turn in flight.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

// acquire blocks until the caller holds the user's lock.
func (l *userLocks) acquire(userID string) {
	l.mu.Lock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &userLock{}
		l.locks[userID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
}

// release unlocks the user's lock and drops the table entry when no other
// turn is waiting on it.
func (l *userLocks) release(userID string) {
	l.mu.Lock()
	lk, ok := l.locks[userID]
	if ok {
		lk.refs--
		if lk.refs <= 0 {
			delete(l.locks, userID)
		}
	}
	l.mu.Unlock()

	if ok {
		lk.mu.Unlock()
	}
}

// inFlight reports how many users currently hold or await a turn lock.
func (l *userLocks) inFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
