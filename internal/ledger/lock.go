package ledger

import (
	"context"
	"sync"
)

// Locker serializes work on one user. Lock blocks until the user's lock is
// held or ctx is done; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

// KeyedLocker is an in-process Locker with one slot per user. Entries are
// dropped once nobody holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{} // buffered(1): a token in the channel means held
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[int64]*slot)}
}

func (l *KeyedLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[userID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[userID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(userID, s)
		})
	}, nil
}

func (l *KeyedLocker) release(userID int64, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, userID)
	}
	l.mu.Unlock()
}

// size reports how many users currently have a slot.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
