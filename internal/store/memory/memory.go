// Package memory is an in-process ledger.Store. Writes are staged per
// transaction and published on commit.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
)

var ErrClosed = errors.New("memory store closed")

type Store struct {
	mu     sync.Mutex
	users  map[int64]*ledger.User
	rows   map[int64]*sync.Mutex
	closed bool
	now    func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users: make(map[int64]*ledger.User),
		rows:  make(map[int64]*sync.Mutex),
		now:   time.Now,
	}
}

func (s *Store) rowLock(id int64) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	m, ok := s.rows[id]
	if !ok {
		m = &sync.Mutex{}
		s.rows[id] = m
	}
	return m, nil
}

// WithinTx holds the row lock of userID for the whole of fn.
func (s *Store) WithinTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row, err := s.rowLock(userID)
	if err != nil {
		return err
	}
	row.Lock()
	defer row.Unlock()

	t := &tx{s: s, id: userID}
	if err := fn(t); err != nil {
		return err
	}
	if t.staged == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.users[userID] = t.staged
	return nil
}

func (s *Store) get(id int64) *ledger.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Clone()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len reports the number of committed users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type tx struct {
	s      *Store
	id     int64
	staged *ledger.User
}

func (t *tx) Load(ctx context.Context) (*ledger.User, error) {
	if t.staged != nil {
		return t.staged.Clone(), nil
	}
	u := t.s.get(t.id)
	if u == nil {
		return nil, ledger.ErrUserNotFound
	}
	return u, nil
}

func (t *tx) CreateDefault(ctx context.Context, balance int64) (*ledger.User, error) {
	if u, err := t.Load(ctx); err == nil {
		return u, nil
	}
	now := t.s.now()
	t.staged = &ledger.User{
		ID:        t.id,
		Balance:   balance,
		Data:      gacha.UserData{Inventory: map[gacha.ItemID]int64{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return t.staged.Clone(), nil
}

func (t *tx) Save(ctx context.Context, u *ledger.User) error {
	c := u.Clone()
	c.ID = t.id
	c.UpdatedAt = t.s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	t.staged = c
	return nil
}
