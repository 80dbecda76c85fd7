// Package bolt is a ledger.Store on a single bbolt file through storm.
// bbolt allows one writer at a time, so every WithinTx is serialized.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asdine/storm/v3"
	bbolt "go.etcd.io/bbolt"

	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
)

const openTimeout = 5 * time.Second

// userRecord is the stored shape of a ledger.User.
type userRecord struct {
	ID         int64 `storm:"id"`
	Balance    int64
	Pity       int
	Guaranteed bool
	Inventory  map[gacha.ItemID]int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *userRecord) toUser() *ledger.User {
	inv := make(map[gacha.ItemID]int64, len(r.Inventory))
	for k, v := range r.Inventory {
		inv[k] = v
	}
	return &ledger.User{
		ID:        r.ID,
		Balance:   r.Balance,
		Data:      gacha.UserData{Pity: r.Pity, Guaranteed: r.Guaranteed, Inventory: inv},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type Store struct {
	db  *storm.DB
	now func() time.Time
}

var _ ledger.Store = (*Store)(nil)

// Open opens or creates the bolt file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := storm.Open(path, storm.BoltOptions(0o600, &bbolt.Options{Timeout: openTimeout}))
	if err != nil {
		return nil, fmt.Errorf("storm.Open(): %w", err)
	}
	if err := db.Init(&userRecord{}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init users bucket: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) WithinTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	node, err := s.db.Begin(true)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = node.Rollback()
		}
	}()

	if err := fn(&tx{node: node, id: userID, now: s.now}); err != nil {
		return err
	}
	if err := node.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

type tx struct {
	node storm.Node
	id   int64
	now  func() time.Time
}

func (t *tx) Load(ctx context.Context) (*ledger.User, error) {
	var rec userRecord
	err := t.node.One("ID", t.id, &rec)
	if errors.Is(err, storm.ErrNotFound) {
		return nil, ledger.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", t.id, err)
	}
	return rec.toUser(), nil
}

func (t *tx) CreateDefault(ctx context.Context, balance int64) (*ledger.User, error) {
	u, err := t.Load(ctx)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ledger.ErrUserNotFound) {
		return nil, err
	}
	now := t.now().UTC()
	rec := &userRecord{
		ID:        t.id,
		Balance:   balance,
		Inventory: map[gacha.ItemID]int64{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.node.Save(rec); err != nil {
		return nil, fmt.Errorf("create user %d: %w", t.id, err)
	}
	return rec.toUser(), nil
}

func (t *tx) Save(ctx context.Context, u *ledger.User) error {
	now := t.now().UTC()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	rec := &userRecord{
		ID:         t.id,
		Balance:    u.Balance,
		Pity:       u.Data.Pity,
		Guaranteed: u.Data.Guaranteed,
		Inventory:  u.Data.Inventory,
		CreatedAt:  created,
		UpdatedAt:  now,
	}
	if err := t.node.Save(rec); err != nil {
		return fmt.Errorf("save user %d: %w", t.id, err)
	}
	return nil
}
