// Package sqlite is a ledger.Store on an embedded SQLite file.
//
// Transactions start with BEGIN IMMEDIATE over a single connection, so
// writers queue on the connection pool instead of failing with SQLITE_BUSY
// when two read transactions try to upgrade at once.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/store/codec"
	"github.com/xtding233/wish-ledger/internal/store/sqlite/migrations"
)

var userColumns = []string{"id", "balance", "pity", "guaranteed", "inventory", "created_at", "updated_at"}

// Store persists users in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func toMillis(t time.Time) int64   { return t.UTC().UnixMilli() }
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) WithinTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(&tx{tx: sqlTx, id: userID, now: s.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

type tx struct {
	tx  *sql.Tx
	id  int64
	now func() time.Time
}

func (t *tx) Load(ctx context.Context) (*ledger.User, error) {
	query, args, err := sq.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": t.id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var (
		u          ledger.User
		guaranteed int
		inventory  string
		created    int64
		updated    int64
	)
	err = t.tx.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Balance, &u.Data.Pity, &guaranteed, &inventory, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", t.id, err)
	}
	u.Data.Guaranteed = guaranteed != 0
	if u.Data.Inventory, err = codec.DecodeInventory([]byte(inventory)); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (t *tx) CreateDefault(ctx context.Context, balance int64) (*ledger.User, error) {
	now := toMillis(t.now())
	query, args, err := sq.Insert("users").
		Columns(userColumns...).
		Values(t.id, balance, 0, 0, "{}", now, now).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create user %d: %w", t.id, err)
	}
	return t.Load(ctx)
}

func (t *tx) Save(ctx context.Context, u *ledger.User) error {
	inv, err := codec.EncodeInventory(u.Data.Inventory)
	if err != nil {
		return err
	}
	now := t.now()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	query, args, err := sq.Insert("users").
		Columns(userColumns...).
		Values(t.id, u.Balance, u.Data.Pity, boolToInt(u.Data.Guaranteed), string(inv), toMillis(created), toMillis(now)).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
    balance = excluded.balance,
    pity = excluded.pity,
    guaranteed = excluded.guaranteed,
    inventory = excluded.inventory,
    updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save user %d: %w", t.id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
