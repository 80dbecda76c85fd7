// Package postgres is a ledger.Store on PostgreSQL. Each transaction locks
// the user's row with SELECT ... FOR UPDATE, so different users never wait
// on each other.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/store/codec"
	"github.com/xtding233/wish-ledger/internal/store/postgres/migrations"
)

var (
	psql        = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	userColumns = []string{"id", "balance", "pity", "guaranteed", "inventory", "created_at", "updated_at"}
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ ledger.Store = (*Store)(nil)

type options struct {
	maxConns int32
	schema   string
}

type Option func(*options)

// WithMaxConns caps the pool size. 0 keeps the pgx default.
func WithMaxConns(n int32) Option { return func(o *options) { o.maxConns = n } }

// WithSchema creates schema if needed and puts it first on the search_path.
func WithSchema(name string) Option { return func(o *options) { o.schema = name } }

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	if o.schema != "" {
		if err := createSchema(ctx, dsn, o.schema); err != nil {
			return nil, err
		}
		cfg.ConnConfig.RuntimeParams["search_path"] = o.schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applyMigrations(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)
	ident := pgx.Identifier{schema}.Sanitize()
	if _, err := conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+ident); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	return nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	for _, name := range files {
		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING", name)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			_, err = tx.Exec(ctx, string(content))
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) WithinTx(ctx context.Context, userID int64, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = pgTx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&tx{tx: pgTx, id: userID, now: s.now}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tx struct {
	tx  pgx.Tx
	id  int64
	now func() time.Time
}

func (t *tx) Load(ctx context.Context) (*ledger.User, error) {
	query, args, err := psql.Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": t.id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var (
		u   ledger.User
		inv []byte
	)
	err = t.tx.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Balance, &u.Data.Pity, &u.Data.Guaranteed, &inv, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", t.id, err)
	}
	if u.Data.Inventory, err = codec.DecodeInventory(inv); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) CreateDefault(ctx context.Context, balance int64) (*ledger.User, error) {
	now := t.now().UTC()
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(t.id, balance, 0, false, []byte("{}"), now, now).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("create user %d: %w", t.id, err)
	}
	return t.Load(ctx)
}

func (t *tx) Save(ctx context.Context, u *ledger.User) error {
	inv, err := codec.EncodeInventory(u.Data.Inventory)
	if err != nil {
		return err
	}
	now := t.now().UTC()
	created := u.CreatedAt
	if created.IsZero() {
		created = now
	}
	query, args, err := psql.Insert("users").
		Columns(userColumns...).
		Values(t.id, u.Balance, u.Data.Pity, u.Data.Guaranteed, inv, created, now).
		Suffix("ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, pity = EXCLUDED.pity, " +
			"guaranteed = EXCLUDED.guaranteed, inventory = EXCLUDED.inventory, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save user %d: %w", t.id, err)
	}
	return nil
}
