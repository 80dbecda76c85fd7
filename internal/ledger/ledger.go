// Package ledger owns per-user tickets and gacha state and runs draw
// sessions inside a store transaction so a draw either fully applies or
// leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/logger"
)

// DefaultStartingBalance is the ticket balance of a user created on first reference.
const DefaultStartingBalance = 1000

// MaxDrawsPerSession caps count in one PerformDraw. A session holds the
// user's lock for its whole run.
const MaxDrawsPerSession = 1000

var (
	ErrNotImplemented    = errors.New("not implemented")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// DrawResult is what one PerformDraw returns. Items are already in
// presentation order (rate-up last).
type DrawResult struct {
	SessionID  string
	UserID     int64
	BannerID   int64
	Items      []gacha.Item
	Presented  []gacha.Presented
	Cost       int64
	Balance    int64 // after the draw
	Pity       int
	Guaranteed bool
	Attempts   int
	// Skipped is set when the balance could not pay for the draw and
	// nothing was changed.
	Skipped bool
}

// Ledger is safe for concurrent use.
type Ledger struct {
	store   Store
	catalog catalog.Provider

	curve           *gacha.Curve
	locker          Locker
	rng             gacha.RandomSource
	rec             Recorder
	log             logger.Logger
	startingBalance int64
	price           Price
	strictFunds     bool
	attemptWarn     int
}

type Option func(*Ledger)

func WithCurve(c *gacha.Curve) Option        { return func(l *Ledger) { l.curve = c } }
func WithLocker(lk Locker) Option            { return func(l *Ledger) { l.locker = lk } }
func WithRandom(r gacha.RandomSource) Option { return func(l *Ledger) { l.rng = r } }
func WithRecorder(r Recorder) Option         { return func(l *Ledger) { l.rec = r } }
func WithLogger(lg logger.Logger) Option     { return func(l *Ledger) { l.log = lg.Named("ledger") } }
func WithStartingBalance(b int64) Option     { return func(l *Ledger) { l.startingBalance = b } }
func WithPrice(p Price) Option               { return func(l *Ledger) { l.price = p } }
func WithStrictFunds(strict bool) Option     { return func(l *Ledger) { l.strictFunds = strict } }
func WithAttemptWarn(threshold int) Option   { return func(l *Ledger) { l.attemptWarn = threshold } }

// New returns a ledger over store drawing from the catalog cat.
func New(store Store, cat catalog.Provider, opts ...Option) *Ledger {
	l := &Ledger{
		store:           store,
		catalog:         cat,
		curve:           gacha.DefaultCurve(),
		locker:          NewKeyedLocker(),
		rng:             gacha.DefaultRNG(),
		rec:             nopRecorder{},
		log:             logger.NewNoop(),
		startingBalance: DefaultStartingBalance,
		price:           DefaultPrice(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) Curve() *gacha.Curve       { return l.curve }
func (l *Ledger) Catalog() catalog.Provider { return l.catalog }
func (l *Ledger) Price() Price              { return l.price }

// PerformDraw spends cost(count) tickets of userID on banner bannerID and
// returns the produced items. The user is created on first reference.
//
// count must be within [0, MaxDrawsPerSession]; count == 0 returns an
// empty result without touching storage. When the
// balance cannot pay, the result is empty with Skipped set and nil error,
// unless the ledger was built WithStrictFunds, in which case
// ErrInsufficientFunds is returned.
func (l *Ledger) PerformDraw(ctx context.Context, userID, bannerID int64, count int) (*DrawResult, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id %d", ErrInvalidArgument, userID)
	}
	if count < 0 || count > MaxDrawsPerSession {
		return nil, fmt.Errorf("%w: count %d outside [0, %d]", ErrInvalidArgument, count, MaxDrawsPerSession)
	}

	snap := l.catalog.Snapshot()
	banner, err := snap.Banner(bannerID)
	if err != nil {
		return nil, err
	}
	if banner.Kind == gacha.KindWeapon {
		return nil, fmt.Errorf("%w: weapon banner %d", ErrNotImplemented, bannerID)
	}

	res := &DrawResult{SessionID: uuid.NewString(), UserID: userID, BannerID: bannerID}
	if count == 0 {
		return res, nil
	}

	pool, _, err := snap.Pool(bannerID)
	if err != nil {
		return nil, fmt.Errorf("compose pool: %w", err)
	}

	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer unlock()

	var (
		items []gacha.Item
		sum   gacha.Summary
		cost  = l.price.Cost(count)
		start = time.Now()
	)
	err = l.store.WithinTx(ctx, userID, func(tx Tx) error {
		u, err := l.loadOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		if u.Balance < cost {
			res.Skipped = true
			res.fill(u)
			if l.strictFunds {
				return fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientFunds, u.Balance, cost)
			}
			return nil
		}

		sess := gacha.NewSession(l.curve, pool, u.Data, l.rng)
		items, err = sess.Run(count)
		if err != nil {
			return fmt.Errorf("draw session: %w", err)
		}
		sum = sess.Summary()

		u.Balance -= cost
		u.Data = sess.Data()
		if err := tx.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		res.fill(u)
		return nil
	})
	l.rec.ObserveTx("draw", err, time.Since(start))

	if res.Skipped {
		l.rec.InsufficientFunds(bannerID)
		l.log.InfoContext(ctx, "draw skipped, insufficient funds",
			"session_id", res.SessionID, "user_id", userID, "banner_id", bannerID,
			"count", count, "cost", cost, "balance", res.Balance)
	}
	if err != nil {
		if !errors.Is(err, ErrInsufficientFunds) {
			l.log.ErrorContext(ctx, "draw rolled back",
				"session_id", res.SessionID, "user_id", userID, "banner_id", bannerID, "error", err)
		}
		return nil, err
	}
	if res.Skipped {
		return res, nil
	}

	res.Cost = cost
	res.Attempts = sum.Attempts
	res.Items = gacha.StablePartition(items, banner.RateUp)
	res.Presented = gacha.Present(items, banner.RateUp)
	l.rec.ObserveDraw(bannerID, sum)

	l.log.InfoContext(ctx, "draw committed",
		"session_id", res.SessionID, "user_id", userID, "banner_id", bannerID,
		"count", count, "rare_hits", sum.RareHits, "rate_up_hits", sum.RateUpHits,
		"balance", res.Balance, "pity", res.Pity, "guaranteed", res.Guaranteed)
	if l.attemptWarn > 0 && sum.Attempts > l.attemptWarn {
		l.log.WarnContext(ctx, "draw session needed many attempts",
			"session_id", res.SessionID, "banner_id", bannerID, "count", count, "attempts", sum.Attempts)
	}
	return res, nil
}

func (r *DrawResult) fill(u *User) {
	r.Balance = u.Balance
	r.Pity = u.Data.Pity
	r.Guaranteed = u.Data.Guaranteed
}

// Account returns the user's row, creating it on first reference.
func (l *Ledger) Account(ctx context.Context, userID int64) (*User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id %d", ErrInvalidArgument, userID)
	}
	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer unlock()

	var out *User
	start := time.Now()
	err = l.store.WithinTx(ctx, userID, func(tx Tx) error {
		u, err := l.loadOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	l.rec.ObserveTx("account", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Grant credits amount tickets to the user, creating it on first reference.
func (l *Ledger) Grant(ctx context.Context, userID, amount int64) (*User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id %d", ErrInvalidArgument, userID)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: grant amount %d", ErrInvalidArgument, amount)
	}
	unlock, err := l.locker.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", userID, err)
	}
	defer unlock()

	var out *User
	start := time.Now()
	err = l.store.WithinTx(ctx, userID, func(tx Tx) error {
		u, err := l.loadOrCreate(ctx, tx)
		if err != nil {
			return err
		}
		u.Balance += amount
		if err := tx.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		out = u
		return nil
	})
	l.rec.ObserveTx("grant", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	l.log.InfoContext(ctx, "tickets granted", "user_id", userID, "amount", amount, "balance", out.Balance)
	return out, nil
}

func (l *Ledger) loadOrCreate(ctx context.Context, tx Tx) (*User, error) {
	u, err := tx.Load(ctx)
	if errors.Is(err, ErrUserNotFound) {
		u, err = tx.CreateDefault(ctx, l.startingBalance)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
