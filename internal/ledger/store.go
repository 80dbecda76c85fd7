package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

var ErrUserNotFound = errors.New("user not found")

// User is one persisted ledger row.
type User struct {
	ID        int64
	Balance   int64 // draw tickets, never negative
	Data      gacha.UserData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone deep-copies the user including its inventory.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Data = u.Data.Clone()
	return &c
}

// Tx is a transaction scoped to one user row.
type Tx interface {
	// Load returns ErrUserNotFound when the row does not exist.
	Load(ctx context.Context) (*User, error)
	// CreateDefault inserts the row with balance and empty gacha state.
	// If a concurrent writer created it first, the existing row is returned.
	CreateDefault(ctx context.Context, balance int64) (*User, error)
	// Save writes u. It becomes visible only when the transaction commits.
	Save(ctx context.Context, u *User) error
}

// Store runs fn in a transaction on userID's row. The transaction commits
// when fn returns nil and rolls back otherwise; a commit failure is returned.
type Store interface {
	WithinTx(ctx context.Context, userID int64, fn func(Tx) error) error
	Close() error
}
