// Package storetest is the behaviour every ledger.Store backend must show.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/wish-ledger/internal/gacha"
	"github.com/xtding233/wish-ledger/internal/ledger"
)

// Factory returns an empty store. Run closes it.
type Factory func(t *testing.T) ledger.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("LoadMissing", func(t *testing.T) { testLoadMissing(t, newStore) })
	t.Run("CreateAndLoad", func(t *testing.T) { testCreateAndLoad(t, newStore) })
	t.Run("SaveRoundTrip", func(t *testing.T) { testSaveRoundTrip(t, newStore) })
	t.Run("CreateDefaultKeepsExisting", func(t *testing.T) { testCreateKeepsExisting(t, newStore) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newStore) })
	t.Run("UsersIsolated", func(t *testing.T) { testIsolation(t, newStore) })
	t.Run("ConcurrentSameUser", func(t *testing.T) { testConcurrent(t, newStore) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceled(t, newStore) })
}

func open(t *testing.T, newStore Factory) ledger.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func load(t *testing.T, s ledger.Store, id int64) (*ledger.User, error) {
	t.Helper()
	var out *ledger.User
	err := s.WithinTx(context.Background(), id, func(tx ledger.Tx) error {
		u, err := tx.Load(context.Background())
		out = u
		return err
	})
	return out, err
}

func create(t *testing.T, s ledger.Store, id, balance int64) *ledger.User {
	t.Helper()
	var out *ledger.User
	require.NoError(t, s.WithinTx(context.Background(), id, func(tx ledger.Tx) error {
		u, err := tx.CreateDefault(context.Background(), balance)
		out = u
		return err
	}))
	return out
}

func testLoadMissing(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	_, err := load(t, s, 42)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func testCreateAndLoad(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	created := create(t, s, 7, 1000)
	assert.EqualValues(t, 7, created.ID)
	assert.EqualValues(t, 1000, created.Balance)
	assert.Zero(t, created.Data.Pity)
	assert.False(t, created.Data.Guaranteed)

	u, err := load(t, s, 7)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, u.Balance)
	assert.Empty(t, u.Data.Inventory)
	assert.False(t, u.CreatedAt.IsZero())
}

func testSaveRoundTrip(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	create(t, s, 3, 1000)
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, 3, func(tx ledger.Tx) error {
		u, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		u.Balance = 990
		u.Data = gacha.UserData{
			Pity:       12,
			Guaranteed: true,
			Inventory:  map[gacha.ItemID]int64{1: 7, 10: 1, 20: 2},
		}
		if err := tx.Save(ctx, u); err != nil {
			return err
		}
		// reads inside the transaction see its own writes
		again, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		assert.EqualValues(t, 990, again.Balance)
		return nil
	}))

	u, err := load(t, s, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 990, u.Balance)
	assert.Equal(t, 12, u.Data.Pity)
	assert.True(t, u.Data.Guaranteed)
	assert.Equal(t, map[gacha.ItemID]int64{1: 7, 10: 1, 20: 2}, u.Data.Inventory)
}

func testCreateKeepsExisting(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	create(t, s, 5, 1000)
	again := create(t, s, 5, 1)
	assert.EqualValues(t, 1000, again.Balance)
}

func testRollback(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, 9, func(tx ledger.Tx) error {
		if _, err := tx.CreateDefault(ctx, 1000); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = load(t, s, 9)
	assert.ErrorIs(t, err, ledger.ErrUserNotFound)

	create(t, s, 9, 1000)
	err = s.WithinTx(ctx, 9, func(tx ledger.Tx) error {
		u, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		u.Balance = 0
		u.Data.Inventory[1] = 99
		if err := tx.Save(ctx, u); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	u, err := load(t, s, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, u.Balance)
	assert.Empty(t, u.Data.Inventory)
}

func testIsolation(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	create(t, s, 1, 100)
	create(t, s, 2, 200)
	a, err := load(t, s, 1)
	require.NoError(t, err)
	b, err := load(t, s, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 100, a.Balance)
	assert.EqualValues(t, 200, b.Balance)
}

func testConcurrent(t *testing.T, newStore Factory) {
	const workers = 16
	s := open(t, newStore)
	create(t, s, 11, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithinTx(ctx, 11, func(tx ledger.Tx) error {
				u, err := tx.Load(ctx)
				if err != nil {
					return err
				}
				u.Balance++
				return tx.Save(ctx, u)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	u, err := load(t, s, 11)
	require.NoError(t, err)
	assert.EqualValues(t, workers, u.Balance)
}

func testCanceled(t *testing.T, newStore Factory) {
	s := open(t, newStore)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, 1, func(ledger.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}
