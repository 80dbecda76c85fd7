package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/wish-ledger/internal/ledger"
	"github.com/xtding233/wish-ledger/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.Store {
		s, err := Open(filepath.Join(t.TempDir(), "wish.bolt"))
		require.NoError(t, err)
		return s
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wish.bolt")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.WithinTx(ctx, 4, func(tx ledger.Tx) error {
		u, err := tx.CreateDefault(ctx, 50)
		if err != nil {
			return err
		}
		u.Balance = 40
		u.Data.Pity = 3
		u.Data.Inventory[2] = 10
		return tx.Save(ctx, u)
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.WithinTx(ctx, 4, func(tx ledger.Tx) error {
		u, err := tx.Load(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 40, u.Balance)
		assert.Equal(t, 3, u.Data.Pity)
		assert.EqualValues(t, 10, u.Data.Inventory[2])
		return nil
	}))
}

func TestPanicReleasesWriter(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "wish.bolt"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, 1, func(tx ledger.Tx) error {
			if _, err := tx.CreateDefault(ctx, 10); err != nil {
				return err
			}
			panic("boom")
		})
	})

	done := make(chan error, 1)
	go func() {
		done <- s.WithinTx(ctx, 1, func(tx ledger.Tx) error {
			_, err := tx.Load(ctx)
			return err
		})
	}()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ledger.ErrUserNotFound), "panicked write must be rolled back, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("write transaction left open after panic")
	}
}
