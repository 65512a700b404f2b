package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// openTestDB opens a migrated database in a temp directory.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := NewDB(filepath.Join(t.TempDir(), types.DefaultDatabaseFile))
	conn, err := db.Conn()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, NewMigrator(conn, nil).Migrate())
	return conn
}

// setupBackend creates an attached Backend over a temp data directory.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

func newOffer(uuid string, itemID int, isBuy bool, qty, price int, when time.Time) *types.OfferEvent {
	state := types.OfferStateSold
	if isBuy {
		state = types.OfferStateBought
	}
	return &types.OfferEvent{
		UUID:                   uuid,
		IsBuy:                  isBuy,
		ItemID:                 itemID,
		CurrentQuantityInTrade: qty,
		TotalQuantityInTrade:   qty,
		Price:                  price,
		Time:                   when,
		State:                  state,
	}
}

// insertAccount creates a bare account row and returns the account store.
func insertAccount(t *testing.T, q Querier, name string) *AccountStore {
	t.Helper()
	accounts := NewAccountStore(q, nil)
	require.NoError(t, accounts.Insert(name, types.NewAccount()))
	return accounts
}
