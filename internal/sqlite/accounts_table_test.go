package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

func TestAccountInsertOrUpdateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	accounts := NewAccountStore(db, nil)

	first := types.NewAccount()
	first.AccumulatedSessionTime = 5 * time.Minute
	require.NoError(t, accounts.InsertOrUpdate("Zez", first))

	start := at(0)
	second := types.NewAccount()
	second.SessionStartTime = &start
	second.AccumulatedSessionTime = 90 * time.Minute
	require.NoError(t, accounts.InsertOrUpdate("Zez", second))

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM account").Scan(&rows))
	assert.Equal(t, 1, rows)

	got, err := accounts.FindByName("Zez")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestAccountUpdateKeepsChildren(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	_, err := NewItemStore(db).InsertWithOffers("Zez", whip())
	require.NoError(t, err)

	require.NoError(t, accounts.InsertOrUpdate("Zez", types.NewAccount()))

	got, err := accounts.FindByName("Zez")
	require.NoError(t, err)
	assert.Len(t, got.Trades, 1)
}

func TestAccountExistsAndNames(t *testing.T) {
	db := openTestDB(t)
	accounts := NewAccountStore(db, nil)

	ok, err := accounts.Exists("Zez")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, name := range []string{"Zez", "Alt", "Main"} {
		require.NoError(t, accounts.Insert(name, types.NewAccount()))
	}
	ok, err = accounts.Exists("Zez")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := accounts.FindAllNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alt", "Main", "Zez"}, names)
}

func TestAccountInsertRejectsEmptyName(t *testing.T) {
	db := openTestDB(t)
	assert.ErrorIs(t, NewAccountStore(db, nil).Insert("", types.NewAccount()), types.ErrInvalidName)
}

func TestAccountFindByNameMissing(t *testing.T) {
	db := openTestDB(t)
	_, err := NewAccountStore(db, nil).FindByName("nobody")
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, NewAccountStore(db, nil).Update("nobody", types.NewAccount()), types.ErrNotFound)
}

func TestAccountLastOffers(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	item := whip()
	_, err := NewItemStore(db).InsertWithOffers("Zez", item)
	require.NoError(t, err)

	require.NoError(t, accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{
		0: item.History[0],
		7: item.History[1],
	}))
	require.NoError(t, accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{
		0: item.History[1],
	}))

	got, err := accounts.LoadLastOffers("Zez")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "whip-sell", got[0].UUID)
	assert.Equal(t, "whip-sell", got[7].UUID)

	require.NoError(t, accounts.ReplaceLastOffers("Zez", map[int]*types.OfferEvent{
		2: item.History[0],
	}))
	got, err = accounts.LoadLastOffers("Zez")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "whip-buy", got[2].UUID)
}

func TestAccountLastOffersRejectBadSlot(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	o := newOffer("x", 1, true, 1, 1, at(0))

	for _, slot := range []int{-1, types.NumSlots} {
		err := accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{slot: o})
		assert.ErrorIs(t, err, types.ErrInvalidSlot, "slot %d", slot)
	}
}

func TestAccountLastOffersDropDangling(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	item := whip()
	_, err := NewItemStore(db).InsertWithOffers("Zez", item)
	require.NoError(t, err)

	require.NoError(t, accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{
		0: item.History[0],
		1: newOffer("gone", 4151, true, 1, 1, at(0)),
	}))

	got, err := accounts.LoadLastOffers("Zez")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "whip-buy", got[0].UUID)
}

func TestAccountFindByNameSharesOffers(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	item := whip()
	_, err := NewItemStore(db).InsertWithOffers("Zez", item)
	require.NoError(t, err)
	require.NoError(t, accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{0: item.History[0]}))

	got, err := accounts.FindByName("Zez")
	require.NoError(t, err)
	assert.Same(t, got.Trades[0].History[0], got.LastOffers[0])
}

func TestAccountDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	accounts := insertAccount(t, db, "Zez")
	item := whip()
	_, err := NewItemStore(db).InsertWithOffers("Zez", item)
	require.NoError(t, err)
	require.NoError(t, accounts.SaveLastOffers("Zez", map[int]*types.OfferEvent{0: item.History[0]}))

	require.NoError(t, accounts.Delete("Zez"))

	for _, table := range []string{"flipping_item", "offer_event", "last_offer"} {
		var n int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestAccountFindAll(t *testing.T) {
	db := openTestDB(t)
	insertAccount(t, db, "Zez")
	accounts := insertAccount(t, db, "Alt")

	all, err := accounts.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "Zez")
	assert.Contains(t, all, "Alt")
}
