// Tests for the SQLite backend lifecycle and account persistence.
package sqlite

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

func TestBackend_Attach(t *testing.T) {
	tmpDir := t.TempDir()

	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: tmpDir,
	}

	err := b.Attach(config)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// Verify database file created
	dbPath := filepath.Join(tmpDir, types.DefaultDatabaseFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("flipping.db not created")
	}
	if b.DatabasePath() != dbPath {
		t.Errorf("DatabasePath = %q, want %q", b.DatabasePath(), dbPath)
	}

	// Verify double attach fails
	err = b.Attach(config)
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}

	b.Detach()
}

func TestBackend_Detach(t *testing.T) {
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	if err := b.Attach(config); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach failed: %v", err)
	}

	// Operations after detach fail
	if _, err := b.AccountNames(); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
	if err := b.SaveAccount("Zez", types.NewAccount()); !errors.Is(err, types.ErrStoreDetached) {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
}

func TestBackend_AttachValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config types.Config
		want   error
	}{
		{"empty backend", types.Config{DataDir: t.TempDir()}, types.ErrBackendEmpty},
		{"unknown backend", types.Config{Backend: "postgres", DataDir: t.TempDir()}, types.ErrBackendUnknown},
		{"empty data dir", types.Config{Backend: types.BackendSQLite}, types.ErrDataDirEmpty},
		{"database path", types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir(), DatabaseFile: "../x.db"}, types.ErrDatabaseFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, NewBackend().Attach(tt.config), tt.want)
		})
	}
}

func TestBackend_AttachRemovesObsoleteTradesFile(t *testing.T) {
	dir := t.TempDir()
	obsolete := filepath.Join(dir, "trades.json")
	require.NoError(t, os.WriteFile(obsolete, []byte(`[]`), 0o644))

	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })

	assert.NoFileExists(t, obsolete)
	assert.NoFileExists(t, filepath.Join(dir, "trades.pre_sqlite.backup.json"))
}

func TestBackend_SchemaVersion(t *testing.T) {
	b := setupBackend(t)
	v, err := b.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestBackend_SaveAndLoadScenario(t *testing.T) {
	b := setupBackend(t)

	offer := &types.OfferEvent{
		UUID:                   types.NewOfferUUID(),
		IsBuy:                  true,
		ItemID:                 4151,
		CurrentQuantityInTrade: 1,
		TotalQuantityInTrade:   1,
		Price:                  1_500_000,
		Time:                   at(0),
		Slot:                   0,
		State:                  types.OfferStateBought,
	}
	acc := types.NewAccount()
	acc.Trades = []*types.Item{{
		ItemID:                 4151,
		ItemName:               "Abyssal whip",
		ValidFlippingPanelItem: true,
		History:                []*types.OfferEvent{offer},
	}}
	acc.LastOffers[0] = offer
	require.NoError(t, b.SaveAccount("Zez", acc))

	got := b.LoadAccount("Zez")
	require.Len(t, got.Trades, 1)
	item := got.Trades[0]
	assert.Equal(t, "Abyssal whip", item.ItemName)
	require.Len(t, item.History, 1)
	assert.Equal(t, offer.UUID, item.History[0].UUID)
	assert.Equal(t, 1_500_000, item.History[0].Price)
	assert.Equal(t, types.OfferStateBought, item.History[0].State)

	require.Contains(t, got.LastOffers, 0)
	assert.Same(t, item.History[0], got.LastOffers[0])
}

func TestBackend_SaveAccountRoundTrip(t *testing.T) {
	stamp := at(60)
	b := NewBackend(WithClock(func() time.Time { return stamp }))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	helm := &types.Item{
		ItemID:   4724,
		ItemName: "Guthan's helm",
		History: []*types.OfferEvent{
			newOffer("helm-1", 4724, true, 5, 100, at(0)),
			newOffer("helm-2", 4724, true, 5, 110, at(1)),
		},
	}
	set := &types.Item{
		ItemID:   12873,
		ItemName: "Guthan's armour set",
		History:  []*types.OfferEvent{newOffer("set-1", 12873, false, 1, 900, at(2))},
	}
	flip := types.NewRecipeFlip(at(3), 250)
	flip.Inputs.Put(4724, &types.PartialOffer{Offer: helm.History[0], AmountConsumed: 3})
	flip.Inputs.Put(4724, &types.PartialOffer{Offer: helm.History[1], AmountConsumed: 1})
	flip.Outputs.Put(12873, &types.PartialOffer{Offer: set.History[0], AmountConsumed: 1})

	session := at(-10)
	acc := types.NewAccount()
	acc.SessionStartTime = &session
	acc.AccumulatedSessionTime = 42 * time.Minute
	acc.Trades = []*types.Item{helm, set}
	acc.RecipeFlipGroups = []*types.RecipeFlipGroup{{
		RecipeName: "Guthan set",
		Recipe:     json.RawMessage(guthanRecipe),
		Flips:      []*types.RecipeFlip{flip},
	}}
	acc.LastOffers[1] = helm.History[1]
	acc.LastOffers[2] = set.History[0]

	require.NoError(t, b.SaveAccount("Zez", acc))
	require.NotNil(t, acc.LastStoredAt)
	assert.Equal(t, stamp, *acc.LastStoredAt)

	got := b.LoadAccount("Zez")
	assert.Equal(t, acc, got)

	// Shared references resolve to the history offers.
	assert.Same(t, got.Trades[0].History[0], got.RecipeFlipGroups[0].Flips[0].Inputs[4724]["helm-1"].Offer)

	modified, err := b.LastModified("Zez")
	require.NoError(t, err)
	assert.Equal(t, stamp, modified)
}

func TestBackend_SaveAccountReplacesAggregate(t *testing.T) {
	b := setupBackend(t)

	acc := types.NewAccount()
	acc.Trades = []*types.Item{whip(), {ItemID: 11802, ItemName: "Armadyl godsword"}}
	acc.RecipeFlipGroups = []*types.RecipeFlipGroup{{RecipeName: "Guthan set", Recipe: json.RawMessage(`{}`)}}
	acc.LastOffers[0] = acc.Trades[0].History[0]
	require.NoError(t, b.SaveAccount("Zez", acc))

	acc.Trades = acc.Trades[:1]
	acc.Trades[0].History = acc.Trades[0].History[1:]
	acc.RecipeFlipGroups = nil
	acc.LastOffers = map[int]*types.OfferEvent{3: acc.Trades[0].History[0]}
	require.NoError(t, b.SaveAccount("Zez", acc))

	got := b.LoadAccount("Zez")
	require.Len(t, got.Trades, 1)
	require.Len(t, got.Trades[0].History, 1)
	assert.Equal(t, "whip-sell", got.Trades[0].History[0].UUID)
	assert.Empty(t, got.RecipeFlipGroups)
	assert.Len(t, got.LastOffers, 1)
	assert.Equal(t, "whip-sell", got.LastOffers[3].UUID)
}

func TestBackend_SaveAccountIsAtomic(t *testing.T) {
	b := setupBackend(t)

	acc := types.NewAccount()
	acc.Trades = []*types.Item{whip()}
	require.NoError(t, b.SaveAccount("Zez", acc))

	broken := types.NewAccount()
	broken.Trades = []*types.Item{{ItemID: 1, ItemName: "Coins"}}
	broken.LastOffers[9] = newOffer("x", 1, true, 1, 1, at(0))
	err := b.SaveAccount("Zez", broken)
	assert.ErrorIs(t, err, types.ErrInvalidSlot)

	got := b.LoadAccount("Zez")
	require.Len(t, got.Trades, 1)
	assert.Equal(t, 4151, got.Trades[0].ItemID)
}

func TestBackend_LoadMissingAccountIsEmpty(t *testing.T) {
	b := setupBackend(t)

	got := b.LoadAccount("nobody")
	assert.Equal(t, types.NewAccount(), got)

	modified, err := b.LastModified("nobody")
	require.NoError(t, err)
	assert.True(t, modified.IsZero())
}

func TestBackend_LoadAfterDetachIsEmpty(t *testing.T) {
	b := NewBackend()
	assert.Equal(t, types.NewAccount(), b.LoadAccount("Zez"))
	assert.Empty(t, b.LoadAllAccounts())
	assert.Equal(t, types.NewAccountWideData(), b.LoadAccountWideData())
}

func TestBackend_AccountsAndDelete(t *testing.T) {
	b := setupBackend(t)
	require.NoError(t, b.SaveAccount("Zez", types.NewAccount()))
	require.NoError(t, b.SaveAccount("Alt", types.NewAccount()))

	names, err := b.AccountNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Alt", "Zez"}, names)
	assert.Len(t, b.LoadAllAccounts(), 2)

	require.NoError(t, b.DeleteAccount("Alt"))
	names, err = b.AccountNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Zez"}, names)
}

func TestBackend_AccountWideData(t *testing.T) {
	b := setupBackend(t)
	assert.Equal(t, types.NewAccountWideData(), b.LoadAccountWideData())

	data := types.NewAccountWideData()
	data.JWT = "token"
	data.Sections = []json.RawMessage{json.RawMessage(`{"name":"Important"}`)}
	require.NoError(t, b.SaveAccountWideData(data))
	assert.Equal(t, data, b.LoadAccountWideData())
}

func TestBackend_DataSurvivesReattach(t *testing.T) {
	dir := t.TempDir()
	config := types.Config{Backend: types.BackendSQLite, DataDir: dir}

	b := NewBackend()
	require.NoError(t, b.Attach(config))
	acc := types.NewAccount()
	acc.Trades = []*types.Item{whip()}
	require.NoError(t, b.SaveAccount("Zez", acc))
	require.NoError(t, b.Detach())

	b = NewBackend()
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	got := b.LoadAccount("Zez")
	require.Len(t, got.Trades, 1)
	assert.Len(t, got.Trades[0].History, 2)
}
