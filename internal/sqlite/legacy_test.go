package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

const zezDocument = `{
  "sessionStartTime": "2024-03-01T11:00:00Z",
  "accumulatedSessionTimeMillis": 3600000,
  "lastStoredAt": 1709294400000,
  "trades": [
    {
      "id": 4151,
      "name": "Abyssal whip",
      "tGELimit": 70,
      "fB": "Zez",
      "h": {
        "cO": [
          {"uuid": "whip-buy", "b": true, "id": 4151, "cQIT": 1, "tQIT": 1, "p": 1500000,
           "t": {"seconds": 1709294400, "nanos": 0}, "s": 0, "st": "BOUGHT"},
          {"uuid": "whip-sell", "b": false, "cQIT": 1, "tQIT": 1, "p": 1600000,
           "t": "2024-03-01T12:10:00Z", "s": 1, "st": "SOLD"}
        ],
        "iBTLW": 1
      }
    }
  ],
  "recipeFlipGroups": [
    {
      "recipe": {"name": "Whip flip", "inputs": [4151]},
      "recipeFlips": [
        {
          "timeOfCreation": "2024-03-01T12:20:00Z",
          "coinCost": 5,
          "inputs": {"4151": {"whip-buy": {"offer": {"uuid": "whip-buy", "st": "BOUGHT"}, "amountConsumed": 1}}},
          "outputs": {}
        }
      ]
    }
  ],
  "lastOffers": {
    "0": {"uuid": "whip-buy", "st": "BOUGHT"},
    "1": {"uuid": "whip-sell", "st": "SOLD"}
  }
}`

const accountWideDocument = `{
  "options": [{"key": "margin", "value": 5}],
  "sections": [],
  "localRecipes": [{"name": "Whip flip"}],
  "shouldMakeNewAdditions": false,
  "enhancedSlots": true,
  "jwt": "token"
}`

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestConverter(t *testing.T, dir string) *Converter {
	t.Helper()
	db := NewDB(filepath.Join(dir, types.DefaultDatabaseFile))
	conn, err := db.Conn()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, NewMigrator(conn, nil).Migrate())
	c := NewConverter(dir, conn, nil)
	c.now = func() time.Time { return baseTime }
	return c
}

func TestConverterCheck(t *testing.T) {
	dir := t.TempDir()
	c := newTestConverter(t, dir)

	report, err := c.Check()
	require.NoError(t, err)
	assert.Equal(t, ConversionUpToDate, report.State)

	writeDoc(t, dir, "old.backup.json", "{}")
	writeDoc(t, dir, "notes.special.json", "{}")
	writeDoc(t, dir, "readme.txt", "x")
	report, err = c.Check()
	require.NoError(t, err)
	assert.Equal(t, ConversionUpToDate, report.State)

	writeDoc(t, dir, "Zez.json", zezDocument)
	report, err = c.Check()
	require.NoError(t, err)
	assert.Equal(t, ConversionNeedsMigration, report.State)
	assert.Equal(t, []string{"Zez.json"}, report.Pending)

	writeDoc(t, dir, conversionMarker, "")
	report, err = c.Check()
	require.NoError(t, err)
	assert.Equal(t, ConversionUpToDate, report.State)
}

func TestConverterRun(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "Zez.json", zezDocument)
	writeDoc(t, dir, "accountwide.json", accountWideDocument)
	writeDoc(t, dir, "Broken.json", `{"trades": [`)
	c := newTestConverter(t, dir)

	report, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, ConversionDone, report.State)
	assert.Equal(t, []string{"Zez.json", "accountwide.json"}, report.Converted)
	assert.Equal(t, []string{"Broken.json"}, report.Skipped)
	assert.Empty(t, report.BackupFailures)

	assert.FileExists(t, filepath.Join(dir, conversionMarker))
	assert.FileExists(t, filepath.Join(dir, "Zez.pre_sqlite.backup.json"))
	assert.FileExists(t, filepath.Join(dir, "accountwide.pre_sqlite.backup.json"))
	assert.NoFileExists(t, filepath.Join(dir, "Broken.pre_sqlite.backup.json"))
	assert.FileExists(t, filepath.Join(dir, "Zez.json"), "source documents are kept")

	acc, err := NewAccountStore(c.db, nil).FindByName("Zez")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, acc.AccumulatedSessionTime)
	require.NotNil(t, acc.LastStoredAt)
	assert.Equal(t, baseTime, *acc.LastStoredAt)

	require.Len(t, acc.Trades, 1)
	whip := acc.Trades[0]
	assert.Equal(t, "Abyssal whip", whip.ItemName)
	assert.Equal(t, 70, whip.TotalGELimit)
	assert.Equal(t, 1, whip.ItemsBoughtThisLimitWindow)
	assert.True(t, whip.ValidFlippingPanelItem)
	require.Len(t, whip.History, 2)
	assert.Equal(t, "whip-buy", whip.History[0].UUID)
	assert.Equal(t, baseTime, whip.History[0].Time)
	assert.Equal(t, 4151, whip.History[1].ItemID)
	assert.Equal(t, types.OfferStateSold, whip.History[1].State)

	require.Len(t, acc.RecipeFlipGroups, 1)
	group := acc.RecipeFlipGroups[0]
	assert.Equal(t, "Whip flip", group.RecipeName)
	assert.JSONEq(t, `{"name": "Whip flip", "inputs": [4151]}`, string(group.Recipe))
	require.Len(t, group.Flips, 1)
	assert.Same(t, whip.History[0], group.Flips[0].Inputs[4151]["whip-buy"].Offer)

	assert.Same(t, whip.History[0], acc.LastOffers[0])
	assert.Same(t, whip.History[1], acc.LastOffers[1])

	wide, err := NewAccountWideStore(c.db).Load()
	require.NoError(t, err)
	assert.Equal(t, "token", wide.JWT)
	assert.False(t, wide.ShouldMakeNewAdditions)
	require.Len(t, wide.Options, 1)
	assert.JSONEq(t, `{"key": "margin", "value": 5}`, string(wide.Options[0]))
	assert.NotNil(t, wide.Sections)
}

func TestConverterMarkerPreventsSecondRun(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "Zez.json", zezDocument)
	c := newTestConverter(t, dir)

	_, err := c.Run()
	require.NoError(t, err)

	// Changes to the source document after conversion are ignored.
	require.NoError(t, NewAccountStore(c.db, nil).Delete("Zez"))
	report, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, ConversionUpToDate, report.State)
	assert.Empty(t, report.Converted)

	exists, err := NewAccountStore(c.db, nil).Exists("Zez")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestConverterRetryDoesNotDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "Zez.json", zezDocument)
	c := newTestConverter(t, dir)

	// A first run that stored the account but died before the marker.
	_, err := c.Run()
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, conversionMarker)))

	report, err := c.Run()
	require.NoError(t, err)
	assert.Equal(t, ConversionDone, report.State)

	for table, want := range map[string]int{
		"account":           1,
		"flipping_item":     1,
		"offer_event":       2,
		"recipe_flip_group": 1,
		"recipe_flip":       1,
		"partial_offer":     1,
		"last_offer":        2,
	} {
		var n int
		require.NoError(t, c.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Equal(t, want, n, table)
	}

	// The first backup is never overwritten.
	assert.FileExists(t, filepath.Join(dir, "Zez.pre_sqlite.backup.json"))
	assert.FileExists(t, filepath.Join(dir, "Zez.pre_sqlite.20240301T120000.backup.json"))
}

func TestConverterStorageErrorSkipsMarker(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "Zez.json", zezDocument)
	c := newTestConverter(t, dir)
	_, err := c.db.Exec("DROP TABLE recipe_flip_group")
	require.NoError(t, err)

	_, err = c.Run()
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, conversionMarker))

	exists, err := NewAccountStore(c.db, nil).Exists("Zez")
	require.NoError(t, err)
	assert.False(t, exists, "failed document is rolled back")
}

func TestLegacyTimeEncodings(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	tests := []struct {
		name string
		raw  string
	}{
		{"rfc3339", `"2024-03-01T12:00:00.5Z"`},
		{"epoch millis", `1709294400500`},
		{"seconds and nanos", `{"seconds": 1709294400, "nanos": 500000000}`},
		{"epoch second and nano", `{"epochSecond": 1709294400, "nano": 500000000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lt legacyTime
			require.NoError(t, lt.UnmarshalJSON([]byte(tt.raw)))
			require.NotNil(t, lt.t)
			assert.Equal(t, want, *lt.t)
		})
	}

	var lt legacyTime
	require.NoError(t, lt.UnmarshalJSON([]byte(`null`)))
	assert.Nil(t, lt.t)
	assert.Error(t, lt.UnmarshalJSON([]byte(`{"hours": 3}`)))
}

func TestDecodeLegacyOfferDefaults(t *testing.T) {
	o, err := decodeLegacyOffer([]byte(`{"price": 10, "isBuy": true}`), 4151)
	require.NoError(t, err)
	assert.NotEmpty(t, o.UUID)
	assert.Equal(t, 4151, o.ItemID)
	assert.Equal(t, 10, o.Price)
	assert.True(t, o.IsBuy)
	assert.Equal(t, types.OfferStateEmpty, o.State)

	_, err = decodeLegacyOffer([]byte(`{"state": "PENDING"}`), 1)
	assert.ErrorIs(t, err, types.ErrInvalidOfferState)
}

func TestDecodeLegacyAccountRejectsNull(t *testing.T) {
	_, err := decodeLegacyAccount([]byte(`null`))
	assert.ErrorIs(t, err, types.ErrInvalidData)
}
