// This file decodes the flat per-account documents written before the
// relational store existed. Documents carry either the long field names or
// the short aliases used by later versions of the writer, and instants in
// any of three encodings.
package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

type fields map[string]json.RawMessage

func decodeFields(raw []byte) (fields, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("empty document: %w", types.ErrInvalidData)
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidData, err)
	}
	return f, nil
}

// pick decodes the first present, non-null key into dst. It reports whether
// a key was found.
func (f fields) pick(dst any, keys ...string) (bool, error) {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return false, fmt.Errorf("field %q: %w", k, err)
		}
		return true, nil
	}
	return false, nil
}

// pickAll runs pick for each target and stops at the first error.
func (f fields) pickAll(targets ...target) error {
	for _, t := range targets {
		if _, err := f.pick(t.dst, t.keys...); err != nil {
			return err
		}
	}
	return nil
}

type target struct {
	dst  any
	keys []string
}

func field(dst any, keys ...string) target {
	return target{dst: dst, keys: keys}
}

// legacyTime accepts an RFC 3339 string, epoch milliseconds, or an object
// of seconds and nanoseconds.
type legacyTime struct {
	t *time.Time
}

func (lt *legacyTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		lt.t = nil
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			lt.t = nil
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		t = t.UTC()
		lt.t = &t
		return nil
	case len(b) > 0 && b[0] == '{':
		var parts struct {
			Seconds     *int64 `json:"seconds"`
			Nanos       int64  `json:"nanos"`
			EpochSecond *int64 `json:"epochSecond"`
			Nano        int64  `json:"nano"`
		}
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		var t time.Time
		switch {
		case parts.Seconds != nil:
			t = time.Unix(*parts.Seconds, parts.Nanos).UTC()
		case parts.EpochSecond != nil:
			t = time.Unix(*parts.EpochSecond, parts.Nano).UTC()
		default:
			return fmt.Errorf("instant object without seconds")
		}
		lt.t = &t
		return nil
	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("instant %s: %w", b, err)
		}
		t := time.UnixMilli(ms).UTC()
		lt.t = &t
		return nil
	}
}

func (lt legacyTime) value() time.Time {
	if lt.t == nil {
		return time.Time{}
	}
	return *lt.t
}

// decodeLegacyAccount decodes one account document.
func decodeLegacyAccount(raw []byte) (*types.Account, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}

	acc := types.NewAccount()
	var (
		sessionStart, lastUpdate, storedAt, modifiedAt legacyTime
		accumulatedMillis                              int64
		trades, groups                                 []json.RawMessage
		lastOffers                                     map[string]json.RawMessage
	)
	err = f.pickAll(
		field(&sessionStart, "sessionStartTime", "sST"),
		field(&accumulatedMillis, "accumulatedSessionTimeMillis", "aSTM"),
		field(&lastUpdate, "lastSessionTimeUpdate", "lSTU"),
		field(&storedAt, "lastStoredAt", "lSA"),
		field(&modifiedAt, "lastModifiedAt", "lMA"),
		field(&trades, "trades", "t"),
		field(&groups, "recipeFlipGroups", "rFG"),
		field(&lastOffers, "lastOffers", "lO"),
	)
	if err != nil {
		return nil, err
	}
	acc.SessionStartTime = sessionStart.t
	acc.AccumulatedSessionTime = time.Duration(accumulatedMillis) * time.Millisecond
	acc.LastSessionTimeUpdate = lastUpdate.t
	acc.LastStoredAt = storedAt.t
	acc.LastModifiedAt = modifiedAt.t

	for i, rawItem := range trades {
		it, err := decodeLegacyItem(rawItem)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		acc.Trades = append(acc.Trades, it)
	}
	for i, rawGroup := range groups {
		g, err := decodeLegacyGroup(rawGroup)
		if err != nil {
			return nil, fmt.Errorf("recipe group %d: %w", i, err)
		}
		acc.RecipeFlipGroups = append(acc.RecipeFlipGroups, g)
	}

	// Slot pointers carry a copy of the offer; only its UUID is kept, and
	// it is resolved against the converted histories.
	known := offerIndex(acc.Trades)
	for key, rawOffer := range lastOffers {
		slot, err := strconv.Atoi(key)
		if err != nil || !types.ValidSlot(slot) {
			continue
		}
		o, err := decodeLegacyOffer(rawOffer, 0)
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", key, err)
		}
		if shared, ok := known[o.UUID]; ok {
			o = shared
		}
		acc.LastOffers[slot] = o
	}
	return acc, nil
}

// decodeLegacyItem decodes one trade record. The history is either a list
// of offers or an object holding the list and the limit window state.
func decodeLegacyItem(raw []byte) (*types.Item, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	it := &types.Item{ValidFlippingPanelItem: true}
	var (
		history     json.RawMessage
		resetAt     legacyTime
		hasValidity bool
	)
	err = f.pickAll(
		field(&it.ItemID, "itemId", "id"),
		field(&it.ItemName, "itemName", "name"),
		field(&it.TotalGELimit, "totalGELimit", "tGELimit"),
		field(&it.FlippedBy, "flippedBy", "fB"),
		field(&it.Favorite, "favorite", "fav"),
		field(&it.FavoriteCode, "favoriteCode", "fc"),
		field(&history, "history", "h"),
	)
	if err != nil {
		return nil, err
	}
	if hasValidity, err = f.pick(&it.ValidFlippingPanelItem, "validFlippingPanelItem", "vFPI"); err != nil {
		return nil, err
	}
	if !hasValidity {
		it.ValidFlippingPanelItem = true
	}

	var offers []json.RawMessage
	trimmed := bytes.TrimSpace(history)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &offers); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	default:
		hf, err := decodeFields(trimmed)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		err = hf.pickAll(
			field(&offers, "compressedOfferEvents", "cO"),
			field(&resetAt, "nextGeLimitRefresh", "nGELR"),
			field(&it.ItemsBoughtThisLimitWindow, "itemsBoughtThisLimitWindow", "iBTLW"),
			field(&it.ItemsBoughtThroughCompleteOffers, "itemsBoughtThroughCompleteOffers", "iBTCO"),
		)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
	}
	it.GELimitResetTime = resetAt.t

	it.History = make([]*types.OfferEvent, 0, len(offers))
	for i, rawOffer := range offers {
		o, err := decodeLegacyOffer(rawOffer, it.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item %d offer %d: %w", it.ItemID, i, err)
		}
		it.History = append(it.History, o)
	}
	it.SortHistory()
	return it, nil
}

// decodeLegacyOffer decodes one offer. Offers without a UUID get a new one;
// offers without an item ID take itemID.
func decodeLegacyOffer(raw []byte, itemID int) (*types.OfferEvent, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	o := &types.OfferEvent{ItemID: itemID}
	var (
		when, started legacyTime
		state         string
	)
	err = f.pickAll(
		field(&o.UUID, "uuid", "u"),
		field(&o.IsBuy, "isBuy", "b"),
		field(&o.ItemID, "itemId", "id"),
		field(&o.CurrentQuantityInTrade, "currentQuantityInTrade", "cQIT"),
		field(&o.TotalQuantityInTrade, "totalQuantityInTrade", "tQIT"),
		field(&o.Price, "price", "p"),
		field(&when, "time", "t"),
		field(&o.Slot, "slot", "s"),
		field(&state, "state", "st"),
		field(&o.TickArrivedAt, "tickArrivedAt", "tAA"),
		field(&o.TicksSinceFirstOffer, "ticksSinceFirstOffer", "tSFO"),
		field(&started, "tradeStartedAt", "tSA"),
		field(&o.BeforeLogin, "beforeLogin", "bL"),
	)
	if err != nil {
		return nil, err
	}
	if o.UUID == "" {
		o.UUID = types.NewOfferUUID()
	}
	if state == "" {
		state = string(types.OfferStateEmpty)
	}
	if o.State, err = types.ParseOfferState(state); err != nil {
		return nil, fmt.Errorf("offer %s state %q: %w", o.UUID, state, err)
	}
	o.Time = when.value()
	o.TradeStartedAt = started.t
	return o, nil
}

// decodeLegacyGroup decodes one recipe flip group. The recipe definition is
// kept verbatim; its name comes from the group or from the recipe itself.
func decodeLegacyGroup(raw []byte) (*types.RecipeFlipGroup, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	g := &types.RecipeFlipGroup{}
	var flips []json.RawMessage
	err = f.pickAll(
		field(&g.RecipeName, "recipeName", "rN"),
		field(&g.Recipe, "recipe", "r"),
		field(&flips, "recipeFlips", "rF"),
	)
	if err != nil {
		return nil, err
	}
	if g.RecipeName == "" && len(g.Recipe) > 0 {
		if rf, err := decodeFields(g.Recipe); err == nil {
			if _, err := rf.pick(&g.RecipeName, "name", "n"); err != nil {
				return nil, fmt.Errorf("recipe: %w", err)
			}
		}
	}
	if g.RecipeName == "" {
		return nil, fmt.Errorf("recipe group: %w", types.ErrInvalidName)
	}

	for i, rawFlip := range flips {
		flip, err := decodeLegacyFlip(rawFlip)
		if err != nil {
			return nil, fmt.Errorf("recipe %q flip %d: %w", g.RecipeName, i, err)
		}
		g.Flips = append(g.Flips, flip)
	}
	g.SortFlips()
	return g, nil
}

func decodeLegacyFlip(raw []byte) (*types.RecipeFlip, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	var (
		created         legacyTime
		cost            int64
		inputs, outputs map[string]map[string]json.RawMessage
	)
	err = f.pickAll(
		field(&created, "timeOfCreation", "tOC"),
		field(&cost, "coinCost", "cC"),
		field(&inputs, "inputs", "i"),
		field(&outputs, "outputs", "o"),
	)
	if err != nil {
		return nil, err
	}
	flip := types.NewRecipeFlip(created.value(), cost)
	if err := decodeLegacyPartials(inputs, flip.Inputs); err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	if err := decodeLegacyPartials(outputs, flip.Outputs); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	return flip, nil
}

// decodeLegacyPartials fills dst from item ID -> offer UUID -> partial
// offer. The map key is the UUID of record when the embedded offer has
// none.
func decodeLegacyPartials(src map[string]map[string]json.RawMessage, dst types.PartialOfferMap) error {
	for itemKey, byOffer := range src {
		itemID, err := strconv.Atoi(itemKey)
		if err != nil {
			return fmt.Errorf("item key %q: %w", itemKey, types.ErrInvalidData)
		}
		for uuid, rawPartial := range byOffer {
			pf, err := decodeFields(rawPartial)
			if err != nil {
				return err
			}
			var (
				amount   int
				rawOffer json.RawMessage
			)
			if err := pf.pickAll(
				field(&amount, "amountConsumed", "aC"),
				field(&rawOffer, "offer", "o"),
			); err != nil {
				return err
			}
			offer := &types.OfferEvent{UUID: uuid, ItemID: itemID, State: types.OfferStateEmpty}
			if len(rawOffer) > 0 {
				if offer, err = decodeLegacyOffer(rawOffer, itemID); err != nil {
					return err
				}
			}
			offer.UUID = uuid
			dst.Put(itemID, &types.PartialOffer{Offer: offer, AmountConsumed: amount})
		}
	}
	return nil
}

// decodeLegacyAccountWide decodes the installation-wide document.
func decodeLegacyAccountWide(raw []byte) (*types.AccountWideData, error) {
	f, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	data := types.NewAccountWideData()
	err = f.pickAll(
		field(&data.Options, "options"),
		field(&data.Sections, "sections"),
		field(&data.LocalRecipes, "localRecipes"),
		field(&data.ShouldMakeNewAdditions, "shouldMakeNewAdditions"),
		field(&data.EnhancedSlots, "enhancedSlots"),
		field(&data.JWT, "jwt"),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}
