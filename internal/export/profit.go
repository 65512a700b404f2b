package export

import (
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// Profit returns the coins realized by item's complete offers at or after
// since. Only the matched quantity counts: min(sold, bought) units valued at
// the average sell price minus the same units at the average buy price.
// Offers still sitting in a slot are ignored.
func Profit(item *types.Item, since time.Time) int64 {
	if item == nil {
		return 0
	}
	return profitOf(inWindow(item.History, since))
}

func profitOf(offers []*types.OfferEvent) int64 {
	var bought, sold, buyValue, sellValue int64
	for _, o := range offers {
		if !o.State.Complete() || o.CurrentQuantityInTrade <= 0 {
			continue
		}
		qty := int64(o.CurrentQuantityInTrade)
		value := qty * int64(o.Price)
		if o.IsBuy {
			bought += qty
			buyValue += value
		} else {
			sold += qty
			sellValue += value
		}
	}
	matched := min(bought, sold)
	if matched == 0 {
		return 0
	}
	return sellValue*matched/sold - buyValue*matched/bought
}
