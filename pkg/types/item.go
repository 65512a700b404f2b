package types

import (
	"sort"
	"time"
)

// Item is an account's trade record for a single game item. Items are keyed
// by (account, ItemID).
type Item struct {
	ItemID   int
	ItemName string

	// TotalGELimit is the buy limit for the item per limit window.
	TotalGELimit int

	// FlippedBy records which account or tool originated the item.
	FlippedBy string

	ValidFlippingPanelItem bool
	Favorite               bool
	FavoriteCode           string

	// GELimitResetTime is nil when no limit window is active.
	GELimitResetTime           *time.Time
	ItemsBoughtThisLimitWindow int

	// ItemsBoughtThroughCompleteOffers counts only quantity from offers that
	// finished inside the current limit window.
	ItemsBoughtThroughCompleteOffers int

	// History holds the item's offers ordered by time ascending.
	History []*OfferEvent
}

// SortHistory orders History by time ascending, keeping insertion order for
// equal times.
func (it *Item) SortHistory() {
	sort.SliceStable(it.History, func(i, j int) bool {
		return it.History[i].Time.Before(it.History[j].Time)
	})
}

// Offer returns the offer in History with the given UUID, or nil.
func (it *Item) Offer(uuid string) *OfferEvent {
	for _, o := range it.History {
		if o.UUID == uuid {
			return o
		}
	}
	return nil
}
