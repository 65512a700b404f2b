package types

import "time"

// Account is the per-account aggregate root, identified by display name.
type Account struct {
	// SessionStartTime is nil when no session is running.
	SessionStartTime       *time.Time
	AccumulatedSessionTime time.Duration
	LastSessionTimeUpdate  *time.Time
	LastStoredAt           *time.Time
	LastModifiedAt         *time.Time

	Trades           []*Item
	RecipeFlipGroups []*RecipeFlipGroup

	// LastOffers maps a trade slot to the most recent offer seen in it. The
	// offers are owned by Trades; a pointer whose offer was deleted is
	// dropped on load.
	LastOffers map[int]*OfferEvent
}

// NewAccount returns an empty account with non-nil collections.
func NewAccount() *Account {
	return &Account{
		Trades:           []*Item{},
		RecipeFlipGroups: []*RecipeFlipGroup{},
		LastOffers:       make(map[int]*OfferEvent),
	}
}

// Item returns the trade record for itemID, or nil.
func (a *Account) Item(itemID int) *Item {
	for _, it := range a.Trades {
		if it.ItemID == itemID {
			return it
		}
	}
	return nil
}

// Group returns the recipe flip group with the given recipe name, or nil.
func (a *Account) Group(recipeName string) *RecipeFlipGroup {
	for _, g := range a.RecipeFlipGroups {
		if g.RecipeName == recipeName {
			return g
		}
	}
	return nil
}
