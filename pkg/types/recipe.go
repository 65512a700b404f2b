package types

import (
	"encoding/json"
	"sort"
	"time"
)

// RecipeFlipGroup collects the executions of one recipe for an account.
// Groups are keyed by (account, RecipeName).
type RecipeFlipGroup struct {
	RecipeName string

	// Recipe is the serialized recipe definition. The store preserves it
	// byte for byte and never interprets it.
	Recipe json.RawMessage

	// Flips are ordered by TimeOfCreation ascending.
	Flips []*RecipeFlip
}

// RecipeFlip is one execution of a recipe: the offers it consumed as inputs
// and the offers it produced as outputs.
type RecipeFlip struct {
	// ID is the surrogate key assigned by the store. Zero for flips that
	// have not been saved.
	ID int64

	TimeOfCreation time.Time
	CoinCost       int64

	Inputs  PartialOfferMap
	Outputs PartialOfferMap
}

// PartialOffer records that a flip consumed AmountConsumed units of Offer.
// The offer is referenced, not owned: it belongs to an Item's history.
type PartialOffer struct {
	Offer          *OfferEvent
	AmountConsumed int
}

// PartialOfferMap maps game item ID to the partial offers for that item,
// keyed by the referenced offer's UUID.
type PartialOfferMap map[int]map[string]*PartialOffer

// Put stores p under itemID, replacing any partial offer for the same offer.
func (m PartialOfferMap) Put(itemID int, p *PartialOffer) {
	byOffer, ok := m[itemID]
	if !ok {
		byOffer = make(map[string]*PartialOffer)
		m[itemID] = byOffer
	}
	byOffer[p.Offer.UUID] = p
}

// Len returns the number of partial offers across all items.
func (m PartialOfferMap) Len() int {
	n := 0
	for _, byOffer := range m {
		n += len(byOffer)
	}
	return n
}

// NewRecipeFlip returns a flip with empty input and output maps.
func NewRecipeFlip(created time.Time, coinCost int64) *RecipeFlip {
	return &RecipeFlip{
		TimeOfCreation: created,
		CoinCost:       coinCost,
		Inputs:         make(PartialOfferMap),
		Outputs:        make(PartialOfferMap),
	}
}

// SortFlips orders Flips by creation time ascending, keeping insertion order
// for equal times.
func (g *RecipeFlipGroup) SortFlips() {
	sort.SliceStable(g.Flips, func(i, j int) bool {
		return g.Flips[i].TimeOfCreation.Before(g.Flips[j].TimeOfCreation)
	})
}
