package types

import (
	"time"

	"github.com/google/uuid"
)

// OfferState is the lifecycle state of a trade slot offer. Values are the
// canonical state names and are stored verbatim.
type OfferState string

// Offer states.
const (
	OfferStateEmpty         OfferState = "EMPTY"
	OfferStateBuying        OfferState = "BUYING"
	OfferStateBought        OfferState = "BOUGHT"
	OfferStateCancelledBuy  OfferState = "CANCELLED_BUY"
	OfferStateSelling       OfferState = "SELLING"
	OfferStateSold          OfferState = "SOLD"
	OfferStateCancelledSell OfferState = "CANCELLED_SELL"
)

// validOfferStates is the set of recognized offer state values.
var validOfferStates = map[OfferState]bool{
	OfferStateEmpty:         true,
	OfferStateBuying:        true,
	OfferStateBought:        true,
	OfferStateCancelledBuy:  true,
	OfferStateSelling:       true,
	OfferStateSold:          true,
	OfferStateCancelledSell: true,
}

// ParseOfferState converts a stored state name to an OfferState.
// Returns ErrInvalidOfferState for unknown names.
func ParseOfferState(name string) (OfferState, error) {
	s := OfferState(name)
	if !validOfferStates[s] {
		return "", ErrInvalidOfferState
	}
	return s, nil
}

// Valid reports whether s is a recognized offer state.
func (s OfferState) Valid() bool {
	return validOfferStates[s]
}

// Complete reports whether the offer has left the trade slot, either filled
// or cancelled.
func (s OfferState) Complete() bool {
	switch s {
	case OfferStateBought, OfferStateSold, OfferStateCancelledBuy, OfferStateCancelledSell:
		return true
	}
	return false
}

// NumSlots is the number of trade slots an account has. Slot indexes run
// from 0 to NumSlots-1.
const NumSlots = 8

// ValidSlot reports whether slot is a trade slot index.
func ValidSlot(slot int) bool {
	return slot >= 0 && slot < NumSlots
}

// OfferEvent is a single market offer observation. It is owned by exactly
// one Item and may be referenced by UUID from PartialOffers and from the
// Account's slot pointers.
type OfferEvent struct {
	// UUID is globally unique across all items and accounts. It is assigned
	// at creation and must stay stable across saves of the same offer.
	UUID string

	IsBuy  bool
	ItemID int

	// CurrentQuantityInTrade is the quantity traded so far in the slot;
	// TotalQuantityInTrade is the quantity the offer was placed for.
	CurrentQuantityInTrade int
	TotalQuantityInTrade   int

	// Price is the pre-tax unit price.
	Price int

	Time  time.Time
	Slot  int
	State OfferState

	TickArrivedAt        int
	TicksSinceFirstOffer int

	// TradeStartedAt is nil when the start of the trade was not observed.
	TradeStartedAt *time.Time

	// BeforeLogin marks offers that completed while the client was logged out.
	BeforeLogin bool
}

// NewOfferUUID generates a new offer identifier (UUID v7, time-ordered).
func NewOfferUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// Validate checks the fields the store relies on.
func (o *OfferEvent) Validate() error {
	if o == nil || o.UUID == "" {
		return ErrInvalidID
	}
	if !o.State.Valid() {
		return ErrInvalidOfferState
	}
	return nil
}
