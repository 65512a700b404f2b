// This file implements the offer_event store.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

const offerColumns = `uuid, is_buy, item_id, current_quantity_in_trade, total_quantity_in_trade,
    price, time, slot, state, tick_arrived_at, ticks_since_first_offer, trade_started_at, before_login`

// OfferStore reads and writes offer events. Every offer row belongs to one
// flipping_item row.
type OfferStore struct {
	q Querier
}

// NewOfferStore returns an offer store bound to q.
func NewOfferStore(q Querier) *OfferStore {
	return &OfferStore{q: q}
}

// Insert stores offer under the item with surrogate id itemRowID.
func (s *OfferStore) Insert(itemRowID int64, offer *types.OfferEvent) error {
	if err := offer.Validate(); err != nil {
		return fmt.Errorf("inserting offer: %w", err)
	}
	_, err := s.q.Exec(
		`INSERT INTO offer_event (flipping_item_id, `+offerColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		itemRowID,
		offer.UUID, boolInt(offer.IsBuy), offer.ItemID,
		offer.CurrentQuantityInTrade, offer.TotalQuantityInTrade,
		offer.Price, formatTime(offer.Time), offer.Slot, string(offer.State),
		offer.TickArrivedAt, offer.TicksSinceFirstOffer,
		nullableTime(offer.TradeStartedAt), boolInt(offer.BeforeLogin),
	)
	if err != nil {
		return fmt.Errorf("inserting offer %s: %w", offer.UUID, err)
	}
	return nil
}

// InsertAll stores offers under one item. Either every offer is stored or
// none is.
func (s *OfferStore) InsertAll(itemRowID int64, offers []*types.OfferEvent) error {
	if len(offers) == 0 {
		return nil
	}
	return withTx(s.q, func(q Querier) error {
		tx := NewOfferStore(q)
		for _, o := range offers {
			if err := tx.Insert(itemRowID, o); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update replaces every mutable field of the offer with offer.UUID.
// Returns ErrNotFound if no such offer exists.
func (s *OfferStore) Update(offer *types.OfferEvent) error {
	if err := offer.Validate(); err != nil {
		return fmt.Errorf("updating offer: %w", err)
	}
	res, err := s.q.Exec(
		`UPDATE offer_event SET is_buy = ?, item_id = ?, current_quantity_in_trade = ?,
            total_quantity_in_trade = ?, price = ?, time = ?, slot = ?, state = ?,
            tick_arrived_at = ?, ticks_since_first_offer = ?, trade_started_at = ?, before_login = ?
         WHERE uuid = ?`,
		boolInt(offer.IsBuy), offer.ItemID, offer.CurrentQuantityInTrade,
		offer.TotalQuantityInTrade, offer.Price, formatTime(offer.Time), offer.Slot, string(offer.State),
		offer.TickArrivedAt, offer.TicksSinceFirstOffer, nullableTime(offer.TradeStartedAt), boolInt(offer.BeforeLogin),
		offer.UUID,
	)
	if err != nil {
		return fmt.Errorf("updating offer %s: %w", offer.UUID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating offer %s: %w", offer.UUID, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// FindByItem returns the item's offers ordered by time, then insertion.
func (s *OfferStore) FindByItem(itemRowID int64) ([]*types.OfferEvent, error) {
	rows, err := s.q.Query(
		"SELECT "+offerColumns+" FROM offer_event WHERE flipping_item_id = ? ORDER BY time, rowid",
		itemRowID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying offers for item %d: %w", itemRowID, err)
	}
	defer rows.Close()

	offers := []*types.OfferEvent{}
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating offers for item %d: %w", itemRowID, err)
	}
	return offers, nil
}

// FindByUUID returns the offer with the given identifier. A missing offer
// is reported as (nil, nil): the reference can no longer be resolved.
func (s *OfferStore) FindByUUID(uuid string) (*types.OfferEvent, error) {
	row := s.q.QueryRow("SELECT "+offerColumns+" FROM offer_event WHERE uuid = ?", uuid)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteByUUID removes one offer. Deleting a missing offer is not an error.
func (s *OfferStore) DeleteByUUID(uuid string) error {
	if _, err := s.q.Exec("DELETE FROM offer_event WHERE uuid = ?", uuid); err != nil {
		return fmt.Errorf("deleting offer %s: %w", uuid, err)
	}
	return nil
}

// DeleteByItem removes every offer owned by the item.
func (s *OfferStore) DeleteByItem(itemRowID int64) error {
	if _, err := s.q.Exec("DELETE FROM offer_event WHERE flipping_item_id = ?", itemRowID); err != nil {
		return fmt.Errorf("deleting offers for item %d: %w", itemRowID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(r rowScanner) (*types.OfferEvent, error) {
	var (
		o              types.OfferEvent
		isBuy, before  int
		when, state    string
		tradeStartedAt sql.NullString
	)
	err := r.Scan(
		&o.UUID, &isBuy, &o.ItemID, &o.CurrentQuantityInTrade, &o.TotalQuantityInTrade,
		&o.Price, &when, &o.Slot, &state, &o.TickArrivedAt, &o.TicksSinceFirstOffer,
		&tradeStartedAt, &before,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning offer: %w", err)
	}
	o.IsBuy = isBuy != 0
	o.BeforeLogin = before != 0
	if o.Time, err = parseTime(when); err != nil {
		return nil, fmt.Errorf("offer %s: %w", o.UUID, err)
	}
	if o.TradeStartedAt, err = parseNullableTime(tradeStartedAt); err != nil {
		return nil, fmt.Errorf("offer %s: %w", o.UUID, err)
	}
	if o.State, err = types.ParseOfferState(state); err != nil {
		return nil, fmt.Errorf("offer %s state %q: %w", o.UUID, state, err)
	}
	return &o, nil
}
