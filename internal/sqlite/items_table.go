// This file implements the flipping_item store.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

const itemColumns = `id, item_id, item_name, total_ge_limit, flipped_by, valid_flipping_panel_item,
    favorite, favorite_code, next_ge_limit_refresh, items_bought_this_limit_window,
    items_bought_through_complete_offers`

// ItemStore reads and writes an account's trade records. Items are keyed by
// (account, game item ID) and carry a surrogate row id that offers point at.
type ItemStore struct {
	q      Querier
	offers *OfferStore
}

// NewItemStore returns an item store bound to q.
func NewItemStore(q Querier) *ItemStore {
	return &ItemStore{q: q, offers: NewOfferStore(q)}
}

// storedItem pairs a hydrated item with its row id.
type storedItem struct {
	rowID int64
	item  *types.Item
}

// Insert stores item for account and returns its row id. Offers in
// item.History are not written; see InsertWithOffers.
func (s *ItemStore) Insert(account string, item *types.Item) (int64, error) {
	if item == nil {
		return 0, types.ErrInvalidData
	}
	res, err := s.q.Exec(
		`INSERT INTO flipping_item (account_name, item_id, item_name, total_ge_limit, flipped_by,
            valid_flipping_panel_item, favorite, favorite_code, next_ge_limit_refresh,
            items_bought_this_limit_window, items_bought_through_complete_offers)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account, item.ItemID, item.ItemName, item.TotalGELimit, item.FlippedBy,
		boolInt(item.ValidFlippingPanelItem), boolInt(item.Favorite), item.FavoriteCode,
		nullableTime(item.GELimitResetTime), item.ItemsBoughtThisLimitWindow,
		item.ItemsBoughtThroughCompleteOffers,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item %d for %s: %w", item.ItemID, account, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading id of item %d: %w", item.ItemID, err)
	}
	return id, nil
}

// Update rewrites the item row with the given row id. The owning account and
// game item ID do not change.
func (s *ItemStore) Update(rowID int64, item *types.Item) error {
	if item == nil {
		return types.ErrInvalidData
	}
	res, err := s.q.Exec(
		`UPDATE flipping_item SET item_name = ?, total_ge_limit = ?, flipped_by = ?,
            valid_flipping_panel_item = ?, favorite = ?, favorite_code = ?, next_ge_limit_refresh = ?,
            items_bought_this_limit_window = ?, items_bought_through_complete_offers = ?
         WHERE id = ?`,
		item.ItemName, item.TotalGELimit, item.FlippedBy,
		boolInt(item.ValidFlippingPanelItem), boolInt(item.Favorite), item.FavoriteCode,
		nullableTime(item.GELimitResetTime), item.ItemsBoughtThisLimitWindow,
		item.ItemsBoughtThroughCompleteOffers, rowID,
	)
	if err != nil {
		return fmt.Errorf("updating item %d: %w", rowID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating item %d: %w", rowID, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// FindByAccount returns the account's items without their offers, ordered
// by row id.
func (s *ItemStore) FindByAccount(account string) ([]*types.Item, error) {
	stored, err := s.findStored(account)
	if err != nil {
		return nil, err
	}
	items := make([]*types.Item, len(stored))
	for i, si := range stored {
		items[i] = si.item
	}
	return items, nil
}

// FindByAccountWithOffers returns the account's items with History loaded.
func (s *ItemStore) FindByAccountWithOffers(account string) ([]*types.Item, error) {
	stored, err := s.findStored(account)
	if err != nil {
		return nil, err
	}
	items := make([]*types.Item, len(stored))
	for i, si := range stored {
		history, err := s.offers.FindByItem(si.rowID)
		if err != nil {
			return nil, fmt.Errorf("loading history of item %d: %w", si.item.ItemID, err)
		}
		si.item.History = history
		items[i] = si.item
	}
	return items, nil
}

func (s *ItemStore) findStored(account string) ([]storedItem, error) {
	rows, err := s.q.Query(
		"SELECT "+itemColumns+" FROM flipping_item WHERE account_name = ? ORDER BY id",
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("querying items for %s: %w", account, err)
	}
	defer rows.Close()

	stored := []storedItem{}
	for rows.Next() {
		si, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		stored = append(stored, si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items for %s: %w", account, err)
	}
	return stored, nil
}

// FindID returns the row id of the account's item with game item ID itemID.
// Returns ErrNotFound if the account has no such item.
func (s *ItemStore) FindID(account string, itemID int) (int64, error) {
	var id int64
	err := s.q.QueryRow(
		"SELECT id FROM flipping_item WHERE account_name = ? AND item_id = ?",
		account, itemID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, types.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("looking up item %d for %s: %w", itemID, account, err)
	}
	return id, nil
}

// Delete removes the item and, through the foreign key, its offers.
func (s *ItemStore) Delete(rowID int64) error {
	if _, err := s.q.Exec("DELETE FROM flipping_item WHERE id = ?", rowID); err != nil {
		return fmt.Errorf("deleting item %d: %w", rowID, err)
	}
	return nil
}

// InsertWithOffers stores the item and its whole history atomically and
// returns the new row id.
func (s *ItemStore) InsertWithOffers(account string, item *types.Item) (int64, error) {
	var id int64
	err := withTx(s.q, func(q Querier) error {
		tx := NewItemStore(q)
		var err error
		if id, err = tx.Insert(account, item); err != nil {
			return err
		}
		return tx.offers.InsertAll(id, item.History)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ReplaceOffers deletes the item's offers and inserts offers in their place.
func (s *ItemStore) ReplaceOffers(rowID int64, offers []*types.OfferEvent) error {
	return withTx(s.q, func(q Querier) error {
		tx := NewOfferStore(q)
		if err := tx.DeleteByItem(rowID); err != nil {
			return err
		}
		return tx.InsertAll(rowID, offers)
	})
}

// Upsert stores item for account: it updates the existing row and replaces
// its offers, or inserts the item with its offers. Returns the row id.
func (s *ItemStore) Upsert(account string, item *types.Item) (int64, error) {
	if item == nil {
		return 0, types.ErrInvalidData
	}
	var id int64
	err := withTx(s.q, func(q Querier) error {
		tx := NewItemStore(q)
		existing, err := tx.FindID(account, item.ItemID)
		switch {
		case err == nil:
			id = existing
			if err := tx.Update(id, item); err != nil {
				return err
			}
			return tx.ReplaceOffers(id, item.History)
		case err == types.ErrNotFound:
			id, err = tx.InsertWithOffers(account, item)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteMissing removes the account's items whose game item ID is not in
// keep. It returns the number of items removed.
func (s *ItemStore) DeleteMissing(account string, keep map[int]bool) (int, error) {
	rows, err := s.q.Query("SELECT id, item_id FROM flipping_item WHERE account_name = ?", account)
	if err != nil {
		return 0, fmt.Errorf("querying items for %s: %w", account, err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var itemID int
		if err := rows.Scan(&id, &itemID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning item: %w", err)
		}
		if !keep[itemID] {
			stale = append(stale, id)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("iterating items for %s: %w", account, err)
	}

	for _, id := range stale {
		if err := s.Delete(id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func scanItem(r rowScanner) (storedItem, error) {
	var (
		si                   storedItem
		it                   types.Item
		flippedBy, favCode   sql.NullString
		validPanel, favorite int
		resetAt              sql.NullString
	)
	err := r.Scan(
		&si.rowID, &it.ItemID, &it.ItemName, &it.TotalGELimit, &flippedBy, &validPanel,
		&favorite, &favCode, &resetAt, &it.ItemsBoughtThisLimitWindow,
		&it.ItemsBoughtThroughCompleteOffers,
	)
	if err != nil {
		return si, fmt.Errorf("scanning item: %w", err)
	}
	it.FlippedBy = flippedBy.String
	it.FavoriteCode = favCode.String
	it.ValidFlippingPanelItem = validPanel != 0
	it.Favorite = favorite != 0
	if it.GELimitResetTime, err = parseNullableTime(resetAt); err != nil {
		return si, fmt.Errorf("item %d: %w", it.ItemID, err)
	}
	it.History = []*types.OfferEvent{}
	si.item = &it
	return si, nil
}
