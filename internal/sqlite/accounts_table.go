// This file implements the account store, the entry point for loading and
// saving a whole account aggregate.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// AccountStore reads and writes account rows and composes the item, offer
// and recipe flip stores into fully hydrated accounts.
type AccountStore struct {
	q      Querier
	logger *slog.Logger
	items  *ItemStore
	offers *OfferStore
	flips  *RecipeFlipStore
}

// NewAccountStore returns an account store bound to q. A nil logger uses
// slog.Default().
func NewAccountStore(q Querier, logger *slog.Logger) *AccountStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountStore{
		q:      q,
		logger: logger,
		items:  NewItemStore(q),
		offers: NewOfferStore(q),
		flips:  NewRecipeFlipStore(q, logger),
	}
}

// Insert creates the account row for name. Items, groups and slot pointers
// are not written.
func (s *AccountStore) Insert(name string, acc *types.Account) error {
	if name == "" {
		return types.ErrInvalidName
	}
	if acc == nil {
		return types.ErrInvalidData
	}
	_, err := s.q.Exec(
		`INSERT INTO account (display_name, session_start_time, accumulated_session_time_millis,
            last_session_time_update, last_stored_at, last_modified_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		name, nullableTime(acc.SessionStartTime), acc.AccumulatedSessionTime.Milliseconds(),
		nullableTime(acc.LastSessionTimeUpdate), nullableTime(acc.LastStoredAt), nullableTime(acc.LastModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", name, err)
	}
	return nil
}

// Update rewrites the account row for name. Returns ErrNotFound if the
// account does not exist.
func (s *AccountStore) Update(name string, acc *types.Account) error {
	if acc == nil {
		return types.ErrInvalidData
	}
	res, err := s.q.Exec(
		`UPDATE account SET session_start_time = ?, accumulated_session_time_millis = ?,
            last_session_time_update = ?, last_stored_at = ?, last_modified_at = ?
         WHERE display_name = ?`,
		nullableTime(acc.SessionStartTime), acc.AccumulatedSessionTime.Milliseconds(),
		nullableTime(acc.LastSessionTimeUpdate), nullableTime(acc.LastStoredAt), nullableTime(acc.LastModifiedAt),
		name,
	)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating account %s: %w", name, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Exists reports whether an account row exists for name.
func (s *AccountStore) Exists(name string) (bool, error) {
	var one int
	err := s.q.QueryRow("SELECT 1 FROM account WHERE display_name = ?", name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking account %s: %w", name, err)
	}
	return true, nil
}

// InsertOrUpdate writes the account row, inserting it if it is new. The
// existing row is updated in place so rows that reference it survive.
func (s *AccountStore) InsertOrUpdate(name string, acc *types.Account) error {
	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return s.Update(name, acc)
	}
	return s.Insert(name, acc)
}

// FindAllNames returns every account display name in sorted order.
func (s *AccountStore) FindAllNames() ([]string, error) {
	rows, err := s.q.Query("SELECT display_name FROM account ORDER BY display_name")
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return names, nil
}

// FindByName returns the fully hydrated account: its row, its items with
// their offers, its slot pointers and its recipe groups. Slot pointers and
// partial offers share OfferEvent pointers with the item histories.
// Returns ErrNotFound if the account does not exist.
func (s *AccountStore) FindByName(name string) (*types.Account, error) {
	acc, err := s.findRow(name)
	if err != nil {
		return nil, err
	}

	if acc.Trades, err = s.items.FindByAccountWithOffers(name); err != nil {
		return nil, fmt.Errorf("loading items of %s: %w", name, err)
	}
	known := offerIndex(acc.Trades)

	if acc.LastOffers, err = s.loadLastOffers(name, known); err != nil {
		return nil, err
	}
	if acc.RecipeFlipGroups, err = s.flips.WithKnownOffers(known).FindGroupsByAccount(name); err != nil {
		return nil, fmt.Errorf("loading recipe groups of %s: %w", name, err)
	}
	return acc, nil
}

func (s *AccountStore) findRow(name string) (*types.Account, error) {
	var (
		sessionStart, lastUpdate, storedAt, modifiedAt sql.NullString
		millis                                         int64
	)
	err := s.q.QueryRow(
		`SELECT session_start_time, accumulated_session_time_millis, last_session_time_update,
            last_stored_at, last_modified_at
         FROM account WHERE display_name = ?`,
		name,
	).Scan(&sessionStart, &millis, &lastUpdate, &storedAt, &modifiedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", name, err)
	}

	acc := types.NewAccount()
	acc.AccumulatedSessionTime = time.Duration(millis) * time.Millisecond
	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{
		{&acc.SessionStartTime, sessionStart},
		{&acc.LastSessionTimeUpdate, lastUpdate},
		{&acc.LastStoredAt, storedAt},
		{&acc.LastModifiedAt, modifiedAt},
	} {
		if *f.dst, err = parseNullableTime(f.src); err != nil {
			return nil, fmt.Errorf("account %s: %w", name, err)
		}
	}
	return acc, nil
}

// FindAll returns every account keyed by display name.
func (s *AccountStore) FindAll() (map[string]*types.Account, error) {
	names, err := s.FindAllNames()
	if err != nil {
		return nil, err
	}
	all := make(map[string]*types.Account, len(names))
	for _, name := range names {
		acc, err := s.FindByName(name)
		if err != nil {
			return nil, err
		}
		all[name] = acc
	}
	return all, nil
}

// Delete removes the account and everything it owns. Deleting a missing
// account is not an error.
func (s *AccountStore) Delete(name string) error {
	if _, err := s.q.Exec("DELETE FROM account WHERE display_name = ?", name); err != nil {
		return fmt.Errorf("deleting account %s: %w", name, err)
	}
	return nil
}

// SaveLastOffers upserts the slot pointers in lastOffers as one batch.
// Slots not in lastOffers are left as they are.
func (s *AccountStore) SaveLastOffers(name string, lastOffers map[int]*types.OfferEvent) error {
	for slot, o := range lastOffers {
		if !types.ValidSlot(slot) {
			return fmt.Errorf("slot %d: %w", slot, types.ErrInvalidSlot)
		}
		if o == nil || o.UUID == "" {
			return fmt.Errorf("slot %d: %w", slot, types.ErrInvalidData)
		}
	}
	if len(lastOffers) == 0 {
		return nil
	}
	return withTx(s.q, func(q Querier) error {
		for _, slot := range slices.Sorted(maps.Keys(lastOffers)) {
			if _, err := q.Exec(
				`INSERT INTO last_offer (account_name, slot, offer_event_uuid) VALUES (?, ?, ?)
                 ON CONFLICT (account_name, slot) DO UPDATE SET offer_event_uuid = excluded.offer_event_uuid`,
				name, slot, lastOffers[slot].UUID,
			); err != nil {
				return fmt.Errorf("saving slot %d pointer for %s: %w", slot, name, err)
			}
		}
		return nil
	})
}

// ReplaceLastOffers makes lastOffers the account's complete set of slot
// pointers.
func (s *AccountStore) ReplaceLastOffers(name string, lastOffers map[int]*types.OfferEvent) error {
	return withTx(s.q, func(q Querier) error {
		if _, err := q.Exec("DELETE FROM last_offer WHERE account_name = ?", name); err != nil {
			return fmt.Errorf("clearing slot pointers for %s: %w", name, err)
		}
		return NewAccountStore(q, s.logger).SaveLastOffers(name, lastOffers)
	})
}

// LoadLastOffers resolves the account's slot pointers. Pointers whose offer
// no longer exists are dropped.
func (s *AccountStore) LoadLastOffers(name string) (map[int]*types.OfferEvent, error) {
	return s.loadLastOffers(name, nil)
}

func (s *AccountStore) loadLastOffers(name string, known map[string]*types.OfferEvent) (map[int]*types.OfferEvent, error) {
	rows, err := s.q.Query("SELECT slot, offer_event_uuid FROM last_offer WHERE account_name = ? ORDER BY slot", name)
	if err != nil {
		return nil, fmt.Errorf("querying slot pointers for %s: %w", name, err)
	}
	pointers := make(map[int]string)
	for rows.Next() {
		var (
			slot int
			uuid string
		)
		if err := rows.Scan(&slot, &uuid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning slot pointer: %w", err)
		}
		pointers[slot] = uuid
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating slot pointers for %s: %w", name, err)
	}

	out := make(map[int]*types.OfferEvent, len(pointers))
	for slot, uuid := range pointers {
		o, ok := known[uuid]
		if !ok {
			if o, err = s.offers.FindByUUID(uuid); err != nil {
				return nil, fmt.Errorf("resolving slot %d pointer: %w", slot, err)
			}
		}
		if o == nil {
			s.logger.Warn("dropping slot pointer to missing offer", "account", name, "slot", slot, "offer", uuid)
			continue
		}
		out[slot] = o
	}
	return out, nil
}

// offerIndex maps every offer in items by UUID.
func offerIndex(items []*types.Item) map[string]*types.OfferEvent {
	idx := make(map[string]*types.OfferEvent)
	for _, it := range items {
		for _, o := range it.History {
			idx[o.UUID] = o
		}
	}
	return idx
}
