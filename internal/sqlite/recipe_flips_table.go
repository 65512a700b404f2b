// This file implements the recipe flip store: recipe_flip_group,
// recipe_flip and partial_offer.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// RecipeFlipStore reads and writes recipe flip groups. Partial offers
// reference offer events by UUID only; on read each reference is resolved
// and references that no longer resolve are dropped.
type RecipeFlipStore struct {
	q      Querier
	offers *OfferStore
	logger *slog.Logger

	// known resolves references to offers already hydrated by the caller,
	// so flips share OfferEvent pointers with item histories.
	known map[string]*types.OfferEvent
}

// NewRecipeFlipStore returns a recipe flip store bound to q. A nil logger
// uses slog.Default().
func NewRecipeFlipStore(q Querier, logger *slog.Logger) *RecipeFlipStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipeFlipStore{q: q, offers: NewOfferStore(q), logger: logger}
}

// WithKnownOffers returns a copy of s that resolves partial offer references
// against known before querying the offer table.
func (s *RecipeFlipStore) WithKnownOffers(known map[string]*types.OfferEvent) *RecipeFlipStore {
	c := *s
	c.known = known
	return &c
}

// InsertGroup upserts the group row by (account, recipe name) and replaces
// its flips with group.Flips. Repeating the call with the same group leaves
// the same rows behind. Returns the group's row id.
func (s *RecipeFlipStore) InsertGroup(account string, group *types.RecipeFlipGroup) (int64, error) {
	if group == nil {
		return 0, types.ErrInvalidData
	}
	if group.RecipeName == "" {
		return 0, types.ErrInvalidName
	}
	recipe, err := encodeBlob(group.Recipe)
	if err != nil {
		return 0, fmt.Errorf("recipe %q: %w", group.RecipeName, err)
	}

	var groupID int64
	err = withTx(s.q, func(q Querier) error {
		tx := s.bind(q)
		if _, err := q.Exec(
			`INSERT INTO recipe_flip_group (account_name, recipe_name, recipe_data) VALUES (?, ?, ?)
             ON CONFLICT (account_name, recipe_name) DO UPDATE SET recipe_data = excluded.recipe_data`,
			account, group.RecipeName, recipe,
		); err != nil {
			return fmt.Errorf("upserting recipe group %q: %w", group.RecipeName, err)
		}
		var err error
		if groupID, err = tx.FindGroupID(account, group.RecipeName); err != nil {
			return err
		}
		if _, err := q.Exec("DELETE FROM recipe_flip WHERE recipe_flip_group_id = ?", groupID); err != nil {
			return fmt.Errorf("clearing flips of recipe group %q: %w", group.RecipeName, err)
		}
		for _, flip := range group.Flips {
			if _, err := tx.InsertFlip(groupID, flip); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return groupID, nil
}

// InsertFlip stores flip and its partial offers under the group and sets
// flip.ID to the new row id.
func (s *RecipeFlipStore) InsertFlip(groupID int64, flip *types.RecipeFlip) (int64, error) {
	if flip == nil {
		return 0, types.ErrInvalidData
	}
	var flipID int64
	err := withTx(s.q, func(q Querier) error {
		res, err := q.Exec(
			"INSERT INTO recipe_flip (recipe_flip_group_id, time_of_creation, coin_cost) VALUES (?, ?, ?)",
			groupID, formatTime(flip.TimeOfCreation), flip.CoinCost,
		)
		if err != nil {
			return fmt.Errorf("inserting recipe flip: %w", err)
		}
		if flipID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading recipe flip id: %w", err)
		}
		if err := insertPartials(q, flipID, true, flip.Inputs); err != nil {
			return err
		}
		return insertPartials(q, flipID, false, flip.Outputs)
	})
	if err != nil {
		return 0, err
	}
	flip.ID = flipID
	return flipID, nil
}

// insertPartials writes one direction of a flip as a single batch.
func insertPartials(q Querier, flipID int64, isInput bool, partials types.PartialOfferMap) error {
	if partials.Len() == 0 {
		return nil
	}
	return withTx(q, func(q Querier) error {
		for _, itemID := range slices.Sorted(maps.Keys(partials)) {
			byOffer := partials[itemID]
			for _, key := range slices.Sorted(maps.Keys(byOffer)) {
				p := byOffer[key]
				if p == nil || p.Offer == nil || p.Offer.UUID == "" {
					return fmt.Errorf("partial offer for item %d: %w", itemID, types.ErrInvalidData)
				}
				if _, err := q.Exec(
					`INSERT INTO partial_offer (recipe_flip_id, offer_event_uuid, amount_consumed, is_input, item_id)
                     VALUES (?, ?, ?, ?, ?)`,
					flipID, p.Offer.UUID, p.AmountConsumed, boolInt(isInput), itemID,
				); err != nil {
					return fmt.Errorf("inserting partial offer %s: %w", p.Offer.UUID, err)
				}
			}
		}
		return nil
	})
}

// FindGroupID returns the row id of the account's group for recipeName.
// Returns ErrNotFound if there is none.
func (s *RecipeFlipStore) FindGroupID(account, recipeName string) (int64, error) {
	var id int64
	err := s.q.QueryRow(
		"SELECT id FROM recipe_flip_group WHERE account_name = ? AND recipe_name = ?",
		account, recipeName,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, types.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("looking up recipe group %q: %w", recipeName, err)
	}
	return id, nil
}

// FindGroupsByAccount returns the account's groups with their flips,
// ordered by row id.
func (s *RecipeFlipStore) FindGroupsByAccount(account string) ([]*types.RecipeFlipGroup, error) {
	rows, err := s.q.Query(
		"SELECT id, recipe_name, recipe_data FROM recipe_flip_group WHERE account_name = ? ORDER BY id",
		account,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recipe groups for %s: %w", account, err)
	}

	type groupRow struct {
		id    int64
		group *types.RecipeFlipGroup
	}
	var found []groupRow
	for rows.Next() {
		var (
			id         int64
			name, data string
		)
		if err := rows.Scan(&id, &name, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning recipe group: %w", err)
		}
		recipe, err := decodeBlob(data)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("recipe group %q: %w", name, err)
		}
		found = append(found, groupRow{id: id, group: &types.RecipeFlipGroup{RecipeName: name, Recipe: recipe}})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating recipe groups for %s: %w", account, err)
	}

	groups := make([]*types.RecipeFlipGroup, 0, len(found))
	for _, g := range found {
		flips, err := s.FindFlipsByGroup(g.id)
		if err != nil {
			return nil, err
		}
		g.group.Flips = flips
		groups = append(groups, g.group)
	}
	return groups, nil
}

type partialRow struct {
	flipID  int64
	uuid    string
	amount  int
	isInput bool
	itemID  int
}

// FindFlipsByGroup returns the group's flips ordered by creation time, then
// insertion. Partial offers whose referenced offer no longer exists are
// dropped with a warning.
func (s *RecipeFlipStore) FindFlipsByGroup(groupID int64) ([]*types.RecipeFlip, error) {
	rows, err := s.q.Query(
		`SELECT id, time_of_creation, coin_cost FROM recipe_flip
         WHERE recipe_flip_group_id = ? ORDER BY time_of_creation, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying flips of group %d: %w", groupID, err)
	}
	flips := []*types.RecipeFlip{}
	byID := make(map[int64]*types.RecipeFlip)
	for rows.Next() {
		var (
			id   int64
			when string
			cost int64
		)
		if err := rows.Scan(&id, &when, &cost); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning recipe flip: %w", err)
		}
		created, err := parseTime(when)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("recipe flip %d: %w", id, err)
		}
		flip := types.NewRecipeFlip(created, cost)
		flip.ID = id
		flips = append(flips, flip)
		byID[id] = flip
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating flips of group %d: %w", groupID, err)
	}
	if len(flips) == 0 {
		return flips, nil
	}

	partials, err := s.partialsForGroup(groupID)
	if err != nil {
		return nil, err
	}
	for _, p := range partials {
		flip := byID[p.flipID]
		if flip == nil {
			continue
		}
		offer, err := s.resolve(p.uuid)
		if err != nil {
			return nil, fmt.Errorf("resolving offer %s: %w", p.uuid, err)
		}
		if offer == nil {
			s.logger.Warn("dropping partial offer with missing offer",
				"flip", p.flipID, "offer", p.uuid, "item", p.itemID)
			continue
		}
		target := flip.Outputs
		if p.isInput {
			target = flip.Inputs
		}
		target.Put(p.itemID, &types.PartialOffer{Offer: offer, AmountConsumed: p.amount})
	}
	return flips, nil
}

func (s *RecipeFlipStore) partialsForGroup(groupID int64) ([]partialRow, error) {
	rows, err := s.q.Query(
		`SELECT p.recipe_flip_id, p.offer_event_uuid, p.amount_consumed, p.is_input, p.item_id
         FROM partial_offer p JOIN recipe_flip f ON f.id = p.recipe_flip_id
         WHERE f.recipe_flip_group_id = ? ORDER BY p.id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying partial offers of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var out []partialRow
	for rows.Next() {
		var (
			p       partialRow
			isInput int
		)
		if err := rows.Scan(&p.flipID, &p.uuid, &p.amount, &isInput, &p.itemID); err != nil {
			return nil, fmt.Errorf("scanning partial offer: %w", err)
		}
		p.isInput = isInput != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating partial offers of group %d: %w", groupID, err)
	}
	return out, nil
}

func (s *RecipeFlipStore) resolve(uuid string) (*types.OfferEvent, error) {
	if o, ok := s.known[uuid]; ok {
		return o, nil
	}
	return s.offers.FindByUUID(uuid)
}

// DeleteGroup removes the group and, through the foreign keys, its flips and
// their partial offers.
func (s *RecipeFlipStore) DeleteGroup(groupID int64) error {
	if _, err := s.q.Exec("DELETE FROM recipe_flip_group WHERE id = ?", groupID); err != nil {
		return fmt.Errorf("deleting recipe group %d: %w", groupID, err)
	}
	return nil
}

// DeleteFlip removes one flip and its partial offers.
func (s *RecipeFlipStore) DeleteFlip(flipID int64) error {
	if _, err := s.q.Exec("DELETE FROM recipe_flip WHERE id = ?", flipID); err != nil {
		return fmt.Errorf("deleting recipe flip %d: %w", flipID, err)
	}
	return nil
}

// DeleteMissingGroups removes the account's groups whose recipe name is not
// in keep and returns how many were removed.
func (s *RecipeFlipStore) DeleteMissingGroups(account string, keep map[string]bool) (int, error) {
	rows, err := s.q.Query("SELECT id, recipe_name FROM recipe_flip_group WHERE account_name = ?", account)
	if err != nil {
		return 0, fmt.Errorf("querying recipe groups for %s: %w", account, err)
	}
	var stale []int64
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning recipe group: %w", err)
		}
		if !keep[name] {
			stale = append(stale, id)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("iterating recipe groups for %s: %w", account, err)
	}
	for _, id := range stale {
		if err := s.DeleteGroup(id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

// bind returns a copy of s that runs its statements on q.
func (s *RecipeFlipStore) bind(q Querier) *RecipeFlipStore {
	c := *s
	c.q = q
	c.offers = NewOfferStore(q)
	return &c
}
