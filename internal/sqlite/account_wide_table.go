// This file implements the account_wide_data singleton store.
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// accountWideRowID is the fixed id of the singleton row.
const accountWideRowID = 1

// AccountWideStore reads and writes the installation-wide preferences row.
type AccountWideStore struct {
	q Querier
}

// NewAccountWideStore returns an account-wide store bound to q.
func NewAccountWideStore(q Querier) *AccountWideStore {
	return &AccountWideStore{q: q}
}

// Save replaces the singleton row with data.
func (s *AccountWideStore) Save(data *types.AccountWideData) error {
	if data == nil {
		return types.ErrInvalidData
	}
	options, err := encodeList(data.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	sections, err := encodeList(data.Sections)
	if err != nil {
		return fmt.Errorf("encoding sections: %w", err)
	}
	recipes, err := encodeList(data.LocalRecipes)
	if err != nil {
		return fmt.Errorf("encoding local recipes: %w", err)
	}

	_, err = s.q.Exec(
		`INSERT INTO account_wide_data (id, options_json, sections_json, local_recipes_json,
            should_make_new_additions, enhanced_slots, jwt)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
            options_json = excluded.options_json,
            sections_json = excluded.sections_json,
            local_recipes_json = excluded.local_recipes_json,
            should_make_new_additions = excluded.should_make_new_additions,
            enhanced_slots = excluded.enhanced_slots,
            jwt = excluded.jwt`,
		accountWideRowID, options, sections, recipes,
		boolInt(data.ShouldMakeNewAdditions), boolInt(data.EnhancedSlots), data.JWT,
	)
	if err != nil {
		return fmt.Errorf("saving account-wide data: %w", err)
	}
	return nil
}

// Load returns the stored preferences. When nothing has been saved it
// returns NewAccountWideData() defaults. Null list columns load as empty
// lists.
func (s *AccountWideStore) Load() (*types.AccountWideData, error) {
	var (
		options, sections, recipes, jwt sql.NullString
		additions, enhanced             int
	)
	err := s.q.QueryRow(
		`SELECT options_json, sections_json, local_recipes_json, should_make_new_additions,
            enhanced_slots, jwt
         FROM account_wide_data WHERE id = ?`,
		accountWideRowID,
	).Scan(&options, &sections, &recipes, &additions, &enhanced, &jwt)
	if err == sql.ErrNoRows {
		return types.NewAccountWideData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading account-wide data: %w", err)
	}

	data := &types.AccountWideData{
		ShouldMakeNewAdditions: additions != 0,
		EnhancedSlots:          enhanced != 0,
		JWT:                    jwt.String,
	}
	if data.Options, err = decodeList(options); err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	if data.Sections, err = decodeList(sections); err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	if data.LocalRecipes, err = decodeList(recipes); err != nil {
		return nil, fmt.Errorf("local recipes: %w", err)
	}
	return data, nil
}

// Delete removes the singleton row.
func (s *AccountWideStore) Delete() error {
	if _, err := s.q.Exec("DELETE FROM account_wide_data WHERE id = ?", accountWideRowID); err != nil {
		return fmt.Errorf("deleting account-wide data: %w", err)
	}
	return nil
}
