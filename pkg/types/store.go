package types

import (
	"errors"
	"time"
)

// TradeStore persists account trade histories and account-wide preferences.
// Load methods never fail: on storage errors they log and return an empty
// default so callers always receive a usable value. Write methods return
// errors for the caller to surface.
type TradeStore interface {
	// Attach opens the store described by config, brings the schema up to
	// date, and converts legacy flat documents if any are pending.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases the connection. Idempotent.
	Detach() error

	// AccountNames lists every stored account display name.
	AccountNames() ([]string, error)

	// LoadAccount returns the fully hydrated account, or an empty account
	// when it does not exist or cannot be read.
	LoadAccount(displayName string) *Account

	// LoadAllAccounts returns every account keyed by display name.
	LoadAllAccounts() map[string]*Account

	// SaveAccount replaces the stored aggregate for displayName with data.
	SaveAccount(displayName string, data *Account) error

	// DeleteAccount removes the account and everything it owns.
	DeleteAccount(displayName string) error

	// LoadAccountWideData returns the stored preferences or defaults.
	LoadAccountWideData() *AccountWideData

	// SaveAccountWideData replaces the stored preferences.
	SaveAccountWideData(data *AccountWideData) error

	// LastModified returns when the account was last stored, or the zero
	// time if it has never been stored.
	LastModified(displayName string) (time.Time, error)
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Entity errors.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidID         = errors.New("invalid entity ID")
	ErrInvalidData       = errors.New("invalid entity data")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidOfferState = errors.New("invalid offer state")
	ErrInvalidSlot       = errors.New("slot index out of range")
)

// Schema migration errors.
var (
	ErrMigrationNotFound  = errors.New("migration script not found")
	ErrMigrationAmbiguous = errors.New("more than one migration script for version")
	ErrSchemaTooNew       = errors.New("stored schema version is newer than supported")
)
