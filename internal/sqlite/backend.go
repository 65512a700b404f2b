// Package sqlite implements the SQLite storage backend for flipstore.
// Account aggregates are decomposed into normalized tables in a single
// embedded database file; opaque preference fields are stored as versioned
// JSON blobs.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// Compile-time interface check: Backend must implement TradeStore.
var _ types.TradeStore = (*Backend)(nil)

// Backend implements TradeStore on top of the stores in this package.
type Backend struct {
	mu         sync.RWMutex
	attached   bool
	config     types.Config
	db         *DB
	logger     *slog.Logger
	now        func() time.Time
	conversion *ConversionReport
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock sets the clock used to stamp saves.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach creates DataDir if needed, opens the database, brings the schema
// up to date and, unless disabled, converts pending legacy documents.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(config.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// trades.json predates per-account documents and is never converted.
	if err := os.Remove(filepath.Join(config.DataDir, legacyTradesFile)); err == nil {
		b.logger.Debug("removed obsolete trades file", "dir", config.DataDir)
	}

	db := NewDB(filepath.Join(config.DataDir, config.DatabaseFileName()))
	conn, err := db.Conn()
	if err != nil {
		return err
	}

	if err := NewMigrator(conn, b.logger).Migrate(); err != nil {
		db.Close()
		return err
	}

	b.conversion = nil
	if !config.SkipLegacyConversion {
		report, err := NewConverter(config.DataDir, conn, b.logger).Run()
		if err != nil {
			db.Close()
			return fmt.Errorf("legacy conversion: %w", err)
		}
		b.conversion = report
	}

	b.db = db
	b.config = config
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.attached = false
	return err
}

// querier returns the open connection. The caller must hold b.mu.
func (b *Backend) querier() (*sql.DB, error) {
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.db.Conn()
}

// AccountNames lists every stored account.
func (b *Backend) AccountNames() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		return nil, err
	}
	return NewAccountStore(q, b.logger).FindAllNames()
}

// LoadAccount returns the account, or an empty account if it does not
// exist or cannot be read.
func (b *Backend) LoadAccount(displayName string) *types.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		b.logger.Error("loading account", "account", displayName, "error", err)
		return types.NewAccount()
	}
	acc, err := NewAccountStore(q, b.logger).FindByName(displayName)
	if errors.Is(err, types.ErrNotFound) {
		b.logger.Debug("no stored data for account", "account", displayName)
		return types.NewAccount()
	}
	if err != nil {
		b.logger.Error("loading account", "account", displayName, "error", err)
		return types.NewAccount()
	}
	return acc
}

// LoadAllAccounts returns every account keyed by display name, or an empty
// map if the accounts cannot be read.
func (b *Backend) LoadAllAccounts() map[string]*types.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		b.logger.Error("loading accounts", "error", err)
		return map[string]*types.Account{}
	}
	all, err := NewAccountStore(q, b.logger).FindAll()
	if err != nil {
		b.logger.Error("loading accounts", "error", err)
		return map[string]*types.Account{}
	}
	return all
}

// SaveAccount stamps data.LastStoredAt and replaces the stored aggregate
// for displayName in one transaction.
func (b *Backend) SaveAccount(displayName string, data *types.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.querier()
	if err != nil {
		return err
	}
	if data == nil {
		return types.ErrInvalidData
	}
	stamp := b.now().UTC()
	data.LastStoredAt = &stamp
	if err := saveAccount(q, b.logger, displayName, data); err != nil {
		return fmt.Errorf("saving account %s: %w", displayName, err)
	}
	return nil
}

// DeleteAccount removes the account and everything it owns.
func (b *Backend) DeleteAccount(displayName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.querier()
	if err != nil {
		return err
	}
	return NewAccountStore(q, b.logger).Delete(displayName)
}

// LoadAccountWideData returns the stored preferences, or defaults if none
// are stored or they cannot be read.
func (b *Backend) LoadAccountWideData() *types.AccountWideData {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		b.logger.Error("loading account-wide data", "error", err)
		return types.NewAccountWideData()
	}
	data, err := NewAccountWideStore(q).Load()
	if err != nil {
		b.logger.Error("loading account-wide data", "error", err)
		return types.NewAccountWideData()
	}
	return data
}

// SaveAccountWideData replaces the stored preferences.
func (b *Backend) SaveAccountWideData(data *types.AccountWideData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.querier()
	if err != nil {
		return err
	}
	return NewAccountWideStore(q).Save(data)
}

// LastModified returns when the account was last saved, or the zero time
// if it never was.
func (b *Backend) LastModified(displayName string) (time.Time, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		return time.Time{}, err
	}
	acc, err := NewAccountStore(q, b.logger).findRow(displayName)
	if errors.Is(err, types.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if acc.LastStoredAt == nil {
		return time.Time{}, nil
	}
	return *acc.LastStoredAt, nil
}

// SchemaVersion returns the applied schema version.
func (b *Backend) SchemaVersion() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		return 0, err
	}
	return currentVersion(q)
}

// DatabasePath returns the path of the open database file.
func (b *Backend) DatabasePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return ""
	}
	return b.db.Path()
}

// LastConversion returns the report of the conversion run by Attach, or nil
// if conversion was skipped.
func (b *Backend) LastConversion() *ConversionReport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conversion
}

// ConversionStatus checks for pending legacy documents without converting.
func (b *Backend) ConversionStatus() (*ConversionReport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, err := b.querier()
	if err != nil {
		return nil, err
	}
	return NewConverter(b.config.DataDir, q, b.logger).Check()
}

// Convert runs the legacy conversion now.
func (b *Backend) Convert() (*ConversionReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, err := b.querier()
	if err != nil {
		return nil, err
	}
	report, err := NewConverter(b.config.DataDir, q, b.logger).Run()
	if err != nil {
		return report, err
	}
	b.conversion = report
	return report, nil
}

// saveAccount writes acc as the complete aggregate for name: the account
// row, every item with its offers, every recipe group with its flips, and
// the slot pointers. Items and groups missing from acc are removed. The
// whole write is one transaction.
func saveAccount(q Querier, logger *slog.Logger, name string, acc *types.Account) error {
	if name == "" {
		return types.ErrInvalidName
	}
	if acc == nil {
		return types.ErrInvalidData
	}
	return withTx(q, func(q Querier) error {
		if err := NewAccountStore(q, logger).InsertOrUpdate(name, acc); err != nil {
			return err
		}

		items := NewItemStore(q)
		keepItems := make(map[int]bool, len(acc.Trades))
		for _, it := range acc.Trades {
			if it == nil {
				continue
			}
			if _, err := items.Upsert(name, it); err != nil {
				return err
			}
			keepItems[it.ItemID] = true
		}
		if _, err := items.DeleteMissing(name, keepItems); err != nil {
			return err
		}

		flips := NewRecipeFlipStore(q, logger)
		keepGroups := make(map[string]bool, len(acc.RecipeFlipGroups))
		for _, g := range acc.RecipeFlipGroups {
			if g == nil {
				continue
			}
			if _, err := flips.InsertGroup(name, g); err != nil {
				return err
			}
			keepGroups[g.RecipeName] = true
		}
		if _, err := flips.DeleteMissingGroups(name, keepGroups); err != nil {
			return err
		}

		return NewAccountStore(q, logger).ReplaceLastOffers(name, acc.LastOffers)
	})
}
