package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/mesh-intelligence/flipstore/internal/paths"
	"github.com/mesh-intelligence/flipstore/internal/sqlite"
	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// storeConfig builds the backend config from flags and config.yaml.
func (a *app) storeConfig(skipConversion bool) (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:              types.BackendSQLite,
		DataDir:              dataDir,
		DatabaseFile:         a.config.GetString(cfgKeyDatabaseFile),
		SkipLegacyConversion: skipConversion,
	}, nil
}

// attachBackend resolves the data directory, creates a SQLite backend, and
// attaches it. The caller must defer backend.Detach().
func (a *app) attachBackend(skipConversion bool) (*sqlite.Backend, error) {
	cfg, err := a.storeConfig(skipConversion)
	if err != nil {
		return nil, sysError("%s", err)
	}
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError("attach store: %s", err)
	}
	return backend, nil
}

// requireAccount returns a user error when name is not a stored account.
func requireAccount(backend *sqlite.Backend, name string) error {
	names, err := backend.AccountNames()
	if err != nil {
		return sysError("list accounts: %s", err)
	}
	if !slices.Contains(names, name) {
		return userError("account %q not found", name)
	}
	return nil
}

// printJSON writes v as indented JSON followed by a newline.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return sysError("encode json: %s", err)
	}
	return nil
}
