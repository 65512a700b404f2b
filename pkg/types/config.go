package types

import "errors"

// Config holds backend selection and parameters for TradeStore.Attach.
type Config struct {
	Backend      string `json:"backend" yaml:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DatabaseFile string `json:"database_file" yaml:"database_file"`

	// SkipLegacyConversion disables the one-time flat document conversion
	// that normally runs during Attach.
	SkipLegacyConversion bool `json:"skip_legacy_conversion" yaml:"skip_legacy_conversion"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultDatabaseFile is the database file name used when Config.DatabaseFile
// is empty.
const DefaultDatabaseFile = "flipping.db"

// Config validation errors.
var (
	ErrBackendEmpty     = errors.New("backend must not be empty")
	ErrBackendUnknown   = errors.New("unknown backend")
	ErrDataDirEmpty     = errors.New("data directory must not be empty")
	ErrDatabaseFileName = errors.New("database file must be a bare file name")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	for _, r := range c.DatabaseFile {
		if r == '/' || r == '\\' {
			return ErrDatabaseFileName
		}
	}
	return nil
}

// DatabaseFileName returns DatabaseFile, or DefaultDatabaseFile when unset.
func (c Config) DatabaseFileName() string {
	if c.DatabaseFile == "" {
		return DefaultDatabaseFile
	}
	return c.DatabaseFile
}
