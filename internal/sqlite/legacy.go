// This file implements the one-time conversion of flat per-account
// documents into the relational store.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ConversionState is the position of an installation in the legacy
// conversion state machine.
type ConversionState int

// Conversion states. NeedsCheck is the initial state; UpToDate and Done are
// terminal.
const (
	ConversionNeedsCheck ConversionState = iota
	ConversionUpToDate
	ConversionNeedsMigration
	ConversionDone
)

func (s ConversionState) String() string {
	switch s {
	case ConversionNeedsCheck:
		return "needs-check"
	case ConversionUpToDate:
		return "up-to-date"
	case ConversionNeedsMigration:
		return "needs-migration"
	case ConversionDone:
		return "done"
	default:
		return fmt.Sprintf("ConversionState(%d)", int(s))
	}
}

// ConversionReport summarizes a conversion run. File lists hold document
// names relative to the data directory.
type ConversionReport struct {
	State ConversionState

	// Pending lists the documents found by the check.
	Pending []string

	Converted      []string
	Skipped        []string
	BackupFailures []string
}

// Converter moves flat documents from a data directory into the database.
type Converter struct {
	dir    string
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewConverter returns a converter for the documents in dir. A nil logger
// uses slog.Default().
func NewConverter(dir string, db *sql.DB, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{dir: dir, db: db, logger: logger, now: time.Now}
}

// Check inspects the data directory without changing anything. It returns
// ConversionUpToDate when the completion marker exists or there are no
// documents, and ConversionNeedsMigration with the pending documents
// otherwise.
func (c *Converter) Check() (*ConversionReport, error) {
	report := &ConversionReport{State: ConversionNeedsCheck}
	if fileExists(filepath.Join(c.dir, conversionMarker)) {
		report.State = ConversionUpToDate
		return report, nil
	}
	pending, err := listLegacyDocuments(c.dir)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		report.State = ConversionUpToDate
		return report, nil
	}
	report.State = ConversionNeedsMigration
	report.Pending = pending
	return report, nil
}

// Run converts every pending document and then writes the completion
// marker. A document that cannot be parsed is skipped. A storage error
// stops the run before the marker is written; every document is converted
// in its own transaction through upserts, so running again after a failure
// converges instead of duplicating rows. Source documents are never
// deleted; each converted document is copied to a backup first.
func (c *Converter) Run() (*ConversionReport, error) {
	report, err := c.Check()
	if err != nil {
		return nil, err
	}
	if report.State != ConversionNeedsMigration {
		return report, nil
	}

	c.logger.Info("converting legacy documents", "dir", c.dir, "count", len(report.Pending))
	for _, name := range report.Pending {
		converted, err := c.convert(name)
		if err != nil {
			return report, fmt.Errorf("converting %s: %w", name, err)
		}
		if !converted {
			report.Skipped = append(report.Skipped, name)
			continue
		}
		report.Converted = append(report.Converted, name)

		if err := c.backup(name); err != nil {
			c.logger.Warn("backing up legacy document", "file", name, "error", err)
			report.BackupFailures = append(report.BackupFailures, name)
		}
	}

	if err := writeMarker(c.dir); err != nil {
		return report, fmt.Errorf("writing conversion marker: %w", err)
	}
	report.State = ConversionDone
	c.logger.Info("legacy conversion complete",
		"converted", len(report.Converted), "skipped", len(report.Skipped))
	return report, nil
}

// convert stores one document. It returns false when the document could
// not be parsed.
func (c *Converter) convert(name string) (bool, error) {
	raw, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		c.logger.Warn("reading legacy document", "file", name, "error", err)
		return false, nil
	}

	if name == legacyAccountWide {
		data, err := decodeLegacyAccountWide(raw)
		if err != nil {
			c.logger.Warn("skipping unparseable legacy document", "file", name, "error", err)
			return false, nil
		}
		c.logger.Debug("converting account-wide data", "file", name)
		return true, NewAccountWideStore(c.db).Save(data)
	}

	displayName := strings.TrimSuffix(name, legacyExt)
	if displayName == "" {
		c.logger.Warn("skipping legacy document without account name", "file", name)
		return false, nil
	}
	acc, err := decodeLegacyAccount(raw)
	if err != nil {
		c.logger.Warn("skipping unparseable legacy document", "file", name, "error", err)
		return false, nil
	}
	c.logger.Debug("converting account", "account", displayName,
		"items", len(acc.Trades), "groups", len(acc.RecipeFlipGroups))
	return true, saveAccount(c.db, c.logger, displayName, acc)
}

func (c *Converter) backup(name string) error {
	stamp := c.now().UTC().Format("20060102T150405")
	dst := backupPath(c.dir, name, stamp)
	if err := copyFileAtomic(filepath.Join(c.dir, name), dst); err != nil {
		return err
	}
	c.logger.Debug("created backup", "file", filepath.Base(dst))
	return nil
}
