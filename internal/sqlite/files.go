// This file provides the file helpers used by legacy conversion: listing
// flat documents, atomic copies for backups, and the completion marker.
package sqlite

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Legacy document naming.
const (
	legacyExt           = ".json"
	legacyBackupSuffix  = ".backup.json"
	legacySpecialSuffix = ".special.json"
	legacyAccountWide   = "accountwide.json"
	legacyTradesFile    = "trades.json"
	conversionMarker    = ".sqlite_migrated"
	backupInfix         = ".pre_sqlite"
)

// isLegacyDocument reports whether name is a flat document awaiting
// conversion. Backups and special files are never converted.
func isLegacyDocument(name string) bool {
	if !strings.HasSuffix(name, legacyExt) {
		return false
	}
	return !strings.HasSuffix(name, legacyBackupSuffix) && !strings.HasSuffix(name, legacySpecialSuffix)
}

// listLegacyDocuments returns the names of the flat documents in dir in
// lexical order. A missing directory has no documents.
func listLegacyDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isLegacyDocument(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFileAtomic writes the contents of r to path using the temp-file,
// fsync, rename pattern, so readers never see a partial file.
func writeFileAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".flipstore-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	if _, err := io.Copy(w, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// copyFileAtomic copies src to dst. dst is replaced only once the copy is
// complete.
func copyFileAtomic(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	return writeFileAtomic(dst, f)
}

// backupPath returns a path in dir for the backup of the document name
// that does not exist yet. The first choice is
// <stem>.pre_sqlite.backup.json; later backups carry stamp and, if needed,
// a counter.
func backupPath(dir, name, stamp string) string {
	stem := strings.TrimSuffix(name, legacyExt)
	candidate := filepath.Join(dir, stem+backupInfix+legacyBackupSuffix)
	if !fileExists(candidate) {
		return candidate
	}
	candidate = filepath.Join(dir, stem+backupInfix+"."+stamp+legacyBackupSuffix)
	for n := 2; fileExists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s%s.%s-%d%s", stem, backupInfix, stamp, n, legacyBackupSuffix))
	}
	return candidate
}

// writeMarker creates the empty completion marker in dir.
func writeMarker(dir string) error {
	return writeFileAtomic(filepath.Join(dir, conversionMarker), strings.NewReader(""))
}
