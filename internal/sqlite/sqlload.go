// This file loads versioned migration scripts and splits them into
// executable statements.
package sqlite

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// migrationPattern returns the glob matching the script for version, named
// V<version>__<description>.sql.
func migrationPattern(version int) string {
	return fmt.Sprintf("V%d__*.sql", version)
}

// findMigration returns the file name of the script for version. Exactly one
// script must match.
func findMigration(fsys fs.FS, version int) (string, error) {
	matches, err := fs.Glob(fsys, migrationPattern(version))
	if err != nil {
		return "", fmt.Errorf("listing migrations: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("version %d: %w", version, types.ErrMigrationNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("version %d (%s): %w", version, strings.Join(matches, ", "), types.ErrMigrationAmbiguous)
	}
}

// loadMigration reads and splits the script for version.
func loadMigration(fsys fs.FS, version int) (string, []string, error) {
	name, err := findMigration(fsys, version)
	if err != nil {
		return "", nil, err
	}
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return name, splitStatements(string(content)), nil
}

// splitStatements drops blank lines and "--" comment lines, then cuts the
// remaining text at lines ending in ";". The terminating semicolon is
// removed. Trailing text without a terminator is kept as a final statement.
func splitStatements(content string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
		if stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(strings.TrimRight(line, "\r"))
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()
	return statements
}
