package sqlite

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "single statement",
			content: "CREATE TABLE a (id INTEGER);\n",
			want:    []string{"CREATE TABLE a (id INTEGER)"},
		},
		{
			name: "comments and blank lines dropped",
			content: `-- header

CREATE TABLE a (
    id INTEGER -- trailing text stays
);
  -- indented comment
CREATE INDEX idx_a ON a(id);`,
			want: []string{
				"CREATE TABLE a (\n    id INTEGER -- trailing text stays\n)",
				"CREATE INDEX idx_a ON a(id)",
			},
		},
		{
			name:    "unterminated tail kept",
			content: "CREATE TABLE a (id INTEGER);\nCREATE TABLE b (id INTEGER)",
			want:    []string{"CREATE TABLE a (id INTEGER)", "CREATE TABLE b (id INTEGER)"},
		},
		{
			name:    "windows line endings",
			content: "CREATE TABLE a (id INTEGER);\r\nCREATE TABLE b (id INTEGER);\r\n",
			want:    []string{"CREATE TABLE a (id INTEGER)", "CREATE TABLE b (id INTEGER)"},
		},
		{
			name:    "only comments",
			content: "-- nothing here\n\n",
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitStatements(tt.content))
		})
	}
}

func TestLoadMigration(t *testing.T) {
	fsys := fstest.MapFS{
		"V1__initial.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"V2__first.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
		"V2__second.sql":  {Data: []byte("CREATE TABLE c (id INTEGER);")},
		"V10__later.sql":  {Data: []byte("CREATE TABLE d (id INTEGER);")},
		"notes_V3__x.txt": {Data: []byte("ignored")},
	}

	name, stmts, err := loadMigration(fsys, 1)
	require.NoError(t, err)
	assert.Equal(t, "V1__initial.sql", name)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)"}, stmts)

	_, _, err = loadMigration(fsys, 2)
	assert.ErrorIs(t, err, types.ErrMigrationAmbiguous)

	_, _, err = loadMigration(fsys, 3)
	assert.ErrorIs(t, err, types.ErrMigrationNotFound)

	name, _, err = loadMigration(fsys, 10)
	require.NoError(t, err)
	assert.Equal(t, "V10__later.sql", name)
}

func TestEmbeddedMigrationsCoverEveryVersion(t *testing.T) {
	m := NewMigrator(nil, nil)
	for v := 1; v <= CurrentSchemaVersion; v++ {
		_, stmts, err := loadMigration(m.scripts, v)
		require.NoError(t, err, "version %d", v)
		assert.NotEmpty(t, stmts, "version %d", v)
	}
}
