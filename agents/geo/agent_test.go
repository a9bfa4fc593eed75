package geo

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sample-scout/agents"
	"sample-scout/config"
)

// newMetaDB legt einen minimalen GEOmetadb-Spiegel als Fixture an.
func newMetaDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "GEOmetadb.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	statements := []string{
		`CREATE TABLE gse (gse TEXT, submission_date TEXT, title TEXT, summary TEXT)`,
		`CREATE TABLE gse_gpl (gse TEXT, gpl TEXT)`,
		`CREATE TABLE gse_gsm (gse TEXT, gsm TEXT)`,
		`CREATE TABLE gsm (gsm TEXT, organism_ch1 TEXT)`,

		`INSERT INTO gse VALUES ('GSE100', '2025-02-01', 'islet transcriptome', 'human pancreatic islets')`,
		`INSERT INTO gse VALUES ('GSE200', '2025-03-01', 'mouse liver', 'murine liver study')`,
		`INSERT INTO gse VALUES ('GSE300', '2019-01-01', 'old islet study', 'archived')`,

		`INSERT INTO gse_gpl VALUES ('GSE100', 'GPL570')`,
		`INSERT INTO gse_gpl VALUES ('GSE200', 'GPL1261')`,

		`INSERT INTO gse_gsm VALUES ('GSE100', 'GSM1')`,
		`INSERT INTO gse_gsm VALUES ('GSE200', 'GSM2')`,
		`INSERT INTO gsm VALUES ('GSM1', 'Homo sapiens')`,
		`INSERT INTO gsm VALUES ('GSM2', 'Mus musculus')`,
	}
	for _, statement := range statements {
		_, err := db.Exec(statement)
		require.NoError(t, err)
	}
	return path
}

func TestCollectFiltersByOrganism(t *testing.T) {
	agent := NewAgent(
		&config.Config{GEOMetaDBPath: newMetaDB(t)},
		agents.Filter{Organism: "homo sapiens", Since: "2025-01-01"},
		zap.NewNop(),
	)

	entries, err := agent.Collect()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "GSE100", entries[0].AccessionCode)
	assert.Equal(t, "microarray-geo", entries[0].Source)
	require.NotNil(t, entries[0].PublishedDate)
	assert.Equal(t, "2025-02-01", entries[0].PublishedDate.Format("2006-01-02"))
}

func TestCollectFiltersByPlatformIDs(t *testing.T) {
	agent := NewAgent(
		&config.Config{GEOMetaDBPath: newMetaDB(t)},
		agents.Filter{IDs: []string{"GPL570", "GPL1261"}},
		zap.NewNop(),
	)

	entries, err := agent.Collect()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCollectFiltersByKeywordAndDateWindow(t *testing.T) {
	agent := NewAgent(
		&config.Config{GEOMetaDBPath: newMetaDB(t)},
		agents.Filter{Keyword: "islet", Since: "2024-01-01", Until: "2025-12-31"},
		zap.NewNop(),
	)

	entries, err := agent.Collect()
	require.NoError(t, err)

	// GSE300 passt zum Keyword, liegt aber vor dem Since-Datum.
	require.Len(t, entries, 1)
	assert.Equal(t, "GSE100", entries[0].AccessionCode)
}
