package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlog/internal/catalog"
	"watchlog/pkg/database"
)

func TestImportCatalog(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	repo := catalog.NewRepo(db)
	ctx := context.Background()

	csv := `ID,Title,Season,Studios,Episodes,Description,Cover_URL
frieren-1,葬送のフリーレン,2023年秋,MADHOUSE,28,,
,missing id,,,,,
kny-1,鬼滅の刃,2019年春,ufotable | ,26,"sword, demons",https://example.com/k.png
`
	n, err := importCatalog(ctx, repo, strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	e, err := repo.GetByID(ctx, "kny-1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{"ufotable"}, e.Studios)
	assert.Equal(t, 26, e.Episodes)
	assert.Equal(t, "sword, demons", e.Description)

	// Re-importing updates in place.
	n, err = importCatalog(ctx, repo, strings.NewReader("id,title,episodes\nkny-1,鬼滅の刃 竈門炭治郎 立志編,26\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e, err = repo.GetByID(ctx, "kny-1")
	require.NoError(t, err)
	assert.Equal(t, "鬼滅の刃 竈門炭治郎 立志編", e.Title)
}

func TestImportCatalog_BadEpisodes(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	_, err = importCatalog(context.Background(), catalog.NewRepo(db), strings.NewReader("id,title,episodes\na,A,twelve\n"))
	assert.ErrorContains(t, err, "parse episodes for a")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitList(" A| |B "))
	assert.Nil(t, splitList(""))
}
