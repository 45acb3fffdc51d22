package history

import (
	"context"
	"database/sql"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndexedStore(t *testing.T) (*Store, *SQLiteIndex) {
	t.Helper()
	index, err := OpenSQLiteIndex(filepath.Join(t.TempDir(), ".index", "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return newTestStore(t, WithProjector(index)), index
}

func TestSQLiteIndexFollowsSaveUpdateDelete(t *testing.T) {
	t.Parallel()

	store, index := newIndexedStore(t)
	ctx := context.Background()

	id, err := store.Save(writeAudio(t), "quarterly licensing review", "", "", map[string]any{"language": "en-US"})
	require.NoError(t, err)

	ids, err := index.Search(ctx, "LICENSING")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	summary := "trademark dispute"
	require.True(t, store.Update(id, Update{Summary: &summary}))
	ids, err = index.Search(ctx, "trademark")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.True(t, store.Delete(id))
	ids, err = index.Search(ctx, "trademark")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStoreSearchUsesProjectionNewestFirst(t *testing.T) {
	t.Parallel()

	store, _ := newIndexedStore(t)
	first, err := store.Save(writeAudio(t), "IP strategy", "", "", nil)
	require.NoError(t, err)
	second, err := store.Save(writeAudio(t), "", "知识产权", "ip follow-up", nil)
	require.NoError(t, err)

	hits, err := store.Search(context.Background(), "ip")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, second, hits[0].ID)
	assert.Equal(t, first, hits[1].ID)

	hits, err = store.Search(context.Background(), "知识产权")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, second, hits[0].ID)

	all, err := store.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReindexRebuildsFromJSONIndex(t *testing.T) {
	t.Parallel()

	store, index := newIndexedStore(t)
	ctx := context.Background()

	_, err := store.Save(writeAudio(t), "alpha", "", "", nil)
	require.NoError(t, err)
	_, err = store.Save(writeAudio(t), "beta", "", "", nil)
	require.NoError(t, err)
	require.NoError(t, index.Reset(ctx))

	ids, err := index.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := store.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	ids, err = index.Search(ctx, "beta")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestSearchFoldsNonASCIIConsistently(t *testing.T) {
	t.Parallel()

	indexed, _ := newIndexedStore(t)
	plain := newTestStore(t)
	for _, store := range []*Store{indexed, plain} {
		_, err := store.Save("", "Réunion à l'ÉCOLE", "", "", nil)
		require.NoError(t, err)
	}

	for name, store := range map[string]*Store{"sqlite": indexed, "scan": plain} {
		hits, err := store.Search(context.Background(), "école")
		require.NoError(t, err, name)
		assert.Len(t, hits, 1, name)
	}
}

func TestSyncProjectionRebuildsOnlyWhenOutOfStep(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "history")
	plain, err := Open(dir, WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)
	id, err := plain.Save("", "written without a projection", "", "", nil)
	require.NoError(t, err)

	index, err := OpenSQLiteIndex(DefaultIndexPath(dir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	store, err := Open(dir, WithLogger(log.New(io.Discard, "", 0)), WithProjector(index))
	require.NoError(t, err)

	ctx := context.Background()
	ids, err := index.Search(ctx, "projection")
	require.NoError(t, err)
	assert.Empty(t, ids)

	rebuilt, err := store.SyncProjection(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	ids, err = index.Search(ctx, "projection")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	rebuilt, err = store.SyncProjection(ctx)
	require.NoError(t, err)
	assert.False(t, rebuilt)
}

func TestOpenSQLiteIndexDropsOutdatedSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "search.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (id TEXT PRIMARY KEY, timestamp TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sessions (id, timestamp) VALUES ('old', '20240101_000000')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	index, err := OpenSQLiteIndex(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	count, err := index.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
