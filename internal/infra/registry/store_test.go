package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitmcp/internal/domain"
)

func openTestStore(t *testing.T, opts StoreOptions) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AddGetRoundTrip(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	ctx := context.Background()

	tool := domain.ToolMetadata{
		Name:        "weather_api",
		Description: "Look up current weather conditions.",
		URI:         "mcp+stdio://python/weather_server.py",
		Category:    "Search",
	}
	require.NoError(t, store.Add(ctx, tool, false))

	got, err := store.Get("weather_api")
	require.NoError(t, err)
	assert.Equal(t, tool.Description, got.Description)
	assert.Equal(t, tool.URI, got.URI)
	assert.NotZero(t, got.Seq)
}

func TestStore_AddDuplicate(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	ctx := context.Background()

	tool := domain.ToolMetadata{Name: "csv_writer", Description: "Export data to CSV files.", URI: "mcp+stdio://node/file-server", Category: "FileOps"}
	require.NoError(t, store.Add(ctx, tool, false))

	err := store.Add(ctx, tool, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicateTool))

	code, ok := domain.CodeFrom(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeAlreadyExists, code)
}

func TestStore_ReplacePreservesSeq(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "a", Description: "first", URI: "mcp://echo/a"}, false))
	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "b", Description: "second", URI: "mcp://echo/b"}, false))

	before, err := store.Get("a")
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "a", Description: "first, updated", URI: "mcp://echo/a"}, true))

	after, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, before.Seq, after.Seq)
	assert.Equal(t, "first, updated", after.Description)
}

func TestStore_RemoveLeavesNoGhosts(t *testing.T) {
	store := openTestStore(t, StoreOptions{Embedder: staticEmbedder{}})
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "gone", Description: "temporary", URI: "mcp://echo/gone"}, false))
	require.NoError(t, store.Remove("gone"))

	_, err := store.Get("gone")
	assert.True(t, errors.Is(err, domain.ErrToolNotFound))

	_, found, err := store.Embedding("gone")
	require.NoError(t, err)
	assert.False(t, found)

	tools, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, tools)

	err = store.Remove("gone")
	assert.True(t, errors.Is(err, domain.ErrToolNotFound))
}

func TestStore_ListInRegistrationOrder(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: name, Description: name, URI: "mcp://echo/" + name}, false))
	}

	tools, err := store.List()
	require.NoError(t, err)
	require.Len(t, tools, 3)
	assert.Equal(t, "zeta", tools[0].Name)
	assert.Equal(t, "alpha", tools[1].Name)
	assert.Equal(t, "mid", tools[2].Name)
}

func TestStore_Categories(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "cal", Description: "calendar", URI: "mcp://echo/cal", Category: "Admin"}, false))
	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "csv", Description: "csv export", URI: "mcp://echo/csv", Category: "FileOps"}, false))
	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "cal2", Description: "scheduling", URI: "mcp://echo/cal2", Category: "Admin"}, false))
	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "uncat", Description: "none", URI: "mcp://echo/uncat"}, false))

	categories, err := store.Categories()
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "FileOps"}, categories)
}

func TestStore_EmbeddingIndexedOnAdd(t *testing.T) {
	store := openTestStore(t, StoreOptions{Embedder: staticEmbedder{}})
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, domain.ToolMetadata{Name: "vec", Description: "vector indexed tool", URI: "mcp://echo/vec"}, false))

	vector, found, err := store.Embedding("vec")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, vector)
}

func TestStore_ClosedStore(t *testing.T) {
	store := openTestStore(t, StoreOptions{})
	require.NoError(t, store.Close())

	err := store.Add(context.Background(), domain.ToolMetadata{Name: "x", Description: "x", URI: "mcp://echo/x"}, false)
	assert.True(t, errors.Is(err, domain.ErrStoreClosed))
}

// staticEmbedder returns a fixed-length vector derived from text length.
type staticEmbedder struct{}

func (staticEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = []float64{float64(len(text)), 1, 0}
	}
	return vectors, nil
}
