package catalogstore_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fcatalogd/internal/catalogstore"
)

func openTestStore(t *testing.T, n int) (*catalogstore.CatalogStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.sqlite3")

	store, err := catalogstore.Open(context.Background(), path, n, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, path
}

func Test_GetSimilars_Returns_Empty_When_Catalog_Empty(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 16)

	got := store.GetSimilars(context.Background(), []byte{0x01, 0x02, 0x03}, 5)
	assert.Empty(t, got)
}

func Test_GetSimilars_Exact_Match_Wins(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 16)
	ctx := context.Background()

	data := bytes.Repeat([]byte("abcdefgh"), 8)

	require.NoError(t, store.AddFunction(ctx, "foo", "c", data))

	got := store.GetSimilars(ctx, data, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "foo", got[0].FuncName)
	assert.Equal(t, "c", got[0].FuncComment)
	assert.Equal(t, 16, got[0].Grade)
}

func Test_GetSimilars_Ranks_Partial_Match_Below_Exact_Match(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 4)
	ctx := context.Background()

	dataA := []byte("0123456789abcdefAAAA")
	dataB := append([]byte(nil), dataA...)
	dataB[15] ^= 0xff

	require.NoError(t, store.AddFunction(ctx, "A", "", dataA))
	require.NoError(t, store.AddFunction(ctx, "B", "", dataB))

	got := store.GetSimilars(ctx, dataA, 3)
	require.GreaterOrEqual(t, len(got), 1)

	assert.Equal(t, "A", got[0].FuncName)
	assert.Equal(t, 4, got[0].Grade)

	for _, s := range got[1:] {
		assert.Less(t, s.Grade, 4)
	}
}

func Test_AddFunction_Replaces_Prior_Record_With_Same_Hash(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 8)
	ctx := context.Background()

	data := []byte("identical function bytes, replaced by name")

	require.NoError(t, store.AddFunction(ctx, "x", "", data))
	require.NoError(t, store.AddFunction(ctx, "y", "", data))

	names := store.GetFuncNames(ctx)
	assert.Contains(t, names, "y")
	assert.NotContains(t, names, "x")
	assert.Len(t, names, 1)
}

func Test_GetFuncNames_Contains_Name_After_Add(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 8)
	ctx := context.Background()

	require.NoError(t, store.AddFunction(ctx, "sub_1000", "entry point", []byte("aaaaaaaaaaaaaaaa")))

	names := store.GetFuncNames(ctx)
	assert.Contains(t, names, "sub_1000")
}

func Test_AddStructure_Then_GetStruct_Round_Trips_Exact_Bytes(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 8)
	ctx := context.Background()

	dump := []byte{0xde, 0xad, 0xbe, 0xef}

	require.NoError(t, store.AddStructure(ctx, "pixel_t", dump))

	got, err := store.GetStruct(ctx, "pixel_t")
	require.NoError(t, err)
	assert.Equal(t, dump, got)
}

func Test_GetStruct_Returns_ErrNotFound_When_Absent(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 8)

	_, err := store.GetStruct(context.Background(), "nonexistent")
	assert.True(t, errors.Is(err, catalogstore.ErrNotFound))
}

func Test_Batch_Commit_Boundary_Makes_Records_Visible_To_New_Open(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.sqlite3")
	ctx := context.Background()

	store, err := catalogstore.Open(ctx, path, 4, 0)
	require.NoError(t, err)

	const total = catalogstore.DefaultBatchSize + 1

	for i := 0; i < total; i++ {
		name := "func_" + string(rune('a'+i%26)) + string(rune(i))
		data := []byte(name + "_body_at_least_eight_bytes")
		require.NoError(t, store.AddFunction(ctx, name, "", data))
	}

	require.NoError(t, store.Close())

	reopened, err := catalogstore.Open(ctx, path, 4, 0)
	require.NoError(t, err)
	defer reopened.Close()

	names := reopened.GetFuncNames(ctx)
	assert.GreaterOrEqual(t, len(names), catalogstore.DefaultBatchSize)
}

func Test_Open_Returns_ErrNMismatch_When_N_Differs_From_Stored(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.sqlite3")
	ctx := context.Background()

	store, err := catalogstore.Open(ctx, path, 8, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = catalogstore.Open(ctx, path, 16, 0)
	assert.True(t, errors.Is(err, catalogstore.ErrNMismatch))
}

func Test_AddFunction_Returns_ErrInvalidArgument_When_Name_Empty(t *testing.T) {
	t.Parallel()

	store, _ := openTestStore(t, 8)

	err := store.AddFunction(context.Background(), "", "", []byte("12345678"))
	assert.True(t, errors.Is(err, catalogstore.ErrInvalidArgument))
}
