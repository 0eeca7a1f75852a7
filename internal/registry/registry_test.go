package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fcatalogd/internal/registry"
)

func Test_ValidateName_Rejects_Path_Separators_And_Leading_Dots(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		valid bool
	}{
		{name: "my_catalog", valid: true},
		{name: "my-catalog-2", valid: true},
		{name: "../escape", valid: false},
		{name: "a/b", valid: false},
		{name: ".hidden", valid: false},
		{name: "", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := registry.ValidateName(tc.name)

			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, registry.ErrInvalidName))
			}
		})
	}
}

func Test_Choose_Opens_Store_On_First_Reference_And_Reuses_It(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)

	storeA, err := reg.Choose(context.Background(), "k")
	require.NoError(t, err)

	storeB, err := reg.Choose(context.Background(), "k")
	require.NoError(t, err)

	assert.Same(t, storeA, storeB)

	require.NoError(t, reg.CloseAll())
}

func Test_Choose_Returns_Error_For_Invalid_Name(t *testing.T) {
	t.Parallel()

	reg := registry.New(t.TempDir(), 8, 0)

	_, err := reg.Choose(context.Background(), "../escape")
	assert.True(t, errors.Is(err, registry.ErrInvalidName))
}

func Test_Choose_Writes_Manifest_Entry_Readable_Via_ReadManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	reg := registry.New(root, 8, 0)

	_, err := reg.Choose(context.Background(), "k")
	require.NoError(t, err)

	t.Cleanup(func() { _ = reg.CloseAll() })

	entries, err := registry.ReadManifest(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "k", entries[0].Name)
	assert.Equal(t, 8, entries[0].N)
}
