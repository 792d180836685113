package localstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/pkg/localstore"
)

func TestKV(t *testing.T) {
	stores := map[string]func(t *testing.T) localstore.KV{
		"memory": func(*testing.T) localstore.KV { return localstore.NewMemory() },
		"file": func(t *testing.T) localstore.KV {
			return localstore.NewFile(filepath.Join(t.TempDir(), "nested", "local.json"))
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("Should return not found for a missing key", func(t *testing.T) {
				_, err := newStore(t).Get("favorites")
				assert.ErrorIs(t, err, localstore.ErrNotFound)
			})

			t.Run("Should set, get and delete values", func(t *testing.T) {
				kv := newStore(t)
				require.NoError(t, kv.Set("favorites", []byte(`[{"id":"1"}]`)))
				require.NoError(t, kv.Set("theme", []byte(`"dark"`)))

				got, err := kv.Get("favorites")
				require.NoError(t, err)
				assert.JSONEq(t, `[{"id":"1"}]`, string(got))

				require.NoError(t, kv.Delete("favorites"))
				_, err = kv.Get("favorites")
				assert.ErrorIs(t, err, localstore.ErrNotFound)

				got, err = kv.Get("theme")
				require.NoError(t, err)
				assert.JSONEq(t, `"dark"`, string(got))
			})

			t.Run("Should reject values that are not JSON", func(t *testing.T) {
				assert.Error(t, newStore(t).Set("favorites", []byte("{oops")))
			})
		})
	}

	t.Run("Should persist values across file store instances", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "local.json")
		require.NoError(t, localstore.NewFile(path).Set("favorites", []byte(`[]`)))

		got, err := localstore.NewFile(path).Get("favorites")
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(got))
	})

	t.Run("Should report a corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "local.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		_, err := localstore.NewFile(path).Get("favorites")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, localstore.ErrNotFound)
	})
}
