package blob_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/product-catalog/internal/storage/blob"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) *blob.Store {
		t.Helper()
		s, err := blob.NewStore(filepath.Join(t.TempDir(), "uploads"))
		require.NoError(t, err)
		return s
	}

	t.Run("Should put and open a blob", func(t *testing.T) {
		s := newStore(t)

		n, err := s.Put(ctx, "1700000000000-chair.png", strings.NewReader("pixels"), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)

		f, info, err := s.Open("1700000000000-chair.png")
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "pixels", string(data))
		assert.Equal(t, int64(6), info.Size())

		ok, err := s.Exists("1700000000000-chair.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should refuse to overwrite", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Put(ctx, "a.png", strings.NewReader("first"), 0)
		require.NoError(t, err)

		_, err = s.Put(ctx, "a.png", strings.NewReader("second"), 0)
		require.ErrorIs(t, err, blob.ErrExists)

		data, err := os.ReadFile(filepath.Join(s.Dir(), "a.png"))
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("Should enforce the size limit without leaving files", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Put(ctx, "big.png", strings.NewReader("0123456789"), 4)
		require.ErrorIs(t, err, blob.ErrTooLarge)

		entries, err := os.ReadDir(s.Dir())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Should reject names escaping the directory", func(t *testing.T) {
		s := newStore(t)

		for _, name := range []string{"", "..", "../x.png", "a/b.png", `a\b.png`, ".hidden"} {
			_, err := s.Put(ctx, name, strings.NewReader("x"), 0)
			assert.ErrorIs(t, err, blob.ErrInvalidName, name)
		}

		_, _, err := s.Open("../etc/passwd")
		assert.ErrorIs(t, err, blob.ErrInvalidName)
	})

	t.Run("Should report missing blobs", func(t *testing.T) {
		s := newStore(t)

		_, _, err := s.Open("missing.png")
		assert.ErrorIs(t, err, blob.ErrNotFound)

		ok, err := s.Exists("missing.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
