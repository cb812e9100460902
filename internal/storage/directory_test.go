package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceDirectory_Verify(t *testing.T) {
	sqliteStore, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "devices.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })
	require.NoError(t, sqliteStore.Init(context.Background()))

	directories := map[string]storage.DeviceDirectory{
		"memory": storage.NewMemoryDirectory(),
		"sqlite": storage.NewSQLiteDirectory(sqliteStore),
	}

	for name, directory := range directories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, directory.Register(ctx, "collar-1", "Test collar", "secret"))

			ok, err := directory.Verify(ctx, "collar-1", "secret")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = directory.Verify(ctx, "collar-1", "wrong")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = directory.Verify(ctx, "collar-2", "secret")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = directory.Verify(ctx, "collar-1", "")
			require.NoError(t, err)
			assert.False(t, ok)

			// Re-registering rotates the key.
			require.NoError(t, directory.Register(ctx, "collar-1", "Test collar", "rotated"))
			ok, err = directory.Verify(ctx, "collar-1", "secret")
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = directory.Verify(ctx, "collar-1", "rotated")
			require.NoError(t, err)
			assert.True(t, ok)

			assert.Error(t, directory.Register(ctx, "", "", "key"))
		})
	}
}
