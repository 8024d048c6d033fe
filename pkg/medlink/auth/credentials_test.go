package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
)

func exerciseStore(t *testing.T, store CredentialStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	rec := &Record{
		Credential: "tok-1",
		Identity:   Identity{UserID: "d1", Name: "Dr Grey", Role: api.RoleDoctor},
		StoredAt:   time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, rec))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Credential, loaded.Credential)
	assert.Equal(t, rec.Identity, loaded.Identity)
	assert.True(t, rec.StoredAt.Equal(loaded.StoredAt))

	// overwrite
	rec.Credential = "tok-2"
	require.NoError(t, store.Save(ctx, rec))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", loaded.Credential)

	require.NoError(t, store.Clear(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// clearing twice is fine
	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Close())
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	exerciseStore(t, store)
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), &Record{Credential: "tok"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), CredentialKey)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)

	exerciseStore(t, store)
}

func TestNewCredentialStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewCredentialStore(StoreFile, filepath.Join(dir, "s.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewCredentialStore(StoreSQLite, filepath.Join(dir, "s.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, store)
	require.NoError(t, store.Close())

	store, err = NewCredentialStore(StoreMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewCredentialStore("redis", "")
	assert.Error(t, err)
}
