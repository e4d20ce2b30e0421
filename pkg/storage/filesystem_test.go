package storage

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	n, err := store.SaveStream("term-sheet-0a1b2c3d.pdf", strings.NewReader("%PDF-1.4"), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	f, err := store.Open("term-sheet-0a1b2c3d.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, store.Delete("term-sheet-0a1b2c3d.pdf"))
	_, err = store.Stat("term-sheet-0a1b2c3d.pdf")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalStorageEnforcesLimitAndNames(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("big.pdf", strings.NewReader("0123456789"), 4)
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = store.Stat("big.pdf")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = store.SaveStream("../escape.pdf", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = store.Open("")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.SaveStream("old.pdf", strings.NewReader("x"), 0)
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(-time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.pdf"}, deleted)
}
