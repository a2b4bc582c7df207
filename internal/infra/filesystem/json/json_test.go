package json

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestWriter_CreateJSONRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "record.json")
	w := NewWriter()

	require.NoError(t, w.CreateJSON(path, record{Name: "first", Value: 1}))

	err := w.CreateJSON(path, record{Name: "second", Value: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	var got record
	require.NoError(t, NewReader().ReadJSON(path, &got))
	assert.Equal(t, record{Name: "first", Value: 1}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestWriter_WriteJSONReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	w := NewWriter()

	require.NoError(t, w.WriteJSON(path, record{Name: "a", Value: 1}))
	require.NoError(t, w.WriteJSON(path, record{Name: "b", Value: 2}))

	var got record
	require.NoError(t, NewReader().ReadJSON(path, &got))
	assert.Equal(t, "b", got.Name)
}

func TestReader_Exists(t *testing.T) {
	dir := t.TempDir()
	r := NewReader()

	ok, err := r.Exists(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.Exists(dir)
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")

	path := filepath.Join(dir, "present.json")
	require.NoError(t, NewWriter().WriteJSON(path, record{}))
	ok, err = r.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriter_RemoveMissingIsNoop(t *testing.T) {
	require.NoError(t, NewWriter().Remove(filepath.Join(t.TempDir(), "nope.json")))
}
