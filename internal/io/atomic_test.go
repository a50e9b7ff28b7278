package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	type doc struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	}
	require.NoError(t, WriteJSONAtomic(path, doc{Name: "generalist", Score: 1.5}))

	var got doc
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "generalist", got.Name)
	assert.Equal(t, 1.5, got.Score)

	// No temp residue next to the final file.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteJSONAtomic_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"v": 1}))
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"v": 2}))

	var got map[string]int
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 2, got["v"])
}

func TestReadJSON_Errors(t *testing.T) {
	dir := t.TempDir()
	var v map[string]int
	assert.Error(t, ReadJSON(filepath.Join(dir, "missing.json"), &v))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0644))
	assert.Error(t, ReadJSON(bad, &v))
}
