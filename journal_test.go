package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"deepzoom/pyramid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.building")

	j, err := OpenJournal(path, 2)
	require.NoError(t, err)
	j.Record(9, 0, 0)
	j.Record(9, 1, 0)
	j.Record(8, 0, 0)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	// closed journals ignore late records
	j.Record(7, 0, 0)

	id, tiles, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Equal(t, j.ID, id)
	assert.Equal(t, map[string]struct{}{
		"9-0-0": {},
		"9-1-0": {},
		"8-0-0": {},
	}, tiles)
}

func TestJournalCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.building")

	j, err := OpenJournal(path, 1)
	require.NoError(t, err)
	j.Record(0, 0, 0)
	require.NoError(t, j.Commit())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestJournalReplacesStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.building")

	old, err := OpenJournal(path, 1)
	require.NoError(t, err)
	old.Record(3, 2, 1)
	require.NoError(t, old.Close())

	_, tiles, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Contains(t, tiles, "3-2-1")

	j, err := OpenJournal(path, 1)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	id, tiles, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Equal(t, j.ID, id)
	assert.Empty(t, tiles)
}

func TestJournalWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.building")

	j, err := OpenJournal(path, 1)
	require.NoError(t, err)
	require.NoError(t, j.file.Close())
	j.Record(1, 0, 0)

	err = j.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, pyramid.ErrIO), "%v", err)
}
