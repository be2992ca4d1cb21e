package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dom/chess-lobby-client/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestArchive(t *testing.T) *store.Archive {
	t.Helper()
	archive, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	return archive
}

func TestArchiveRecordAndList(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	winner := "u1"
	require.NoError(t, archive.RecordFinished(ctx, "g1", &winner, "checkmate"))
	require.NoError(t, archive.RecordFinished(ctx, "g2", nil, "draw"))

	records, err := archive.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byGame := make(map[string]store.FinishedGame)
	for _, r := range records {
		byGame[r.GameID] = r
	}

	require.NotNil(t, byGame["g1"].WinnerID)
	assert.Equal(t, "u1", *byGame["g1"].WinnerID)
	assert.Equal(t, "checkmate", byGame["g1"].Reason)
	assert.Nil(t, byGame["g2"].WinnerID)
}

func TestArchiveCollapsesDuplicateDelivery(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	winner := "u1"
	require.NoError(t, archive.RecordFinished(ctx, "g1", &winner, "forfeit"))
	require.NoError(t, archive.RecordFinished(ctx, "g1", &winner, "forfeit"))

	records, err := archive.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestArchiveRecentLimit(t *testing.T) {
	archive := openTestArchive(t)
	ctx := context.Background()

	for _, id := range []string{"g1", "g2", "g3"} {
		require.NoError(t, archive.RecordFinished(ctx, id, nil, "draw"))
	}

	records, err := archive.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Non-positive limits fall back to the default
	records, err = archive.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestArchiveSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	first, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, first.RecordFinished(ctx, "g1", nil, "draw"))

	second, err := store.Open(path)
	require.NoError(t, err)

	records, err := second.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
