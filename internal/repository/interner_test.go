package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"unscored/internal/models"
	"unscored/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInternerIsCaseInsensitive(t *testing.T) {
	db := testutil.NewTestDB(t)
	in := NewInterner()
	ctx := context.Background()

	id, err := in.BoardID(ctx, db, "Conspiracies")
	require.NoError(t, err)
	require.NotZero(t, id)

	again, err := in.BoardID(ctx, db, "conspiracies")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	var count int64
	require.NoError(t, db.Model(&models.Board{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var board models.Board
	require.NoError(t, db.First(&board, id).Error)
	assert.Equal(t, "Conspiracies", board.Name)
}

func TestInternerLookupDoesNotInsert(t *testing.T) {
	db := testutil.NewTestDB(t)
	in := NewInterner()
	ctx := context.Background()

	id, err := in.LookupAuthorID(ctx, db, "ghost")
	require.NoError(t, err)
	assert.Zero(t, id)

	var count int64
	require.NoError(t, db.Model(&models.Author{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInternerRecoversFromConcurrentInsert(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	// another process inserted the row; this interner has a cold cache
	require.NoError(t, db.Create(&models.Author{Name: "Alice", NameKey: "alice"}).Error)

	in := NewInterner()
	id, err := in.AuthorID(ctx, db, "ALICE")
	require.NoError(t, err)
	assert.NotZero(t, id)
}

func TestInternerConcurrentCallers(t *testing.T) {
	db := testutil.NewTestDB(t)
	in := NewInterner()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]uint64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := in.AuthorID(ctx, db, "bob")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestInternerWarm(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&models.Board{Name: "Test", NameKey: "test"}).Error)

	in := NewInterner()
	require.NoError(t, in.Warm(ctx, db))
	id, ok := in.cached(in.boards, "test")
	assert.True(t, ok)
	assert.NotZero(t, id)
}

func TestInternerForgetsRolledBackInsert(t *testing.T) {
	db := testutil.NewTestDB(t)
	in := NewInterner()
	ctx := context.Background()

	var inserted uint64
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		inserted, err = in.AuthorID(ctx, tx, "carol")
		require.NoError(t, err)
		require.NotZero(t, inserted)

		again, err := in.AuthorID(ctx, tx, "Carol")
		require.NoError(t, err)
		assert.Equal(t, inserted, again)
		return errors.New("abort")
	})
	require.Error(t, err)

	_, ok := in.cached(in.authors, "carol")
	assert.False(t, ok, "rolled back ids stay out of the cache")

	var id uint64
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = in.AuthorID(ctx, tx, "carol")
		return err
	}))
	require.NotZero(t, id)

	var count int64
	require.NoError(t, db.Model(&models.Author{}).Where("id = ?", id).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	found, err := in.LookupAuthorID(ctx, db, "carol")
	require.NoError(t, err)
	assert.Equal(t, id, found)
	cachedID, ok := in.cached(in.authors, "carol")
	assert.True(t, ok, "committed ids are cached once seen outside their transaction")
	assert.Equal(t, id, cachedID)
}
