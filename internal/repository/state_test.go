package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"unscored/internal/config"
	"unscored/internal/models"
	"unscored/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestStateRepository_SaveStateUpsertsInTransaction(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "ingest_states" .* ON CONFLICT \("community"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveState(context.Background(), &models.IngestState{Community: "test", IntervalSeconds: 60, LastPostID: 105})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepository_SaveStateRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewStateRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "ingest_states"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveState(context.Background(), &models.IngestState{Community: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStateRepository_CheckpointsAndBlocks(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewStateRepository(db)
	ctx := context.Background()

	pos, err := repo.Checkpoint(ctx, "backingest")
	require.NoError(t, err)
	assert.Zero(t, pos)

	require.NoError(t, repo.SaveCheckpoint(ctx, "backingest", 10))
	require.NoError(t, repo.SaveCheckpoint(ctx, "backingest", 11))
	pos, err = repo.Checkpoint(ctx, "backingest")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), pos)

	require.NoError(t, repo.BlockAddress(ctx, "10.0.0.1"))
	require.NoError(t, repo.BlockAddress(ctx, "10.0.0.1"))
	require.NoError(t, repo.BlockAddress(ctx, "10.0.0.2"))
	addrs, err := repo.BlockedAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, addrs)

	require.NoError(t, repo.UnblockAddress(ctx, "10.0.0.1"))
	addrs, err = repo.BlockedAddresses(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2"}, addrs)
}

type failingStateRepo struct {
	StateRepository
}

func (failingStateRepo) SaveState(context.Context, *models.IngestState) error {
	return errors.New("write failed")
}

func TestStateRegistry_SeedAndUpdate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewStateRepository(db)
	reg := NewStateRegistry(repo)
	ctx := context.Background()

	require.NoError(t, repo.SaveState(ctx, &models.IngestState{Community: "old", IntervalSeconds: 100, LastPostID: 500}))
	require.NoError(t, reg.Load(ctx))

	err := reg.Seed(ctx, []config.Community{
		{Name: "test", StandaloneDomain: "test.example"},
		{Name: "old", Interval: 30},
	}, 3600, 120)
	require.NoError(t, err)

	assert.Equal(t, []string{"old", "test"}, reg.Names())

	test, ok := reg.Get("test")
	require.True(t, ok)
	assert.Equal(t, 3600.0, test.IntervalSeconds)

	old, _ := reg.Get("old")
	assert.Equal(t, 100.0, old.IntervalSeconds, "existing state wins over config")

	global, ok := reg.Get(models.GlobalStateKey)
	require.True(t, ok)
	assert.Equal(t, uint64(500), global.LastPostID)
	assert.Equal(t, 120.0, global.IntervalSeconds)

	community, ok := reg.CommunityForDomain("test.example")
	require.True(t, ok)
	assert.Equal(t, "test", community)

	require.NoError(t, reg.Update(ctx, "test", func(s *models.IngestState) { s.LastPostID = 105 }))

	reloaded := NewStateRegistry(repo)
	require.NoError(t, reloaded.Load(ctx))
	test, _ = reloaded.Get("test")
	assert.Equal(t, uint64(105), test.LastPostID)
}

func TestStateRegistry_FailedWriteKeepsPreviousState(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewStateRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.SaveState(ctx, &models.IngestState{Community: "test", LastPostID: 100}))

	reg := NewStateRegistry(failingStateRepo{repo})
	require.NoError(t, reg.Load(ctx))

	err := reg.Update(ctx, "test", func(s *models.IngestState) { s.LastPostID = 200 })
	require.Error(t, err)

	s, _ := reg.Get("test")
	assert.Equal(t, uint64(100), s.LastPostID)
	assert.Equal(t, "none", reg.ModlogStatus("test"))
}
