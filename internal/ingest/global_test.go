package ingest

import (
	"context"
	"testing"

	"unscored/internal/apiclient"
	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globalState(last uint64) models.IngestState {
	return models.IngestState{Community: models.GlobalStateKey, IntervalSeconds: 30, LastPostID: last}
}

func TestMissingIDs(t *testing.T) {
	seen := map[uint64]bool{201: true, 202: true, 205: true, 207: true, 208: true, 210: true}
	assert.Equal(t, []uint64{203, 204, 206, 209}, MissingIDs(200, 210, seen))
	assert.Empty(t, MissingIDs(200, 201, map[uint64]bool{201: true}))
}

func TestStepGlobal_FetchesFeedGaps(t *testing.T) {
	f := newIngestFixture(t, Options{RequestLimit: 10, MaxMissingGap: 100}, globalState(200))
	f.platform.feeds[pageKey(apiclient.GlobalCommunity, "")] = &models.Envelope{
		Status: true, HasMoreEntries: true, Posts: livePosts("test", 210, 208, 207, 205),
	}
	f.platform.feeds[pageKey(apiclient.GlobalCommunity, ident.ToUUID(205))] = &models.Envelope{
		Status: true, HasMoreEntries: true, Posts: livePosts("other", 204, 203, 202, 201, 200),
	}
	f.platform.posts[206] = &models.Envelope{
		Status:   true,
		Posts:    livePosts("test", 206),
		Comments: []models.LiveComment{testutil.LiveComment(900, 206, "", "commenter")},
	}

	require.NoError(t, f.ingester.StepGlobal(context.Background()))

	assert.Equal(t, []uint64{206, 209}, f.platform.postCalls)
	assert.Equal(t, []uint64{201, 202, 203, 204, 205, 206, 207, 208, 210}, f.postIDs(t))

	var comment models.Comment
	require.NoError(t, f.db.First(&comment, 900).Error)
	assert.Equal(t, uint64(206), comment.PostID)
	assert.Equal(t, uint64(210), f.state(t, models.GlobalStateKey).LastPostID)
}

func TestStepGlobal_SkipsOversizedGap(t *testing.T) {
	f := newIngestFixture(t, Options{RequestLimit: 10, MaxMissingGap: 2}, globalState(100))
	f.platform.feeds[pageKey(apiclient.GlobalCommunity, "")] = &models.Envelope{
		Status: true, Posts: livePosts("test", 110, 100),
	}

	require.NoError(t, f.ingester.StepGlobal(context.Background()))

	assert.Empty(t, f.platform.postCalls)
	assert.Equal(t, uint64(110), f.state(t, models.GlobalStateKey).LastPostID)
}

func TestStepGlobal_FirstRunDoesNotBackfill(t *testing.T) {
	f := newIngestFixture(t, Options{RequestLimit: 10, MaxMissingGap: 1000}, globalState(0))
	f.platform.feeds[pageKey(apiclient.GlobalCommunity, "")] = &models.Envelope{
		Status: true, Posts: livePosts("test", 500, 450),
	}

	require.NoError(t, f.ingester.StepGlobal(context.Background()))

	assert.Empty(t, f.platform.postCalls)
	assert.Equal(t, []uint64{450, 500}, f.postIDs(t))
	assert.Equal(t, uint64(500), f.state(t, models.GlobalStateKey).LastPostID)
}

func TestIngestMissingPost_SkipsDeleted(t *testing.T) {
	f := newIngestFixture(t, Options{})
	posts := livePosts("test", 7)
	posts[0].IsDeleted = true
	f.platform.posts[7] = &models.Envelope{Status: true, Posts: posts}

	assert.False(t, f.ingester.IngestMissingPost(context.Background(), 7))
	assert.False(t, f.ingester.IngestMissingPost(context.Background(), 8))
	assert.Empty(t, f.postIDs(t))
}
