package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"unscored/internal/models"
	"unscored/internal/repository"
	"unscored/internal/service"
	"unscored/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errUnavailable = errors.New("upstream unavailable")

// fakePlatform serves canned envelopes. Feed pages are keyed by community
// and the uuid passed as from; listing pages by community and page number.
type fakePlatform struct {
	mu sync.Mutex

	feeds       map[string]*models.Envelope
	comments    map[string]*models.Envelope
	modlogs     map[string]*models.Envelope
	posts       map[uint64]*models.Envelope
	communities map[int]*models.Envelope
	probes      map[string]bool

	feedCalls   []string
	postCalls   []uint64
	commentErrs map[string]bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		feeds:       map[string]*models.Envelope{},
		comments:    map[string]*models.Envelope{},
		modlogs:     map[string]*models.Envelope{},
		posts:       map[uint64]*models.Envelope{},
		communities: map[int]*models.Envelope{},
		probes:      map[string]bool{},
		commentErrs: map[string]bool{},
	}
}

func pageKey(community string, page any) string {
	return fmt.Sprintf("%s|%v", community, page)
}

func (f *fakePlatform) Post(_ context.Context, id uint64, _ bool, _ time.Duration) (*models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postCalls = append(f.postCalls, id)
	env, ok := f.posts[id]
	if !ok {
		return nil, errUnavailable
	}
	return env, nil
}

func (f *fakePlatform) NewPosts(_ context.Context, community, from string, _ time.Duration) (*models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedCalls = append(f.feedCalls, pageKey(community, from))
	if env, ok := f.feeds[pageKey(community, from)]; ok {
		return env, nil
	}
	return &models.Envelope{Status: true}, nil
}

func (f *fakePlatform) CommunityComments(_ context.Context, community string, page int) (*models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErrs[community] {
		return nil, errUnavailable
	}
	if env, ok := f.comments[pageKey(community, page)]; ok {
		return env, nil
	}
	return &models.Envelope{Status: true}, nil
}

func (f *fakePlatform) Modlogs(_ context.Context, community string, page int, banLogs bool) (*models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := f.modlogs[pageKey(community, page)]; ok {
		return env, nil
	}
	return &models.Envelope{Status: true}, nil
}

func (f *fakePlatform) ProbeModlogs(_ context.Context, community string, banLogs bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes[pageKey(community, banLogs)]
}

func (f *fakePlatform) Communities(_ context.Context, page int) (*models.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := f.communities[page]; ok {
		return env, nil
	}
	return &models.Envelope{Status: true}, nil
}

func (f *fakePlatform) calledFeed(community string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.feedCalls {
		if key == pageKey(community, "") {
			return true
		}
	}
	return false
}

type ingestFixture struct {
	db       *gorm.DB
	platform *fakePlatform
	states   *repository.StateRegistry
	stateDB  repository.StateRepository
	ingester *Ingester
}

func newIngestFixture(t *testing.T, opts Options, states ...models.IngestState) *ingestFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	stateDB := repository.NewStateRepository(db)
	registry := repository.NewStateRegistry(stateDB)
	for _, s := range states {
		_, err := registry.Register(context.Background(), s)
		require.NoError(t, err)
	}
	platform := newFakePlatform()
	writer := service.NewWriter(repository.NewInterner(), service.WriterConfig{})
	return &ingestFixture{
		db:       db,
		platform: platform,
		states:   registry,
		stateDB:  stateDB,
		ingester: NewIngester(db, platform, writer, nil, registry, opts),
	}
}

func (f *ingestFixture) state(t *testing.T, name string) models.IngestState {
	t.Helper()
	s, ok := f.states.Get(name)
	require.True(t, ok, "state %s", name)
	return s
}

func (f *ingestFixture) postIDs(t *testing.T) []uint64 {
	t.Helper()
	var ids []uint64
	require.NoError(t, f.db.Model(&models.Post{}).Order("id").Pluck("id", &ids).Error)
	return ids
}

func livePosts(community string, ids ...uint64) []models.LivePost {
	posts := make([]models.LivePost, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, testutil.LivePost(id, community, "poster"))
	}
	return posts
}
