package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"unscored/internal/models"
	"unscored/internal/repository"
	"unscored/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeStates struct {
	states map[string]models.IngestState
	lastID uint64
}

func newFakeStates(states ...models.IngestState) *fakeStates {
	f := &fakeStates{states: map[string]models.IngestState{}}
	for _, s := range states {
		f.states[s.Community] = s
	}
	return f
}

func (f *fakeStates) Get(name string) (models.IngestState, bool) {
	s, ok := f.states[name]
	return s, ok
}

func (f *fakeStates) Domain(name string) string {
	return f.states[name].Domain
}

func (f *fakeStates) CommunityForDomain(domain string) (string, bool) {
	for name, s := range f.states {
		if s.Domain != "" && s.Domain == domain {
			return name, true
		}
	}
	return "", false
}

func (f *fakeStates) ModlogStatus(name string) string {
	s, ok := f.states[name]
	if !ok {
		return "none"
	}
	return s.ModlogStatus()
}

func (f *fakeStates) LastKnownPostID() uint64 { return f.lastID }

func (f *fakeStates) All() []models.IngestState {
	out := make([]models.IngestState, 0, len(f.states))
	for _, s := range f.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Community < out[j].Community })
	return out
}

type serviceFixture struct {
	db         *gorm.DB
	interner   *repository.Interner
	archive    repository.ArchiveRepository
	states     *fakeStates
	writer     *Writer
	reconciler *Reconciler
}

func newServiceFixture(t *testing.T, wcfg WriterConfig, rcfg ReconcileConfig) *serviceFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	interner := repository.NewInterner()
	states := newFakeStates(models.IngestState{Community: "test", IntervalSeconds: 60})
	writer := NewWriter(interner, wcfg)
	return &serviceFixture{
		db:         db,
		interner:   interner,
		archive:    repository.NewArchiveRepository(db),
		states:     states,
		writer:     writer,
		reconciler: NewReconciler(writer, states, rcfg),
	}
}

func (f *serviceFixture) tx(t *testing.T, fn func(tx *gorm.DB) error) {
	t.Helper()
	require.NoError(t, f.db.Transaction(fn))
}

func (f *serviceFixture) archivePost(t *testing.T, p models.LivePost) {
	t.Helper()
	f.tx(t, func(tx *gorm.DB) error {
		_, err := f.writer.UpsertPost(context.Background(), tx, &p)
		return err
	})
}

func (f *serviceFixture) archiveComment(t *testing.T, c models.LiveComment) {
	t.Helper()
	f.tx(t, func(tx *gorm.DB) error {
		_, err := f.writer.UpsertComment(context.Background(), tx, &c)
		return err
	})
}

func (f *serviceFixture) post(t *testing.T, id uint64) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, f.db.First(&p, id).Error)
	return &p
}

func (f *serviceFixture) comment(t *testing.T, id uint64) *models.Comment {
	t.Helper()
	var c models.Comment
	require.NoError(t, f.db.First(&c, id).Error)
	return &c
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}
