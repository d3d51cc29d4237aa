package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"unscored/internal/config"
	"unscored/internal/models"
	"unscored/internal/observability"
)

// StateRegistry is the in-memory view of every community's scheduler state.
// Changes are persisted before they become visible, so a failed write leaves
// the previous state in place.
type StateRegistry struct {
	mu     sync.RWMutex
	states map[string]*models.IngestState
	repo   StateRepository
}

// NewStateRegistry creates an empty registry backed by repo.
func NewStateRegistry(repo StateRepository) *StateRegistry {
	return &StateRegistry{
		states: make(map[string]*models.IngestState),
		repo:   repo,
	}
}

// Load replaces the in-memory state with the persisted records.
func (r *StateRegistry) Load(ctx context.Context) error {
	states, err := r.repo.LoadStates(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = make(map[string]*models.IngestState, len(states))
	for i := range states {
		s := states[i]
		r.states[s.Community] = &s
	}
	return nil
}

// Seed registers configured communities that have no state yet and makes sure
// the global feed state exists. A new global state starts at the highest
// last_post_id of any community.
func (r *StateRegistry) Seed(ctx context.Context, communities []config.Community, defaultInterval, globalInterval float64) error {
	for _, c := range communities {
		interval := c.Interval
		if interval <= 0 {
			interval = defaultInterval
		}
		created, err := r.Register(ctx, models.IngestState{
			Community:       c.Name,
			Domain:          c.StandaloneDomain,
			IntervalSeconds: interval,
		})
		if err != nil {
			return err
		}
		if !created && c.StandaloneDomain != "" {
			if err := r.Update(ctx, c.Name, func(s *models.IngestState) {
				s.Domain = c.StandaloneDomain
			}); err != nil {
				return err
			}
		}
	}

	var highest uint64
	r.mu.RLock()
	for name, s := range r.states {
		if name != models.GlobalStateKey && s.LastPostID > highest {
			highest = s.LastPostID
		}
	}
	r.mu.RUnlock()

	_, err := r.Register(ctx, models.IngestState{
		Community:       models.GlobalStateKey,
		IntervalSeconds: globalInterval,
		LastPostID:      highest,
	})
	return err
}

// Register persists state when its community is unknown. It reports whether
// the community was added.
func (r *StateRegistry) Register(ctx context.Context, state models.IngestState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[state.Community]; ok {
		return false, nil
	}
	state.UpdatedAt = time.Now()
	if err := r.repo.SaveState(ctx, &state); err != nil {
		return false, err
	}
	r.states[state.Community] = &state
	observability.Logger.InfoContext(ctx, "Registered community for ingestion",
		slog.String("community", state.Community),
		slog.Float64("interval", state.IntervalSeconds),
	)
	return true, nil
}

// Get returns a copy of the named state.
func (r *StateRegistry) Get(name string) (models.IngestState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[name]
	if !ok {
		return models.IngestState{}, false
	}
	return *s, true
}

// Update applies fn to a copy of the named state, persists it and publishes it.
// Unknown communities are ignored.
func (r *StateRegistry) Update(ctx context.Context, name string, fn func(*models.IngestState)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[name]
	if !ok {
		return nil
	}
	next := *cur
	fn(&next)
	next.UpdatedAt = time.Now()
	if err := r.repo.SaveState(ctx, &next); err != nil {
		return err
	}
	r.states[name] = &next
	return nil
}

// Names returns the monitored communities in name order, without the global feed.
func (r *StateRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.states))
	for name := range r.states {
		if name != models.GlobalStateKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// All returns copies of every community state, without the global feed.
func (r *StateRegistry) All() []models.IngestState {
	names := r.Names()
	out := make([]models.IngestState, 0, len(names))
	for _, name := range names {
		if s, ok := r.Get(name); ok {
			out = append(out, s)
		}
	}
	return out
}

// Domain returns the standalone domain of a community, if any.
func (r *StateRegistry) Domain(name string) string {
	s, _ := r.Get(name)
	return s.Domain
}

// CommunityForDomain returns the community served on a standalone domain.
func (r *StateRegistry) CommunityForDomain(domain string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, s := range r.states {
		if s.Domain != "" && s.Domain == domain {
			return name, true
		}
	}
	return "", false
}

// ModlogStatus returns full, bans or none for a community.
func (r *StateRegistry) ModlogStatus(name string) string {
	s, ok := r.Get(name)
	if !ok {
		return "none"
	}
	return s.ModlogStatus()
}

// LastKnownPostID returns the newest post id seen by the global feed.
func (r *StateRegistry) LastKnownPostID() uint64 {
	s, _ := r.Get(models.GlobalStateKey)
	return s.LastPostID
}
