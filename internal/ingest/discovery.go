package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"unscored/internal/models"
	"unscored/internal/observability"

	"github.com/robfig/cron/v3"
)

// maxDiscoveryPages bounds one walk of the community listing.
const maxDiscoveryPages = 500

// Discoverer registers communities listed by the platform for ingestion.
type Discoverer struct {
	client          Platform
	states          States
	defaultInterval float64
	onRegistered    func(name string)
}

// NewDiscoverer returns a Discoverer registering new communities with
// defaultInterval. onRegistered, when set, is called for every new community.
func NewDiscoverer(client Platform, states States, defaultInterval float64, onRegistered func(name string)) *Discoverer {
	return &Discoverer{
		client:          client,
		states:          states,
		defaultInterval: defaultInterval,
		onRegistered:    onRegistered,
	}
}

// Discover walks the community listing. Unknown communities are registered;
// known ones get their listing metadata refreshed and their modlog
// availability probed again on the next run. It returns how many communities
// were added.
func (d *Discoverer) Discover(ctx context.Context) (int, error) {
	added := 0
	for page := 1; page <= maxDiscoveryPages; page++ {
		env, err := d.client.Communities(ctx, page)
		if err != nil {
			if page == 1 {
				return 0, fmt.Errorf("list communities: %w", err)
			}
			observability.Logger.WarnContext(ctx, "community listing stopped early",
				slog.Int("page", page),
				slog.String("error", err.Error()),
			)
			break
		}
		for _, c := range env.Communities {
			if c.Name == "" || c.Name == models.GlobalStateKey {
				continue
			}
			created, err := d.register(ctx, c)
			if err != nil {
				return added, err
			}
			if created {
				added++
				if d.onRegistered != nil {
					d.onRegistered(c.Name)
				}
			}
		}
		if len(env.Communities) == 0 || !env.HasMoreEntries {
			break
		}
	}
	observability.Logger.InfoContext(ctx, "community discovery finished", slog.Int("added", added))
	return added, nil
}

func (d *Discoverer) register(ctx context.Context, c models.LiveCommunity) (bool, error) {
	created, err := d.states.Register(ctx, models.IngestState{
		Community:       c.Name,
		Domain:          c.StandaloneDomain,
		IntervalSeconds: d.defaultInterval,
		Description:     c.Description,
		Visibility:      c.Visibility,
		AppSafe:         c.AppSafe,
	})
	if err != nil || created {
		return created, err
	}
	return false, d.states.Update(ctx, c.Name, func(s *models.IngestState) {
		if c.StandaloneDomain != "" {
			s.Domain = c.StandaloneDomain
		}
		s.Description = c.Description
		s.Visibility = c.Visibility
		s.AppSafe = c.AppSafe
		s.Modlogs, s.Banlogs = nil, nil
	})
}

// ScheduleDiscovery runs Discover on the cron schedule spec until the
// returned stop function is called.
func ScheduleDiscovery(ctx context.Context, d *Discoverer, spec string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := d.Discover(ctx); err != nil {
			observability.Logger.ErrorContext(ctx, "community discovery failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule discovery %q: %w", spec, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
