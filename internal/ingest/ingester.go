package ingest

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"unscored/internal/models"
	"unscored/internal/observability"
	"unscored/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// MonitoredModlogActions are the modlog types kept in the archive.
var MonitoredModlogActions = map[string]bool{
	"removepost":      true,
	"approvepost":     true,
	"removecomment":   true,
	"approvecomment":  true,
	"lockpost":        true,
	"unlockpost":      true,
	"ignoreposts":     true,
	"ignorecomments":  true,
	"addmoderator":    true,
	"removemoderator": true,
	"ban":             true,
	"unban":           true,
}

// Platform is the subset of the platform API used by ingestion.
type Platform interface {
	Post(ctx context.Context, id uint64, withComments bool, ttl time.Duration) (*models.Envelope, error)
	NewPosts(ctx context.Context, community, from string, ttl time.Duration) (*models.Envelope, error)
	CommunityComments(ctx context.Context, community string, page int) (*models.Envelope, error)
	Modlogs(ctx context.Context, community string, page int, banLogs bool) (*models.Envelope, error)
	ProbeModlogs(ctx context.Context, community string, banLogs bool) bool
	Communities(ctx context.Context, page int) (*models.Envelope, error)
}

// States is the durable scheduler state.
type States interface {
	Get(name string) (models.IngestState, bool)
	Update(ctx context.Context, name string, fn func(*models.IngestState)) error
	Register(ctx context.Context, state models.IngestState) (bool, error)
	Names() []string
}

// Options bounds the work of one ingestion cycle.
type Options struct {
	RequestLimit       int
	MaxMissingGap      int
	BackingestCooldown time.Duration
	Workers            int
}

// Ingester archives new content of one community per call.
type Ingester struct {
	db        *gorm.DB
	client    Platform
	writer    *service.Writer
	recoverer *service.Recoverer
	states    States
	opts      Options
	now       func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewIngester wires an Ingester. recoverer may be nil to skip scrape recovery.
func NewIngester(db *gorm.DB, client Platform, writer *service.Writer, recoverer *service.Recoverer, states States, opts Options) *Ingester {
	if opts.RequestLimit <= 0 {
		opts.RequestLimit = 10
	}
	return &Ingester{
		db:        db,
		client:    client,
		writer:    writer,
		recoverer: recoverer,
		states:    states,
		opts:      opts,
		now:       time.Now,
		rand:      newRand(),
	}
}

func (in *Ingester) nextInterval(sample CommentSample) time.Duration {
	in.randMu.Lock()
	defer in.randMu.Unlock()
	return NextInterval(sample, in.now(), in.rand)
}

// archivePost stores one post in its own transaction and tries to recover
// the content of removed posts that came back empty. Failures are logged.
func (in *Ingester) archivePost(ctx context.Context, post *models.LivePost) bool {
	var result service.WriteResult
	err := in.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = in.writer.UpsertPost(ctx, tx, post)
		return err
	})
	if err != nil {
		observability.Logger.ErrorContext(ctx, "failed to archive post",
			slog.Uint64("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if result == service.WriteInserted && in.recoverer != nil && service.NeedsRecovery(post.IsRemoved, post.Title, post.RawContent) {
		in.recoverer.RecoverPost(ctx, in.db, post)
	}
	return true
}

func (in *Ingester) archiveComment(ctx context.Context, comment *models.LiveComment) bool {
	var result service.WriteResult
	err := in.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = in.writer.UpsertComment(ctx, tx, comment)
		return err
	})
	if err != nil {
		observability.Logger.ErrorContext(ctx, "failed to archive comment",
			slog.Uint64("comment_id", comment.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if result == service.WriteInserted && in.recoverer != nil && service.NeedsRecovery(comment.IsRemoved, "", comment.RawContent) {
		in.recoverer.RecoverComment(ctx, in.db, comment)
	}
	return true
}

// Step runs one ingestion cycle for community: new posts, new comments and
// the modlog, then recomputes its polling interval. Network failures end a
// stage early and leave its watermark untouched.
func (in *Ingester) Step(ctx context.Context, community string) error {
	ctx = observability.WithCommunity(ctx, community)
	ctx, runID := observability.WithRunID(ctx)
	span, ctx := observability.NewSpan(ctx, "ingest.step",
		attribute.String("community", community),
		attribute.String("run_id", runID),
	)
	defer span.End()

	state, ok := in.states.Get(community)
	if !ok {
		return nil
	}

	if newest, count := in.ingestPosts(ctx, community, state.LastPostID); count > 0 {
		observability.Logger.InfoContext(ctx, "ingested new posts", slog.Int("count", count), slog.Uint64("up_to", newest))
		if err := in.states.Update(ctx, community, func(s *models.IngestState) { s.LastPostID = newest }); err != nil {
			span.SetError(err)
			return err
		}
	} else {
		observability.Logger.DebugContext(ctx, "no new posts")
	}

	newest, count, sample, sampled := in.ingestComments(ctx, community, state.LastCommentID)
	if count > 0 {
		observability.Logger.InfoContext(ctx, "ingested new comments", slog.Int("count", count), slog.Uint64("up_to", newest))
	}
	err := in.states.Update(ctx, community, func(s *models.IngestState) {
		if count > 0 {
			s.LastCommentID = newest
		}
		if sampled {
			s.IntervalSeconds = in.nextInterval(sample).Seconds()
		}
		s.LastIngested = in.now().Unix()
	})
	if err != nil {
		span.SetError(err)
		return err
	}

	if err := in.ingestModlogs(ctx, community); err != nil {
		span.SetError(err)
		return err
	}
	if s, ok := in.states.Get(community); ok {
		observability.IngestInterval.WithLabelValues(community).Set(s.IntervalSeconds)
	}
	return nil
}

// ingestPosts pages the community's new feed back to the stored watermark and
// returns the newest id seen with the number of posts archived.
func (in *Ingester) ingestPosts(ctx context.Context, community string, last uint64) (uint64, int) {
	var newest, previous uint64
	from := ""
	count := 0

	for req := 0; req < in.opts.RequestLimit; req++ {
		env, err := in.client.NewPosts(ctx, community, from, 0)
		if err != nil {
			observability.Logger.WarnContext(ctx, "post page failed", slog.String("error", err.Error()))
			break
		}
		if len(env.Posts) == 0 {
			break
		}
		end := false
		for i := range env.Posts {
			post := &env.Posts[i]
			if post.ID <= last {
				end = true
				break
			}
			if post.ID == previous {
				continue
			}
			if newest == 0 {
				newest = post.ID
			}
			if post.IsDeleted {
				continue
			}
			previous = post.ID
			count++
			if post.Community == "" {
				post.Community = community
			}
			in.archivePost(ctx, post)
		}
		from = env.Posts[len(env.Posts)-1].UUID
		if end || !env.HasMoreEntries {
			break
		}
	}
	return newest, count
}

// ingestComments pages the community's comment listing back to the stored
// watermark. The first page also feeds the interval heuristic; sampled is
// false when it could not be fetched.
func (in *Ingester) ingestComments(ctx context.Context, community string, last uint64) (newest uint64, count int, sample CommentSample, sampled bool) {
	var previous uint64

	for page := 1; page <= in.opts.RequestLimit; page++ {
		env, err := in.client.CommunityComments(ctx, community, page)
		if err != nil {
			observability.Logger.WarnContext(ctx, "comment page failed", slog.String("error", err.Error()))
			break
		}
		if page == 1 {
			sample, sampled = sampleComments(env.Comments), true
		}
		if len(env.Comments) == 0 {
			break
		}
		end := false
		for i := range env.Comments {
			comment := &env.Comments[i]
			if comment.ID <= last {
				end = true
				break
			}
			if comment.ID == previous {
				continue
			}
			if newest == 0 {
				newest = comment.ID
			}
			previous = comment.ID
			count++
			if comment.Community == "" {
				comment.Community = community
			}
			in.archiveComment(ctx, comment)
		}
		if end || !env.HasMoreEntries {
			break
		}
	}
	return newest, count, sample, sampled
}

func sampleComments(comments []models.LiveComment) CommentSample {
	sample := CommentSample{Count: len(comments)}
	for i, c := range comments {
		created := time.UnixMilli(c.Created)
		if i == 0 || created.After(sample.Newest) {
			sample.Newest = created
		}
		if i == 0 || created.Before(sample.Oldest) {
			sample.Oldest = created
		}
	}
	return sample
}

// probeModlogs records once which moderation log the community exposes.
func (in *Ingester) probeModlogs(ctx context.Context, community string) (models.IngestState, error) {
	state, _ := in.states.Get(community)
	if state.Modlogs != nil && state.Banlogs != nil {
		return state, nil
	}
	modlogs, banlogs := state.Modlogs, state.Banlogs
	if modlogs == nil {
		v := in.client.ProbeModlogs(ctx, community, false)
		modlogs = &v
	}
	if banlogs == nil {
		v := in.client.ProbeModlogs(ctx, community, true)
		banlogs = &v
	}
	err := in.states.Update(ctx, community, func(s *models.IngestState) {
		s.Modlogs, s.Banlogs = modlogs, banlogs
	})
	if err != nil {
		return state, err
	}
	observability.Logger.DebugContext(ctx, "modlog state",
		slog.Bool("modlogs", *modlogs),
		slog.Bool("banlogs", *banlogs),
	)
	state, _ = in.states.Get(community)
	return state, nil
}

// ingestModlogs pages the community's modlog back to the stored timestamp and
// archives the monitored records oldest first.
func (in *Ingester) ingestModlogs(ctx context.Context, community string) error {
	state, err := in.probeModlogs(ctx, community)
	if err != nil {
		return err
	}
	var banLogs bool
	switch state.ModlogStatus() {
	case "full":
	case "bans":
		banLogs = true
	default:
		return nil
	}

	last := state.LastModlogTimestamp
	var newest, previous int64
	var records []models.ModlogEntry

	for page := 1; page <= in.opts.RequestLimit; page++ {
		env, err := in.client.Modlogs(ctx, community, page, banLogs)
		if err != nil {
			observability.Logger.WarnContext(ctx, "modlog page failed", slog.String("error", err.Error()))
			break
		}
		if len(env.Logs) == 0 {
			break
		}
		end := false
		for _, record := range env.Logs {
			if record.Created <= last {
				end = true
				break
			}
			if record.Created == previous {
				continue
			}
			if newest == 0 {
				newest = record.Created
			}
			if MonitoredModlogActions[record.Type] {
				previous = record.Created
				records = append(records, record)
			}
		}
		if end {
			break
		}
	}

	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		err := in.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := in.writer.RecordModlog(ctx, tx, community, &record)
			return err
		})
		if err != nil {
			observability.Logger.ErrorContext(ctx, "failed to archive modlog record",
				slog.Int64("created", record.Created),
				slog.String("error", err.Error()),
			)
		}
	}

	if len(records) == 0 {
		observability.Logger.DebugContext(ctx, "no new modlog records")
		return nil
	}
	observability.Logger.InfoContext(ctx, "ingested modlog records", slog.Int("count", len(records)), slog.Int64("up_to", newest))
	return in.states.Update(ctx, community, func(s *models.IngestState) { s.LastModlogTimestamp = newest })
}
