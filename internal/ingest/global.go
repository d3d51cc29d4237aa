package ingest

import (
	"context"
	"log/slog"

	"unscored/internal/apiclient"
	"unscored/internal/models"
	"unscored/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// StepGlobal ingests the site-wide new feed, then fetches every post id
// between the stored watermark and the newest id that the feed skipped.
// Gaps wider than MaxMissingGap are logged and abandoned.
func (in *Ingester) StepGlobal(ctx context.Context) error {
	ctx = observability.WithCommunity(ctx, models.GlobalStateKey)
	ctx, runID := observability.WithRunID(ctx)
	span, ctx := observability.NewSpan(ctx, "ingest.global", attribute.String("run_id", runID))
	defer span.End()

	state, ok := in.states.Get(models.GlobalStateKey)
	if !ok {
		return nil
	}
	last := state.LastPostID
	newest, seen := in.ingestGlobalFeed(ctx, last)
	if newest == 0 {
		observability.Logger.DebugContext(ctx, "no new posts on the global feed")
		return nil
	}

	// Every seen id lies in (last, newest], newest included.
	gap := newest - last - uint64(len(seen))
	var missing []uint64
	switch {
	case last == 0:
		// First run: nothing to compare against.
	case in.opts.MaxMissingGap > 0 && gap > uint64(in.opts.MaxMissingGap):
		observability.Logger.WarnContext(ctx, "global feed gap too large, skipping",
			slog.Uint64("missing", gap),
			slog.Uint64("from", last),
			slog.Uint64("to", newest),
		)
	default:
		missing = MissingIDs(last, newest, seen)
		for _, id := range missing {
			in.IngestMissingPost(ctx, id)
		}
	}

	if err := in.states.Update(ctx, models.GlobalStateKey, func(s *models.IngestState) {
		s.LastPostID = newest
		s.LastIngested = in.now().Unix()
	}); err != nil {
		span.SetError(err)
		return err
	}
	observability.Logger.InfoContext(ctx, "ingested global feed",
		slog.Int("seen", len(seen)),
		slog.Int("missing", len(missing)),
		slog.Uint64("up_to", newest),
	)
	return nil
}

// ingestGlobalFeed pages the site-wide feed back to last, archiving every
// non-deleted post. It returns the newest id and every id seen.
func (in *Ingester) ingestGlobalFeed(ctx context.Context, last uint64) (uint64, map[uint64]bool) {
	seen := map[uint64]bool{}
	var newest uint64
	from := ""

	for req := 0; req < in.opts.RequestLimit; req++ {
		env, err := in.client.NewPosts(ctx, apiclient.GlobalCommunity, from, 0)
		if err != nil {
			observability.Logger.WarnContext(ctx, "global feed page failed", slog.String("error", err.Error()))
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
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			if post.ID > newest {
				newest = post.ID
			}
			if !post.IsDeleted {
				in.archivePost(ctx, post)
			}
		}
		from = env.Posts[len(env.Posts)-1].UUID
		if end || !env.HasMoreEntries {
			break
		}
	}
	return newest, seen
}

// MissingIDs lists the ids strictly between last and newest that are not in
// seen, in ascending order.
func MissingIDs(last, newest uint64, seen map[uint64]bool) []uint64 {
	var missing []uint64
	for id := last + 1; id < newest; id++ {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// IngestMissingPost fetches one post with its comments by id and archives
// them. Deleted or unavailable posts are skipped. It reports whether the post
// was archived.
func (in *Ingester) IngestMissingPost(ctx context.Context, id uint64) bool {
	env, err := in.client.Post(ctx, id, true, 0)
	if err != nil {
		observability.Logger.DebugContext(ctx, "missing post unavailable", slog.Uint64("post_id", id), slog.String("error", err.Error()))
		return false
	}
	if len(env.Posts) == 0 || env.Posts[0].IsDeleted {
		return false
	}
	post := &env.Posts[0]
	if !in.archivePost(ctx, post) {
		return false
	}
	for i := range env.Comments {
		comment := &env.Comments[i]
		if comment.Community == "" {
			comment.Community = post.Community
		}
		in.archiveComment(ctx, comment)
	}
	return true
}
