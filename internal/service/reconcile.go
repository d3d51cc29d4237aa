package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/observability"

	"gorm.io/gorm"
)

// CommunityStates exposes the scheduler state the reconciler consults.
type CommunityStates interface {
	DomainDirectory
	Get(name string) (models.IngestState, bool)
}

// ReconcileConfig holds the display and archiving policies of merged views.
type ReconcileConfig struct {
	ShowDeleted      bool
	PurgeDeleted     bool
	ReportingEnabled bool
	IngestMissing    bool
}

// Reconciler merges live platform records with their archived rows into the
// views served to readers, keeping the archive current as a side effect.
type Reconciler struct {
	writer *Writer
	states CommunityStates
	cfg    ReconcileConfig
	now    func() time.Time
}

// NewReconciler returns a Reconciler writing through writer.
func NewReconciler(writer *Writer, states CommunityStates, cfg ReconcileConfig) *Reconciler {
	return &Reconciler{writer: writer, states: states, cfg: cfg, now: time.Now}
}

func linkDomain(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}

// effectiveRemovalSource prefers the live source and falls back to the stored
// one when the platform reports nothing useful.
func effectiveRemovalSource(isRemoved bool, live string, stored *string, archived bool) string {
	if !isRemoved {
		return ""
	}
	source := models.NormalizeRemovalSource(live)
	if archived && (source == "" || source == "deleted") {
		source = models.StringOrEmpty(stored)
	}
	return source
}

// missedByIngestion reports whether an item is older than its community's
// polling interval, meaning a scheduled run should already have archived it.
func (r *Reconciler) missedByIngestion(community string, createdMs int64) bool {
	if !r.cfg.IngestMissing {
		return false
	}
	state, ok := r.states.Get(community)
	if !ok {
		return false
	}
	age := float64(r.now().UnixMilli()-createdMs) / 1000
	return age > state.IntervalSeconds
}

func banInfo(isBanned, isSuspended, isNuked bool, bannedBy, reason *string) models.BanInfo {
	return models.BanInfo{
		IsBanned:    isBanned,
		IsSuspended: isSuspended,
		IsNuked:     isNuked,
		BannedBy:    models.StringOrEmpty(bannedBy),
		BanReason:   models.StringOrEmpty(reason),
	}
}

func moderationInfo(removedAt *int64, removedBy *string, approvedAt *int64, approvedBy *string) models.Moderation {
	return models.Moderation{
		RemovedAt:  models.Int64OrZero(removedAt),
		RemovedBy:  models.StringOrEmpty(removedBy),
		ApprovedAt: models.Int64OrZero(approvedAt),
		ApprovedBy: models.StringOrEmpty(approvedBy),
	}
}

// MergePost builds the view of a live post, using archived when the post was
// archived before.
func (r *Reconciler) MergePost(ctx context.Context, tx *gorm.DB, live models.LivePost, archived *models.ArchivedPost) (*models.PostView, error) {
	var stored *string
	if archived != nil {
		stored = archived.RemovalSource
	}
	source := effectiveRemovalSource(live.IsRemoved, live.RemovalSource, stored, archived != nil)

	if archived != nil {
		if _, err := r.writer.UpdateExistingPost(ctx, tx, &live, &archived.Post); err != nil {
			return nil, err
		}
	}

	created := live.Created
	if created == 0 && archived != nil {
		created = archived.CreatedMs
	}
	view := &models.PostView{
		ItemView: models.ItemView{
			ID:             live.ID,
			UUID:           live.UUID,
			Author:         live.Author,
			Community:      live.Community,
			Created:        created,
			IsAdmin:        live.IsAdmin,
			IsModerator:    live.IsModerator,
			IsRemoved:      live.IsRemoved,
			IsFiltered:     strings.Contains(strings.ToLower(source), "filter"),
			IsDeleted:      live.IsDeleted,
			IsEdited:       live.IsEdited,
			IsLocked:       live.IsLocked,
			IsNSFW:         live.IsNSFW,
			IsImage:        live.IsImage,
			RemovalSource:  source,
			RawContent:     models.NormalizeNewlines(live.RawContent),
			Score:          live.Score,
			ScoreUp:        live.ScoreUp,
			ScoreDown:      live.ScoreDown,
			NormalizedPath: NormalizedPostPath(live.Community, live.UUID),
			URLs:           ContentURLs(r.states, live.Community, live.ID, 0),
		},
		Type:     live.Type,
		Link:     live.Link,
		Domain:   linkDomain(live.Link),
		Preview:  live.Preview,
		Title:    strings.TrimSpace(live.Title),
		Comments: live.Comments,
	}
	if live.Moderation != nil {
		view.Moderation = *live.Moderation
	}

	if archived != nil {
		if live.IsDeleted || (live.IsRemoved && live.Moderation == nil) {
			view.Author = archived.Author
			view.Title = strings.TrimSpace(archived.Title)
			view.RawContent = models.NormalizeNewlines(archived.RawContent)
			view.Type = archived.Type
			view.Link = archived.Link
			view.Domain = linkDomain(archived.Link)
			if view.Preview == "" {
				view.Preview = archived.Preview
			}
		}
		view.Ban = banInfo(archived.IsBanned, archived.IsSuspended, archived.IsNuked, archived.BannedBy, archived.BanReason)
		view.Moderation = moderationInfo(archived.RemovedAtMs, archived.RemovedBy, archived.ApprovedAtMs, archived.ApprovedBy)
		view.Archive = models.ArchiveInfo{
			IsArchived:     true,
			ArchivedAt:     archived.ArchivedAtMs,
			LegalRemoved:   archived.LegalRemoved,
			LegalApproved:  archived.LegalApproved,
			RecoveryMethod: models.StringOrEmpty(archived.RecoveryMethod),
			Reportable: r.cfg.ReportingEnabled &&
				view.Title != "" &&
				!archived.LegalRemoved &&
				!archived.LegalApproved &&
				(view.IsRemoved || view.IsDeleted),
		}
	} else if r.missedByIngestion(live.Community, live.Created) {
		observability.Logger.DebugContext(ctx, "archiving missing post", slog.Uint64("post_id", live.ID))
		result, err := r.writer.UpsertPost(ctx, tx, &live)
		if err != nil {
			return nil, err
		}
		view.Archive.JustAdded = result == WriteInserted
	}

	if archived != nil && archived.LegalRemoved {
		view.Title, view.RawContent, view.Link, view.Preview = "", "", "", ""
	}

	if view.IsDeleted && !view.IsRemoved && !r.cfg.ShowDeleted {
		if r.cfg.PurgeDeleted && archived != nil && archived.RawContent != "" {
			if err := r.writer.PurgePost(ctx, tx, live.ID); err != nil {
				return nil, err
			}
		}
		view.RawContent, view.Link, view.Domain, view.Preview = "", "", "", ""
	}
	return view, nil
}

// MergeComment is the comment counterpart of MergePost.
func (r *Reconciler) MergeComment(ctx context.Context, tx *gorm.DB, live models.LiveComment, archived *models.ArchivedComment) (*models.CommentView, error) {
	var stored *string
	if archived != nil {
		stored = archived.RemovalSource
	}
	source := effectiveRemovalSource(live.IsRemoved, live.RemovalSource, stored, archived != nil)

	if archived != nil {
		if _, err := r.writer.UpdateExistingComment(ctx, tx, &live, &archived.Comment); err != nil {
			return nil, err
		}
	}

	created := live.Created
	if created == 0 && archived != nil {
		created = archived.CreatedMs
	}
	view := &models.CommentView{
		ItemView: models.ItemView{
			ID:             live.ID,
			UUID:           live.UUID,
			Author:         live.Author,
			Community:      live.Community,
			Created:        created,
			IsAdmin:        live.IsAdmin,
			IsModerator:    live.IsModerator,
			IsRemoved:      live.IsRemoved,
			IsFiltered:     strings.Contains(strings.ToLower(source), "filter"),
			IsDeleted:      live.IsDeleted,
			IsEdited:       live.IsEdited,
			RemovalSource:  source,
			RawContent:     models.NormalizeNewlines(live.RawContent),
			Score:          live.Score,
			ScoreUp:        live.ScoreUp,
			ScoreDown:      live.ScoreDown,
			NormalizedPath: NormalizedCommentPath(live.Community, live.ParentUUID, live.UUID),
			URLs:           ContentURLs(r.states, live.Community, live.ParentID, live.ID),
		},
		ParentID:        live.ParentID,
		ParentUUID:      live.ParentUUID,
		PostTitle:       live.PostTitle,
		PostAuthor:      live.PostAuthor,
		CommentParentID: live.CommentParentID,
		ChildIDs:        live.ChildIDs,
	}
	if live.Moderation != nil {
		view.Moderation = *live.Moderation
	}

	if archived != nil {
		if live.IsDeleted || (live.IsRemoved && live.Moderation == nil) {
			view.Author = archived.Author
			view.RawContent = models.NormalizeNewlines(archived.RawContent)
		}
		view.Ban = banInfo(archived.IsBanned, archived.IsSuspended, archived.IsNuked, archived.BannedBy, archived.BanReason)
		view.Moderation = moderationInfo(archived.RemovedAtMs, archived.RemovedBy, archived.ApprovedAtMs, archived.ApprovedBy)
		view.Archive = models.ArchiveInfo{
			IsArchived:     true,
			ArchivedAt:     archived.ArchivedAtMs,
			LegalRemoved:   archived.LegalRemoved,
			LegalApproved:  archived.LegalApproved,
			RecoveryMethod: models.StringOrEmpty(archived.RecoveryMethod),
			Reportable: r.cfg.ReportingEnabled &&
				view.RawContent != "" &&
				!archived.LegalRemoved &&
				!archived.LegalApproved &&
				(view.IsRemoved || view.IsDeleted),
		}
	} else if r.missedByIngestion(live.Community, live.Created) {
		observability.Logger.DebugContext(ctx, "archiving missing comment", slog.Uint64("comment_id", live.ID))
		result, err := r.writer.UpsertComment(ctx, tx, &live)
		if err != nil {
			return nil, err
		}
		view.Archive.JustAdded = result == WriteInserted
	}

	if archived != nil && archived.LegalRemoved {
		view.RawContent = ""
	}

	if view.IsDeleted && !view.IsRemoved && !r.cfg.ShowDeleted {
		if r.cfg.PurgeDeleted && archived != nil && archived.RawContent != "" {
			if err := r.writer.PurgeComment(ctx, tx, live.ID); err != nil {
				return nil, err
			}
		}
		view.RawContent = ""
	}
	return view, nil
}

// SimulatedPost rebuilds a live record from an archived post the platform no
// longer returns. A stored removal source takes precedence over source.
func SimulatedPost(archived *models.ArchivedPost, removed bool, source string) models.LivePost {
	if stored := models.StringOrEmpty(archived.RemovalSource); stored != "" {
		source = stored
	}
	return models.LivePost{
		ID:            archived.ID,
		UUID:          ident.ToUUID(archived.ID),
		Author:        archived.Author,
		Community:     archived.Community,
		Created:       archived.CreatedMs,
		IsRemoved:     removed,
		IsDeleted:     archived.KnownDeleted,
		RemovalSource: source,
		Type:          archived.Type,
		Link:          archived.Link,
		Preview:       archived.Preview,
		Title:         archived.Title,
		RawContent:    archived.RawContent,
	}
}

// SimulatedComment is the comment counterpart of SimulatedPost.
func SimulatedComment(archived *models.ArchivedComment, removed bool, source string) models.LiveComment {
	if stored := models.StringOrEmpty(archived.RemovalSource); stored != "" {
		source = stored
	}
	return models.LiveComment{
		ID:              archived.ID,
		UUID:            ident.ToUUID(archived.ID),
		Author:          archived.Author,
		Community:       archived.Community,
		Created:         archived.CreatedMs,
		IsRemoved:       removed,
		IsDeleted:       archived.KnownDeleted,
		RemovalSource:   source,
		RawContent:      archived.RawContent,
		ParentID:        archived.PostID,
		ParentUUID:      ident.ToUUID(archived.PostID),
		CommentParentID: archived.CommentParentID,
	}
}
