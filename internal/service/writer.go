// Package service implements the archive writer, reconciliation of live and
// archived content and the read paths built on them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"unscored/internal/database"
	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/observability"
	"unscored/internal/repository"

	"gorm.io/gorm"
)

// WriteResult reports what an archive write did.
type WriteResult string

const (
	WriteInserted  WriteResult = "inserted"
	WriteUpdated   WriteResult = "updated"
	WriteUnchanged WriteResult = "unchanged"
	WriteDuplicate WriteResult = "duplicate"
)

// Content kinds used by removal requests and recovery.
const (
	KindPost    = "post"
	KindComment = "comment"
)

// Modlog types that write through to archived items or the ban projection.
const (
	ModlogBan            = "ban"
	ModlogUnban          = "unban"
	ModlogApprovePost    = "approvepost"
	ModlogApproveComment = "approvecomment"
	ModlogRemovePost     = "removepost"
	ModlogRemoveComment  = "removecomment"
)

// NukedActor is the moderator name the platform reports for purge removals.
const NukedActor = "Nuked"

const (
	modlogDescriptionLimit = 200
	recoveryMethodLog      = "log"
	recoveryMethodScrape   = "scrape"
)

// WriterConfig holds the archive policies the writer applies.
type WriterConfig struct {
	PurgeDeleted     bool
	ReportingEnabled bool
}

// Writer persists live platform records into the archive. Every method runs
// on the caller's transaction so that reconciliation and ingestion can batch
// writes atomically.
type Writer struct {
	interner *repository.Interner
	cfg      WriterConfig
	now      func() time.Time
}

// NewWriter returns a Writer using interner for board and author ids.
func NewWriter(interner *repository.Interner, cfg WriterConfig) *Writer {
	return &Writer{interner: interner, cfg: cfg, now: time.Now}
}

func (w *Writer) nowMs() int64 {
	return w.now().UnixMilli()
}

func recordWrite(kind string, result WriteResult) {
	observability.ArchivedItems.WithLabelValues(kind, string(result)).Inc()
}

// removalSourceForInsert returns the stored removal source of a new item.
// Only removed items carry one; an author deletion is recorded as unknown.
// A removal without a reported source stays NULL.
func removalSourceForInsert(isRemoved bool, source string) *string {
	if !isRemoved {
		return nil
	}
	source = models.NormalizeRemovalSource(source)
	if source == "deleted" {
		source = "unknown"
	}
	return models.NullableString(source)
}

// insertRow inserts row inside a savepoint so a duplicate key leaves the
// caller's transaction usable.
func insertRow(ctx context.Context, tx *gorm.DB, row any) (bool, error) {
	err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(row).Error
	})
	if err == nil {
		return true, nil
	}
	if database.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

// findRow loads the row with id into a fresh value of T, or returns nil.
func findRow[T any](ctx context.Context, tx *gorm.DB, id uint64) (*T, error) {
	var rows []T
	if err := tx.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpsertPost archives a post. An already archived post is updated with the
// new moderation data and any content it was missing.
func (w *Writer) UpsertPost(ctx context.Context, tx *gorm.DB, post *models.LivePost) (WriteResult, error) {
	existing, err := findRow[models.Post](ctx, tx, post.ID)
	if err != nil {
		return "", fmt.Errorf("load post %d: %w", post.ID, err)
	}
	if existing != nil {
		return w.UpdateExistingPost(ctx, tx, post, existing)
	}

	boardID, err := w.interner.BoardID(ctx, tx, post.Community)
	if err != nil {
		return "", err
	}
	authorID, err := w.interner.AuthorID(ctx, tx, post.Author)
	if err != nil {
		return "", err
	}

	row := models.Post{
		ID:            post.ID,
		BoardID:       boardID,
		AuthorID:      authorID,
		Type:          post.Type,
		Link:          post.Link,
		Preview:       post.Preview,
		Title:         post.Title,
		RawContent:    models.NormalizeNewlines(post.RawContent),
		CreatedMs:     post.Created,
		KnownDeleted:  post.IsDeleted,
		RemovalSource: removalSourceForInsert(post.IsRemoved, post.RemovalSource),
		ArchivedAtMs:  w.nowMs(),
	}
	if m := post.Moderation; m != nil {
		row.RemovedBy = models.NullableString(m.RemovedBy)
		row.RemovedAtMs = models.NullableInt64(m.RemovedAt)
		row.ApprovedBy = models.NullableString(m.ApprovedBy)
		row.ApprovedAtMs = models.NullableInt64(m.ApprovedAt)
	}

	defer observability.TrackQuery("insert", "posts")()
	inserted, err := insertRow(ctx, tx, &row)
	if err != nil {
		recordWrite(KindPost, "failed")
		return "", fmt.Errorf("insert post %d: %w", post.ID, err)
	}
	if !inserted {
		// Another writer inserted it first.
		observability.Logger.WarnContext(ctx, "post already archived", slog.Uint64("post_id", post.ID))
		recordWrite(KindPost, WriteDuplicate)
		if existing, err = findRow[models.Post](ctx, tx, post.ID); err != nil || existing == nil {
			return WriteDuplicate, err
		}
		return w.UpdateExistingPost(ctx, tx, post, existing)
	}
	recordWrite(KindPost, WriteInserted)
	return WriteInserted, nil
}

// itemUpdate collects the column changes shared by posts and comments.
type itemUpdate map[string]any

func (u itemUpdate) removalSource(isRemoved bool, liveSource string, stored *string) {
	if !isRemoved {
		if stored != nil {
			u["removal_source"] = nil
		}
		return
	}
	source := models.NormalizeRemovalSource(liveSource)
	if source == "" || source == "deleted" {
		return
	}
	if stored == nil || *stored != source {
		u["removal_source"] = source
	}
}

// moderation adopts moderator attribution without regressing known values.
// An automated purge never replaces a named moderator.
func (u itemUpdate) moderation(m *models.Moderation, removedBy, approvedBy *string) {
	if m == nil {
		return
	}
	if adoptModerator(m.RemovedBy, removedBy) {
		u["removed_by"] = m.RemovedBy
		u["removed_at_ms"] = models.NullableInt64(m.RemovedAt)
	}
	if adoptModerator(m.ApprovedBy, approvedBy) {
		u["approved_by"] = m.ApprovedBy
		u["approved_at_ms"] = models.NullableInt64(m.ApprovedAt)
	}
}

func adoptModerator(live string, stored *string) bool {
	if live == "" {
		return false
	}
	if stored == nil || *stored == "" {
		return true
	}
	return *stored != live && live != NukedActor
}

func (u itemUpdate) backfill(column, stored, live string) {
	if stored == "" && live != "" {
		u[column] = live
	}
}

func applyUpdate(ctx context.Context, tx *gorm.DB, model any, id uint64, u itemUpdate) (WriteResult, error) {
	if len(u) == 0 {
		return WriteUnchanged, nil
	}
	if err := tx.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]any(u)).Error; err != nil {
		return "", err
	}
	return WriteUpdated, nil
}

// UpdateExistingPost folds new information from a live post into its archived
// row. Stored content is only ever filled in, never overwritten.
func (w *Writer) UpdateExistingPost(ctx context.Context, tx *gorm.DB, post *models.LivePost, existing *models.Post) (WriteResult, error) {
	u := itemUpdate{}
	u.removalSource(post.IsRemoved, post.RemovalSource, existing.RemovalSource)
	u.moderation(post.Moderation, existing.RemovedBy, existing.ApprovedBy)
	u.backfill("raw_content", existing.RawContent, models.NormalizeNewlines(post.RawContent))
	u.backfill("title", existing.Title, post.Title)
	u.backfill("link", existing.Link, post.Link)

	defer observability.TrackQuery("update", "posts")()
	result, err := applyUpdate(ctx, tx, &models.Post{}, existing.ID, u)
	if err != nil {
		recordWrite(KindPost, "failed")
		return "", fmt.Errorf("update post %d: %w", existing.ID, err)
	}
	if result == WriteUpdated {
		recordWrite(KindPost, result)
	}
	return result, nil
}

// UpsertComment archives a comment, updating it when already archived.
func (w *Writer) UpsertComment(ctx context.Context, tx *gorm.DB, comment *models.LiveComment) (WriteResult, error) {
	existing, err := findRow[models.Comment](ctx, tx, comment.ID)
	if err != nil {
		return "", fmt.Errorf("load comment %d: %w", comment.ID, err)
	}
	if existing != nil {
		return w.UpdateExistingComment(ctx, tx, comment, existing)
	}

	boardID, err := w.interner.BoardID(ctx, tx, comment.Community)
	if err != nil {
		return "", err
	}
	authorID, err := w.interner.AuthorID(ctx, tx, comment.Author)
	if err != nil {
		return "", err
	}

	row := models.Comment{
		ID:              comment.ID,
		BoardID:         boardID,
		AuthorID:        authorID,
		PostID:          comment.ParentID,
		CommentParentID: comment.CommentParentID,
		RawContent:      models.NormalizeNewlines(comment.RawContent),
		CreatedMs:       comment.Created,
		KnownDeleted:    comment.IsDeleted,
		RemovalSource:   removalSourceForInsert(comment.IsRemoved, comment.RemovalSource),
		ArchivedAtMs:    w.nowMs(),
	}
	if m := comment.Moderation; m != nil {
		row.RemovedBy = models.NullableString(m.RemovedBy)
		row.RemovedAtMs = models.NullableInt64(m.RemovedAt)
		row.ApprovedBy = models.NullableString(m.ApprovedBy)
		row.ApprovedAtMs = models.NullableInt64(m.ApprovedAt)
	}

	defer observability.TrackQuery("insert", "comments")()
	inserted, err := insertRow(ctx, tx, &row)
	if err != nil {
		recordWrite(KindComment, "failed")
		return "", fmt.Errorf("insert comment %d: %w", comment.ID, err)
	}
	if !inserted {
		observability.Logger.WarnContext(ctx, "comment already archived", slog.Uint64("comment_id", comment.ID))
		recordWrite(KindComment, WriteDuplicate)
		if existing, err = findRow[models.Comment](ctx, tx, comment.ID); err != nil || existing == nil {
			return WriteDuplicate, err
		}
		return w.UpdateExistingComment(ctx, tx, comment, existing)
	}
	recordWrite(KindComment, WriteInserted)
	return WriteInserted, nil
}

// UpdateExistingComment is the comment counterpart of UpdateExistingPost. The
// tree position is also refreshed, since the platform can reveal it late.
func (w *Writer) UpdateExistingComment(ctx context.Context, tx *gorm.DB, comment *models.LiveComment, existing *models.Comment) (WriteResult, error) {
	u := itemUpdate{}
	u.removalSource(comment.IsRemoved, comment.RemovalSource, existing.RemovalSource)
	u.moderation(comment.Moderation, existing.RemovedBy, existing.ApprovedBy)
	u.backfill("raw_content", existing.RawContent, models.NormalizeNewlines(comment.RawContent))
	if comment.CommentParentID != 0 && comment.CommentParentID != existing.CommentParentID {
		u["comment_parent_id"] = comment.CommentParentID
	}

	defer observability.TrackQuery("update", "comments")()
	result, err := applyUpdate(ctx, tx, &models.Comment{}, existing.ID, u)
	if err != nil {
		recordWrite(KindComment, "failed")
		return "", fmt.Errorf("update comment %d: %w", existing.ID, err)
	}
	if result == WriteUpdated {
		recordWrite(KindComment, result)
	}
	return result, nil
}

// RecordModlog archives a modlog entry of community and applies its side
// effects: the ban projection for ban and unban entries, moderator stamps for
// approvals and removals, and content recovery for removed comments.
func (w *Writer) RecordModlog(ctx context.Context, tx *gorm.DB, community string, entry *models.ModlogEntry) (WriteResult, error) {
	boardID, err := w.interner.BoardID(ctx, tx, community)
	if err != nil {
		return "", err
	}
	moderatorID, err := w.interner.AuthorID(ctx, tx, entry.Moderator)
	if err != nil {
		return "", err
	}
	targetID, err := w.interner.AuthorID(ctx, tx, entry.Target)
	if err != nil {
		return "", err
	}

	row := models.ModlogRecord{
		BoardID:     boardID,
		CreatedMs:   entry.Created,
		ModeratorID: moderatorID,
		TargetID:    targetID,
		Type:        entry.Type,
		Description: entry.Description,
		PostID:      models.NullableUint64(entry.PostID),
		CommentID:   models.NullableUint64(entry.CommentID),
	}

	inserted, err := insertRow(ctx, tx, &row)
	if err != nil {
		recordWrite("modlog", "failed")
		return "", fmt.Errorf("insert modlog %s/%d: %w", community, entry.Created, err)
	}
	if !inserted {
		observability.Logger.WarnContext(ctx, "modlog entry already archived",
			slog.String("community", community),
			slog.Int64("created", entry.Created),
		)
		recordWrite("modlog", WriteDuplicate)
		return WriteDuplicate, nil
	}
	recordWrite("modlog", WriteInserted)

	db := tx.WithContext(ctx)
	switch entry.Type {
	case ModlogBan, ModlogUnban:
		err = w.recordBan(ctx, tx, boardID, moderatorID, targetID, entry)
	case ModlogApprovePost:
		err = db.Model(&models.Post{}).Where("id = ?", entry.PostID).
			Updates(map[string]any{"approved_at_ms": entry.Created, "approved_by": entry.Moderator}).Error
	case ModlogApproveComment:
		err = db.Model(&models.Comment{}).Where("id = ?", entry.CommentID).
			Updates(map[string]any{"approved_at_ms": entry.Created, "approved_by": entry.Moderator}).Error
	case ModlogRemovePost:
		err = db.Model(&models.Post{}).Where("id = ?", entry.PostID).
			Updates(map[string]any{"removed_at_ms": entry.Created, "removed_by": entry.Moderator}).Error
	case ModlogRemoveComment:
		err = db.Model(&models.Comment{}).Where("id = ?", entry.CommentID).
			Updates(map[string]any{"removed_at_ms": entry.Created, "removed_by": entry.Moderator}).Error
		if err == nil {
			err = db.Model(&models.Comment{}).Where("id = ? AND raw_content = ?", entry.CommentID, "").
				Updates(map[string]any{
					"raw_content":     recoveredDescription(entry.Description),
					"recovery_method": recoveryMethodLog,
				}).Error
		}
	}
	if err != nil {
		return "", fmt.Errorf("apply modlog %s: %w", entry.Type, err)
	}
	return WriteInserted, nil
}

// recoveredDescription marks descriptions the platform truncated.
func recoveredDescription(desc string) string {
	if utf8.RuneCountInString(desc) >= modlogDescriptionLimit {
		return desc + "..."
	}
	return desc
}

func (w *Writer) recordBan(ctx context.Context, tx *gorm.DB, boardID, moderatorID, targetID uint64, entry *models.ModlogEntry) error {
	parsed := ParseBanDescription(entry.Description)
	banned := entry.Type == ModlogBan
	db := tx.WithContext(ctx)

	var bans []models.KnownBan
	if err := db.Where("board_id = ? AND target_id = ?", boardID, targetID).Limit(1).Find(&bans).Error; err != nil {
		return err
	}

	if len(bans) == 0 {
		ban := models.KnownBan{
			BoardID:     boardID,
			TargetID:    targetID,
			ModeratorID: moderatorID,
			Permabanned: banned && parsed.Permanent,
			Reason:      parsed.Reason,
		}
		if banned && parsed.Nuke {
			ban.NukedAtMs = entry.Created
		}
		return db.Create(&ban).Error
	}

	current := bans[0]
	where := db.Model(&models.KnownBan{}).Where("board_id = ? AND target_id = ?", boardID, targetID)
	if !banned {
		return where.Update("permabanned", false).Error
	}

	nukedAt := current.NukedAtMs
	if parsed.Nuke && entry.Created > nukedAt {
		nukedAt = entry.Created
	}
	return where.Updates(map[string]any{
		"moderator_id": moderatorID,
		"permabanned":  parsed.Permanent,
		"reason":       parsed.Reason,
		"nuked_at_ms":  nukedAt,
	}).Error
}

// MarkAuthorSuspended flags the author as suspended. On the first transition
// under the purge policy, archived items without a removal source are
// attributed to the account nuke.
func (w *Writer) MarkAuthorSuspended(ctx context.Context, tx *gorm.DB, name string) error {
	authorID, err := w.interner.AuthorID(ctx, tx, name)
	if err != nil {
		return err
	}
	db := tx.WithContext(ctx)
	res := db.Model(&models.Author{}).Where("id = ? AND is_suspended = ?", authorID, false).Update("is_suspended", true)
	if res.Error != nil {
		return fmt.Errorf("mark %q suspended: %w", name, res.Error)
	}
	if res.RowsAffected == 0 || !w.cfg.PurgeDeleted {
		return nil
	}

	for _, model := range []any{&models.Post{}, &models.Comment{}} {
		if err := db.Model(model).Where("author_id = ? AND removal_source IS NULL", authorID).
			Update("removal_source", "nuke").Error; err != nil {
			return fmt.Errorf("attribute nuke for %q: %w", name, err)
		}
	}
	observability.Logger.InfoContext(ctx, "author suspended", slog.String("author", name))
	return nil
}

// MarkAuthorDeleted flags the author as deleted and every archived item of
// theirs as known deleted. On the first transition under the purge policy the
// stored content is blanked.
func (w *Writer) MarkAuthorDeleted(ctx context.Context, tx *gorm.DB, name string) error {
	authorID, err := w.interner.AuthorID(ctx, tx, name)
	if err != nil {
		return err
	}
	db := tx.WithContext(ctx)
	res := db.Model(&models.Author{}).Where("id = ? AND is_deleted = ?", authorID, false).Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("mark %q deleted: %w", name, res.Error)
	}
	firstTransition := res.RowsAffected > 0

	for _, model := range []any{&models.Post{}, &models.Comment{}} {
		if err := db.Model(model).Where("author_id = ?", authorID).Update("known_deleted", true).Error; err != nil {
			return fmt.Errorf("mark items of %q deleted: %w", name, err)
		}
	}
	if !firstTransition || !w.cfg.PurgeDeleted {
		return nil
	}

	posts := db.Model(&models.Post{}).Where("author_id = ?", authorID).
		Updates(map[string]any{"title": "", "link": "", "raw_content": ""})
	if posts.Error != nil {
		return fmt.Errorf("purge posts of %q: %w", name, posts.Error)
	}
	comments := db.Model(&models.Comment{}).Where("author_id = ?", authorID).Update("raw_content", "")
	if comments.Error != nil {
		return fmt.Errorf("purge comments of %q: %w", name, comments.Error)
	}
	observability.Logger.InfoContext(ctx, "purged deleted author",
		slog.String("author", name),
		slog.Int64("posts", posts.RowsAffected),
		slog.Int64("comments", comments.RowsAffected),
	)
	return nil
}

// MarkPostDeleted flags a single archived post as known deleted.
func (w *Writer) MarkPostDeleted(ctx context.Context, tx *gorm.DB, id uint64) error {
	return tx.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("known_deleted", true).Error
}

// PurgePost blanks the stored body, link and preview of a deleted post.
func (w *Writer) PurgePost(ctx context.Context, tx *gorm.DB, id uint64) error {
	return tx.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).
		Updates(map[string]any{"raw_content": "", "link": "", "preview": ""}).Error
}

// PurgeComment blanks the stored body of a deleted comment.
func (w *Writer) PurgeComment(ctx context.Context, tx *gorm.DB, id uint64) error {
	return tx.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("raw_content", "").Error
}

// RecoveredContent is content restored from a source other than the API.
type RecoveredContent struct {
	Title string
	Link  string
	Body  string
}

// Empty reports whether nothing was recovered.
func (r RecoveredContent) Empty() bool {
	return r.Title == "" && r.Link == "" && r.Body == ""
}

// StoreRecovered fills empty stored fields of an archived item from recovered
// content and records the recovery method.
func (w *Writer) StoreRecovered(ctx context.Context, tx *gorm.DB, kind string, id uint64, rec RecoveredContent) (WriteResult, error) {
	if rec.Empty() {
		return WriteUnchanged, nil
	}
	db := tx.WithContext(ctx)
	var res *gorm.DB
	switch kind {
	case KindPost:
		var rows []models.Post
		if err := db.Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil || len(rows) == 0 {
			return WriteUnchanged, err
		}
		u := itemUpdate{}
		u.backfill("title", rows[0].Title, rec.Title)
		u.backfill("link", rows[0].Link, rec.Link)
		u.backfill("raw_content", rows[0].RawContent, models.NormalizeNewlines(rec.Body))
		if len(u) == 0 {
			return WriteUnchanged, nil
		}
		u["recovery_method"] = recoveryMethodScrape
		res = db.Model(&models.Post{}).Where("id = ?", id).Updates(map[string]any(u))
	case KindComment:
		res = db.Model(&models.Comment{}).Where("id = ? AND raw_content = ?", id, "").
			Updates(map[string]any{
				"raw_content":     models.NormalizeNewlines(rec.Body),
				"recovery_method": recoveryMethodScrape,
			})
	default:
		return "", fmt.Errorf("unknown content kind %q", kind)
	}
	if res.Error != nil {
		return "", fmt.Errorf("store recovered %s %d: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return WriteUnchanged, nil
	}
	return WriteUpdated, nil
}

// RemovalRequest is a legal removal request as submitted by a reader.
type RemovalRequest struct {
	IP          string
	Kind        string
	ID          uint64
	Reason      string
	Description string
}

type legalState struct {
	PostID        uint64
	LegalRemoved  bool
	LegalApproved bool
}

func (w *Writer) legalState(ctx context.Context, tx *gorm.DB, kind string, id uint64) (*legalState, error) {
	var rows []legalState
	var err error
	switch kind {
	case KindPost:
		err = tx.WithContext(ctx).Model(&models.Post{}).
			Select("id AS post_id, legal_removed, legal_approved").Where("id = ?", id).Limit(1).Scan(&rows).Error
	case KindComment:
		err = tx.WithContext(ctx).Model(&models.Comment{}).
			Select("post_id, legal_removed, legal_approved").Where("id = ?", id).Limit(1).Scan(&rows).Error
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func contentModel(kind string) (any, error) {
	switch kind {
	case KindPost:
		return &models.Post{}, nil
	case KindComment:
		return &models.Comment{}, nil
	default:
		return nil, fmt.Errorf("unknown content kind %q", kind)
	}
}

// ProcessRemovalRequest hides an archived item pending review and files the
// request. Items already under review or decided are not reportable.
func (w *Writer) ProcessRemovalRequest(ctx context.Context, tx *gorm.DB, req RemovalRequest) error {
	if !w.cfg.ReportingEnabled {
		return models.NewNotReportableError()
	}
	state, err := w.legalState(ctx, tx, req.Kind, req.ID)
	if err != nil {
		return err
	}
	if state == nil || state.LegalRemoved || state.LegalApproved {
		return models.NewNotReportableError()
	}

	model, _ := contentModel(req.Kind)
	db := tx.WithContext(ctx)
	if err := db.Model(model).Where("id = ?", req.ID).Update("legal_removed", true).Error; err != nil {
		return fmt.Errorf("hide %s %d: %w", req.Kind, req.ID, err)
	}

	request := models.RemovalRequest{
		Time:        w.now().Unix(),
		IP:          req.IP,
		Reason:      req.Reason,
		Description: req.Description,
		PostID:      models.NullableUint64(state.PostID),
	}
	if req.Kind == KindComment {
		request.CommentID = models.NullableUint64(req.ID)
	}
	if err := db.Create(&request).Error; err != nil {
		return fmt.Errorf("file removal request: %w", err)
	}
	observability.Logger.InfoContext(ctx, "removal request filed",
		slog.String("kind", req.Kind),
		slog.Uint64("id", req.ID),
	)
	return nil
}

// ApproveItem keeps an item visible and clears its open requests.
func (w *Writer) ApproveItem(ctx context.Context, tx *gorm.DB, kind string, id uint64) error {
	return w.decide(ctx, tx, kind, id, false)
}

// RemoveItem hides an item permanently and clears its open requests.
func (w *Writer) RemoveItem(ctx context.Context, tx *gorm.DB, kind string, id uint64) error {
	return w.decide(ctx, tx, kind, id, true)
}

func (w *Writer) decide(ctx context.Context, tx *gorm.DB, kind string, id uint64, removed bool) error {
	model, err := contentModel(kind)
	if err != nil {
		return err
	}
	db := tx.WithContext(ctx)
	if err := db.Model(model).Where("id = ?", id).
		Updates(map[string]any{"legal_removed": removed, "legal_approved": !removed}).Error; err != nil {
		return fmt.Errorf("decide %s %d: %w", kind, id, err)
	}
	column := "post_id"
	if kind == KindComment {
		column = "comment_id"
	}
	return db.Model(&models.RemovalRequest{}).Where(column+" = ?", id).Update("cleared", true).Error
}

// FetchRemovalRequests lists open removal requests with a link to the
// reported content.
func (w *Writer) FetchRemovalRequests(ctx context.Context, archive repository.ArchiveRepository) ([]models.RemovalRequestView, error) {
	requests, err := archive.OpenRemovalRequests(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]models.RemovalRequestView, 0, len(requests))
	for _, r := range requests {
		u, err := removalRequestURL(r)
		if err != nil {
			observability.Logger.WarnContext(ctx, "skipping removal request", slog.Any("error", err))
			continue
		}
		views = append(views, models.RemovalRequestView{
			IP:          r.IP,
			Time:        r.Time,
			Reason:      r.Reason,
			Description: r.Description,
			PostID:      r.PostID,
			CommentID:   r.CommentID,
			URL:         u,
		})
	}
	return views, nil
}

var errNoPost = errors.New("removal request without post id")

func removalRequestURL(r models.RemovalRequest) (string, error) {
	if r.PostID == nil {
		return "", errNoPost
	}
	var b strings.Builder
	b.WriteString("/p/")
	b.WriteString(ident.ToUUID(*r.PostID))
	if r.CommentID != nil {
		b.WriteString("/x/c/")
		b.WriteString(ident.ToUUID(*r.CommentID))
	}
	return b.String(), nil
}
