// Package repository provides the archive store queries, the identifier
// interning cache and the durable scheduler state.
package repository

import (
	"context"
	"fmt"

	"unscored/internal/models"
	"unscored/internal/observability"

	"gorm.io/gorm"
)

const archivedPostSelect = `
SELECT
	posts.*,
	authors.name AS author,
	boards.name AS community,
	COALESCE(known_bans.permabanned, FALSE) AS is_banned,
	authors.is_suspended AS is_suspended,
	CASE
		WHEN known_bans.nuked_at_ms > 0 AND known_bans.nuked_at_ms >= posts.created_ms THEN TRUE
		ELSE FALSE
	END AS is_nuked,
	moderators.name AS banned_by,
	known_bans.reason AS ban_reason
FROM posts
INNER JOIN authors ON authors.id = posts.author_id
INNER JOIN boards ON boards.id = posts.board_id
LEFT OUTER JOIN known_bans ON known_bans.target_id = posts.author_id AND known_bans.board_id = posts.board_id
LEFT OUTER JOIN authors AS moderators ON moderators.id = known_bans.moderator_id
`

const archivedCommentSelect = `
SELECT
	comments.*,
	authors.name AS author,
	boards.name AS community,
	COALESCE(known_bans.permabanned, FALSE) AS is_banned,
	authors.is_suspended AS is_suspended,
	CASE
		WHEN known_bans.nuked_at_ms > 0 AND known_bans.nuked_at_ms >= comments.created_ms THEN TRUE
		ELSE FALSE
	END AS is_nuked,
	moderators.name AS banned_by,
	known_bans.reason AS ban_reason
FROM comments
INNER JOIN authors ON authors.id = comments.author_id
INNER JOIN boards ON boards.id = comments.board_id
LEFT OUTER JOIN known_bans ON known_bans.target_id = comments.author_id AND known_bans.board_id = comments.board_id
LEFT OUTER JOIN authors AS moderators ON moderators.id = known_bans.moderator_id
`

// ModlogFilter narrows a modlog listing. Zero values match everything.
type ModlogFilter struct {
	BoardID     uint64
	Action      string
	ModeratorID uint64
	TargetID    uint64
	Limit       int
	Offset      int
}

// ArchiveRepository reads archived content joined with ban context.
type ArchiveRepository interface {
	WithTx(tx *gorm.DB) ArchiveRepository
	PostByID(ctx context.Context, id uint64) (*models.ArchivedPost, error)
	CommentByID(ctx context.Context, id uint64) (*models.ArchivedComment, error)
	CommentsByPost(ctx context.Context, postID uint64) (map[uint64]*models.ArchivedComment, error)
	PostsByBoardInRange(ctx context.Context, boardID, highest, lowest uint64, limit int) ([]*models.ArchivedPost, error)
	PostsByAuthorInRange(ctx context.Context, authorID, highest, lowest uint64) (map[uint64]*models.ArchivedPost, error)
	CommentsByAuthorInRange(ctx context.Context, authorID, highest, lowest uint64) (map[uint64]*models.ArchivedComment, error)
	PostsByAuthor(ctx context.Context, authorID uint64, limit, offset int) ([]*models.ArchivedPost, error)
	CommentsByAuthor(ctx context.Context, authorID uint64, limit, offset int) ([]*models.ArchivedComment, error)
	MaxPostID(ctx context.Context) (uint64, error)
	ModlogModerators(ctx context.Context, boardID uint64) ([]string, error)
	Modlogs(ctx context.Context, filter ModlogFilter) ([]models.ModlogView, error)
	OpenRemovalRequests(ctx context.Context) ([]models.RemovalRequest, error)
}

type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository creates a new archive repository.
func NewArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: db}
}

func (r *archiveRepository) WithTx(tx *gorm.DB) ArchiveRepository {
	return &archiveRepository{db: tx}
}

func (r *archiveRepository) PostByID(ctx context.Context, id uint64) (*models.ArchivedPost, error) {
	defer observability.TrackQuery("select", "posts")()
	var rows []*models.ArchivedPost
	if err := r.db.WithContext(ctx).Raw(archivedPostSelect+"WHERE posts.id = ?", id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("archived post %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *archiveRepository) CommentByID(ctx context.Context, id uint64) (*models.ArchivedComment, error) {
	defer observability.TrackQuery("select", "comments")()
	var rows []*models.ArchivedComment
	if err := r.db.WithContext(ctx).Raw(archivedCommentSelect+"WHERE comments.id = ?", id).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("archived comment %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *archiveRepository) CommentsByPost(ctx context.Context, postID uint64) (map[uint64]*models.ArchivedComment, error) {
	defer observability.TrackQuery("select", "comments")()
	var rows []*models.ArchivedComment
	if err := r.db.WithContext(ctx).Raw(archivedCommentSelect+"WHERE comments.post_id = ?", postID).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("archived comments of post %d: %w", postID, err)
	}
	return commentsByID(rows), nil
}

func (r *archiveRepository) PostsByBoardInRange(ctx context.Context, boardID, highest, lowest uint64, limit int) ([]*models.ArchivedPost, error) {
	defer observability.TrackQuery("select", "posts")()
	var rows []*models.ArchivedPost
	err := r.db.WithContext(ctx).Raw(
		archivedPostSelect+"WHERE posts.id <= ? AND posts.id >= ? AND posts.board_id = ? ORDER BY posts.id DESC LIMIT ?",
		highest, lowest, boardID, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archived posts of board %d: %w", boardID, err)
	}
	return rows, nil
}

func (r *archiveRepository) PostsByAuthorInRange(ctx context.Context, authorID, highest, lowest uint64) (map[uint64]*models.ArchivedPost, error) {
	defer observability.TrackQuery("select", "posts")()
	var rows []*models.ArchivedPost
	err := r.db.WithContext(ctx).Raw(
		archivedPostSelect+"WHERE posts.id <= ? AND posts.id >= ? AND posts.author_id = ?",
		highest, lowest, authorID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archived posts of author %d: %w", authorID, err)
	}
	byID := make(map[uint64]*models.ArchivedPost, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	return byID, nil
}

func (r *archiveRepository) CommentsByAuthorInRange(ctx context.Context, authorID, highest, lowest uint64) (map[uint64]*models.ArchivedComment, error) {
	defer observability.TrackQuery("select", "comments")()
	var rows []*models.ArchivedComment
	err := r.db.WithContext(ctx).Raw(
		archivedCommentSelect+"WHERE comments.id <= ? AND comments.id >= ? AND comments.author_id = ?",
		highest, lowest, authorID,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archived comments of author %d: %w", authorID, err)
	}
	return commentsByID(rows), nil
}

func (r *archiveRepository) PostsByAuthor(ctx context.Context, authorID uint64, limit, offset int) ([]*models.ArchivedPost, error) {
	defer observability.TrackQuery("select", "posts")()
	var rows []*models.ArchivedPost
	err := r.db.WithContext(ctx).Raw(
		archivedPostSelect+"WHERE posts.author_id = ? ORDER BY posts.id DESC LIMIT ? OFFSET ?",
		authorID, limit, offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archived posts of author %d: %w", authorID, err)
	}
	return rows, nil
}

func (r *archiveRepository) CommentsByAuthor(ctx context.Context, authorID uint64, limit, offset int) ([]*models.ArchivedComment, error) {
	defer observability.TrackQuery("select", "comments")()
	var rows []*models.ArchivedComment
	err := r.db.WithContext(ctx).Raw(
		archivedCommentSelect+"WHERE comments.author_id = ? ORDER BY comments.id DESC LIMIT ? OFFSET ?",
		authorID, limit, offset,
	).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("archived comments of author %d: %w", authorID, err)
	}
	return rows, nil
}

func (r *archiveRepository) MaxPostID(ctx context.Context) (uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Order("id DESC").Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("max post id: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

func (r *archiveRepository) ModlogModerators(ctx context.Context, boardID uint64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("modlogs").
		Joins("INNER JOIN authors ON modlogs.moderator_id = authors.id").
		Where("modlogs.board_id = ?", boardID).
		Distinct().
		Order("authors.name").
		Pluck("authors.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("modlog moderators of board %d: %w", boardID, err)
	}
	return names, nil
}

type modlogRow struct {
	CreatedMs   int64
	Moderator   string
	Target      string
	Type        string
	Description string
	PostID      *uint64
	CommentID   *uint64
}

func (r *archiveRepository) Modlogs(ctx context.Context, filter ModlogFilter) ([]models.ModlogView, error) {
	defer observability.TrackQuery("select", "modlogs")()
	q := r.db.WithContext(ctx).
		Table("modlogs").
		Select(`modlogs.created_ms, moderators.name AS moderator, targets.name AS target,
			modlogs.type, modlogs.description, modlogs.post_id, modlogs.comment_id`).
		Joins("INNER JOIN authors AS moderators ON moderators.id = modlogs.moderator_id").
		Joins("INNER JOIN authors AS targets ON targets.id = modlogs.target_id").
		Where("modlogs.board_id = ?", filter.BoardID)
	if filter.Action != "" {
		q = q.Where("modlogs.type = ?", filter.Action)
	}
	if filter.ModeratorID != 0 {
		q = q.Where("modlogs.moderator_id = ?", filter.ModeratorID)
	}
	if filter.TargetID != 0 {
		q = q.Where("modlogs.target_id = ?", filter.TargetID)
	}

	var rows []modlogRow
	if err := q.Order("modlogs.created_ms DESC").Limit(filter.Limit).Offset(filter.Offset).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("modlogs of board %d: %w", filter.BoardID, err)
	}

	views := make([]models.ModlogView, 0, len(rows))
	for _, row := range rows {
		views = append(views, models.ModlogView{
			CreatedMs:   row.CreatedMs,
			Moderator:   row.Moderator,
			Target:      row.Target,
			Type:        row.Type,
			Description: row.Description,
			PostID:      row.PostID,
			CommentID:   row.CommentID,
		})
	}
	return views, nil
}

func (r *archiveRepository) OpenRemovalRequests(ctx context.Context) ([]models.RemovalRequest, error) {
	var requests []models.RemovalRequest
	if err := r.db.WithContext(ctx).Where("cleared = ?", false).Order("id DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("open removal requests: %w", err)
	}
	return requests, nil
}

func commentsByID(rows []*models.ArchivedComment) map[uint64]*models.ArchivedComment {
	byID := make(map[uint64]*models.ArchivedComment, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}
	return byID
}
