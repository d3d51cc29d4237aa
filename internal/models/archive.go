// Package models defines the archive schema, the live platform records and the
// merged views served to readers.
package models

import "time"

// Board is an archived community. Name is unique case-insensitively through NameKey.
type Board struct {
	ID      uint64 `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null" json:"name"`
	NameKey string `gorm:"uniqueIndex:idx_boards_name_key;not null" json:"-"`
}

// Author is a platform account. The suspended and deleted flags only ever go
// from false to true.
type Author struct {
	ID          uint64 `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	NameKey     string `gorm:"uniqueIndex:idx_authors_name_key;not null" json:"-"`
	IsSuspended bool   `gorm:"not null;default:false" json:"is_suspended"`
	IsDeleted   bool   `gorm:"not null;default:false" json:"is_deleted"`
}

// Post is an archived post keyed by its platform id.
type Post struct {
	ID             uint64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	BoardID        uint64  `gorm:"not null;index" json:"board_id"`
	AuthorID       uint64  `gorm:"not null;index" json:"author_id"`
	Type           string  `json:"type"`
	Link           string  `json:"link"`
	Preview        string  `json:"preview"`
	Title          string  `json:"title"`
	RawContent     string  `json:"raw_content"`
	CreatedMs      int64   `gorm:"index" json:"created_ms"`
	KnownDeleted   bool    `gorm:"not null;default:false" json:"known_deleted"`
	RemovalSource  *string `json:"removal_source"`
	ArchivedAtMs   int64   `json:"archived_at_ms"`
	RemovedAtMs    *int64  `json:"removed_at_ms"`
	RemovedBy      *string `json:"removed_by"`
	ApprovedAtMs   *int64  `json:"approved_at_ms"`
	ApprovedBy     *string `json:"approved_by"`
	RecoveryMethod *string `json:"recovery_method"`
	LegalRemoved   bool    `gorm:"not null;default:false" json:"legal_removed"`
	LegalApproved  bool    `gorm:"not null;default:false" json:"legal_approved"`
}

// Comment is an archived comment keyed by its platform id.
type Comment struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	BoardID         uint64  `gorm:"not null;index" json:"board_id"`
	AuthorID        uint64  `gorm:"not null;index" json:"author_id"`
	PostID          uint64  `gorm:"index" json:"post_id"`
	CommentParentID uint64  `json:"comment_parent_id"`
	RawContent      string  `json:"raw_content"`
	CreatedMs       int64   `gorm:"index" json:"created_ms"`
	KnownDeleted    bool    `gorm:"not null;default:false" json:"known_deleted"`
	RemovalSource   *string `json:"removal_source"`
	ArchivedAtMs    int64   `json:"archived_at_ms"`
	RemovedAtMs     *int64  `json:"removed_at_ms"`
	RemovedBy       *string `json:"removed_by"`
	ApprovedAtMs    *int64  `json:"approved_at_ms"`
	ApprovedBy      *string `json:"approved_by"`
	RecoveryMethod  *string `json:"recovery_method"`
	LegalRemoved    bool    `gorm:"not null;default:false" json:"legal_removed"`
	LegalApproved   bool    `gorm:"not null;default:false" json:"legal_approved"`
}

// ModlogRecord is one moderation log entry. (board, created_ms) is unique.
type ModlogRecord struct {
	ID          uint64  `gorm:"primaryKey" json:"-"`
	BoardID     uint64  `gorm:"not null;uniqueIndex:idx_modlogs_board_created" json:"board_id"`
	CreatedMs   int64   `gorm:"not null;uniqueIndex:idx_modlogs_board_created" json:"created_ms"`
	ModeratorID uint64  `gorm:"not null;index" json:"moderator_id"`
	TargetID    uint64  `gorm:"not null;index" json:"target_id"`
	Type        string  `gorm:"index" json:"type"`
	Description string  `json:"description"`
	PostID      *uint64 `json:"post_id"`
	CommentID   *uint64 `json:"comment_id"`
}

// TableName keeps the historical table name.
func (ModlogRecord) TableName() string {
	return "modlogs"
}

// KnownBan is the current ban state of a target in a board, projected from
// ban and unban modlog entries.
type KnownBan struct {
	BoardID     uint64 `gorm:"primaryKey;autoIncrement:false" json:"board_id"`
	TargetID    uint64 `gorm:"primaryKey;autoIncrement:false" json:"target_id"`
	ModeratorID uint64 `gorm:"not null" json:"moderator_id"`
	Permabanned bool   `gorm:"not null;default:false" json:"permabanned"`
	NukedAtMs   int64  `gorm:"not null;default:0" json:"nuked_at_ms"`
	Reason      string `json:"reason"`
}

// RemovalRequest is a legal removal request filed against archived content.
// PostID is always set; CommentID only for comment-level requests.
type RemovalRequest struct {
	ID          uint64  `gorm:"primaryKey" json:"-"`
	Time        int64   `gorm:"not null" json:"time"`
	IP          string  `json:"ip"`
	Reason      string  `json:"reason"`
	Description string  `json:"description"`
	PostID      *uint64 `gorm:"index" json:"post_id"`
	CommentID   *uint64 `gorm:"index" json:"comment_id"`
	Cleared     bool    `gorm:"not null;default:false;index" json:"cleared"`
}

// IngestState is the durable scheduler record of one community, or of the
// site-wide feed under the key GlobalStateKey.
type IngestState struct {
	Community           string    `gorm:"primaryKey" json:"community"`
	Domain              string    `json:"domain"`
	IntervalSeconds     float64   `gorm:"not null" json:"interval"`
	LastPostID          uint64    `gorm:"not null;default:0" json:"last_post_id"`
	LastCommentID       uint64    `gorm:"not null;default:0" json:"last_comment_id"`
	LastModlogTimestamp int64     `gorm:"not null;default:0" json:"last_modlog_timestamp"`
	Modlogs             *bool     `json:"modlogs"`
	Banlogs             *bool     `json:"banlogs"`
	LastIngested        int64     `gorm:"not null;default:0" json:"last_ingested"`
	Description         string    `json:"description"`
	Visibility          string    `json:"visibility"`
	AppSafe             *bool     `json:"app_safe"`
	UpdatedAt           time.Time `json:"-"`
}

// GlobalStateKey is the IngestState key of the site-wide new-post feed.
const GlobalStateKey = "global"

// Interval returns the polling interval as a duration.
func (s *IngestState) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds * float64(time.Second))
}

// ModlogStatus reports which moderation log the community exposes: full, bans or none.
func (s *IngestState) ModlogStatus() string {
	switch {
	case s.Modlogs != nil && *s.Modlogs:
		return "full"
	case s.Banlogs != nil && *s.Banlogs:
		return "bans"
	default:
		return "none"
	}
}

// Restricted reports whether the community is private or not app safe.
func (s *IngestState) Restricted() bool {
	return (s.Visibility != "" && s.Visibility != "public") || (s.AppSafe != nil && !*s.AppSafe)
}

// Checkpoint stores the resume position of a long-running job.
type Checkpoint struct {
	Name      string    `gorm:"primaryKey"`
	Position  uint64    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// BlockedAddress is a client address refused by the web boundary.
type BlockedAddress struct {
	Addr      string    `gorm:"primaryKey" json:"addr"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchivedPost is a stored post joined with its author, board and the ban
// context of the author in that board.
type ArchivedPost struct {
	Post        `gorm:"embedded"`
	Author      string
	Community   string
	IsBanned    bool
	IsSuspended bool
	IsNuked     bool
	BannedBy    *string
	BanReason   *string
}

// ArchivedComment is the comment counterpart of ArchivedPost.
type ArchivedComment struct {
	Comment     `gorm:"embedded"`
	Author      string
	Community   string
	IsBanned    bool
	IsSuspended bool
	IsNuked     bool
	BannedBy    *string
	BanReason   *string
}

// StringOrEmpty dereferences s, treating nil as "".
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Int64OrZero dereferences v, treating nil as 0.
func Int64OrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// NullableString returns nil for "" and a pointer to s otherwise.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NullableInt64 returns nil for 0 and a pointer to v otherwise.
func NullableInt64(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// NullableUint64 returns nil for 0 and a pointer to v otherwise.
func NullableUint64(v uint64) *uint64 {
	if v == 0 {
		return nil
	}
	return &v
}
