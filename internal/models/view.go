package models

import "encoding/json"

// ArchiveInfo describes the archived counterpart of a view.
type ArchiveInfo struct {
	IsArchived     bool   `json:"is_archived"`
	JustAdded      bool   `json:"just_added"`
	ArchivedAt     int64  `json:"archived_at"`
	LegalRemoved   bool   `json:"legal_removed"`
	LegalApproved  bool   `json:"legal_approved"`
	Reportable     bool   `json:"reportable"`
	RecoveryMethod string `json:"recovery_method,omitempty"`
}

// BanInfo describes the author's ban state in the item's community.
type BanInfo struct {
	IsBanned    bool   `json:"is_banned"`
	IsSuspended bool   `json:"is_suspended"`
	IsNuked     bool   `json:"is_nuked"`
	BannedBy    string `json:"banned_by,omitempty"`
	BanReason   string `json:"ban_reason,omitempty"`
}

// ItemView holds the fields shared by merged posts and comments.
type ItemView struct {
	ID             uint64      `json:"id"`
	UUID           string      `json:"uuid"`
	Author         string      `json:"author"`
	Community      string      `json:"community"`
	Created        int64       `json:"created"`
	IsAdmin        bool        `json:"is_admin"`
	IsModerator    bool        `json:"is_moderator"`
	IsRemoved      bool        `json:"is_removed"`
	IsFiltered     bool        `json:"is_filtered"`
	IsDeleted      bool        `json:"is_deleted"`
	IsEdited       bool        `json:"is_edited"`
	IsLocked       bool        `json:"is_locked"`
	IsNSFW         bool        `json:"is_nsfw"`
	IsImage        bool        `json:"is_image"`
	RemovalSource  string      `json:"removal_source"`
	RawContent     string      `json:"raw_content"`
	Score          int         `json:"score"`
	ScoreUp        int         `json:"score_up"`
	ScoreDown      int         `json:"score_down"`
	NormalizedPath string      `json:"normalized_path"`
	URLs           []string    `json:"urls"`
	Archive        ArchiveInfo `json:"archive"`
	Moderation     Moderation  `json:"moderation"`
	Ban            BanInfo     `json:"ban"`
}

// PostView is the externally visible merged post.
type PostView struct {
	ItemView
	Type     string `json:"type"`
	Link     string `json:"link"`
	Domain   string `json:"domain"`
	Preview  string `json:"preview"`
	Title    string `json:"title"`
	Comments int    `json:"comments"`
}

// CommentView is the externally visible merged comment.
type CommentView struct {
	ItemView
	ParentID        uint64          `json:"parent_id"`
	ParentUUID      string          `json:"parent_uuid"`
	PostTitle       string          `json:"post_title"`
	PostAuthor      string          `json:"post_author"`
	CommentParentID uint64          `json:"comment_parent_id"`
	ChildIDs        json.RawMessage `json:"child_ids,omitempty"`
}

// Thread is a post with its comments ordered by id.
type Thread struct {
	Post         *PostView      `json:"post"`
	Comments     []*CommentView `json:"comments"`
	ModlogStatus string         `json:"modlog_status"`
}

// ProfilePosts is one page of a user's posts.
type ProfilePosts struct {
	IsSuspended    bool        `json:"is_suspended"`
	Posts          []*PostView `json:"posts"`
	HasMoreEntries bool        `json:"has_more_entries"`
}

// ProfileComments is one page of a user's comments.
type ProfileComments struct {
	IsSuspended    bool           `json:"is_suspended"`
	Comments       []*CommentView `json:"comments"`
	HasMoreEntries bool           `json:"has_more_entries"`
}

// RemovedContent is a page of a user's removed posts and comments, oldest first.
type RemovedContent struct {
	IsSuspended    bool  `json:"is_suspended"`
	Content        []any `json:"content"`
	FromPost       int   `json:"from_post"`
	FromComment    int   `json:"from_comment"`
	Upto           int64 `json:"upto"`
	HasMoreEntries bool  `json:"has_more_entries"`
}

// Feed is a page of a community's new posts, newest first.
type Feed struct {
	Posts          []*PostView `json:"posts"`
	ModlogStatus   string      `json:"modlog_status"`
	HasMoreEntries bool        `json:"has_more_entries"`
}

// ModlogView is a stored modlog record rendered for readers.
type ModlogView struct {
	CreatedMs   int64   `json:"created_ms"`
	Moderator   string  `json:"moderator"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	PostID      *uint64 `json:"post_id"`
	CommentID   *uint64 `json:"comment_id"`
	PostUUID    string  `json:"post_uuid,omitempty"`
	CommentUUID string  `json:"comment_uuid,omitempty"`
}

// ModeratorListing groups the actors that appear in a community's modlog.
type ModeratorListing struct {
	Moderators []string `json:"moderators"`
	Admins     []string `json:"admins"`
	Filters    []string `json:"filters"`
}

// ModlogPage is one page of a community's stored modlog.
type ModlogPage struct {
	Records        []ModlogView      `json:"records"`
	Moderators     *ModeratorListing `json:"moderators"`
	HasMoreEntries bool              `json:"has_more_entries"`
}

// CommunitySummary describes a monitored community.
type CommunitySummary struct {
	Name            string  `json:"name"`
	Domain          string  `json:"domain,omitempty"`
	IntervalSeconds float64 `json:"interval"`
	ModlogStatus    string  `json:"modlog_status"`
	LastIngested    int64   `json:"last_ingested"`
	Description     string  `json:"description"`
	Visibility      string  `json:"visibility"`
	AppSafe         bool    `json:"app_safe"`
}

// CommunityPage is one page of monitored communities.
type CommunityPage struct {
	Communities    []CommunitySummary `json:"communities"`
	Page           int                `json:"page"`
	HasMoreEntries bool               `json:"has_more_entries"`
}

// RemovalRequestView is a removal request rendered for administrators.
type RemovalRequestView struct {
	IP          string  `json:"ip"`
	Time        int64   `json:"time"`
	Reason      string  `json:"reason"`
	Description string  `json:"description"`
	PostID      *uint64 `json:"post_id"`
	CommentID   *uint64 `json:"comment_id"`
	URL         string  `json:"url"`
}
