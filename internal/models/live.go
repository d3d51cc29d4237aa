package models

import (
	"encoding/json"
	"strings"
)

// Moderation is the moderation metadata the platform attaches to items
// visible to moderators.
type Moderation struct {
	ApprovedBy string `json:"approved_by"`
	ApprovedAt int64  `json:"approved_at"`
	RemovedBy  string `json:"removed_by"`
	RemovedAt  int64  `json:"removed_at"`
}

// LivePost is a post as returned by the platform API.
type LivePost struct {
	ID            uint64      `json:"id"`
	UUID          string      `json:"uuid"`
	Author        string      `json:"author"`
	Community     string      `json:"community"`
	Created       int64       `json:"created"`
	IsAdmin       bool        `json:"is_admin"`
	IsModerator   bool        `json:"is_moderator"`
	IsRemoved     bool        `json:"is_removed"`
	IsDeleted     bool        `json:"is_deleted"`
	IsEdited      bool        `json:"is_edited"`
	IsLocked      bool        `json:"is_locked"`
	IsNSFW        bool        `json:"is_nsfw"`
	IsImage       bool        `json:"is_image"`
	RemovalSource string      `json:"removal_source"`
	Type          string      `json:"type"`
	Link          string      `json:"link"`
	Preview       string      `json:"preview"`
	Title         string      `json:"title"`
	RawContent    string      `json:"raw_content"`
	Comments      int         `json:"comments"`
	Score         int         `json:"score"`
	ScoreUp       int         `json:"score_up"`
	ScoreDown     int         `json:"score_down"`
	Moderation    *Moderation `json:"moderation,omitempty"`
}

// LiveComment is a comment as returned by the platform API.
type LiveComment struct {
	ID              uint64          `json:"id"`
	UUID            string          `json:"uuid"`
	Author          string          `json:"author"`
	Community       string          `json:"community"`
	Created         int64           `json:"created"`
	IsAdmin         bool            `json:"is_admin"`
	IsModerator     bool            `json:"is_moderator"`
	IsRemoved       bool            `json:"is_removed"`
	IsDeleted       bool            `json:"is_deleted"`
	IsEdited        bool            `json:"is_edited"`
	RemovalSource   string          `json:"removal_source"`
	RawContent      string          `json:"raw_content"`
	Score           int             `json:"score"`
	ScoreUp         int             `json:"score_up"`
	ScoreDown       int             `json:"score_down"`
	ParentID        uint64          `json:"parent_id"`
	ParentUUID      string          `json:"parent_uuid"`
	PostTitle       string          `json:"post_title"`
	PostAuthor      string          `json:"post_author"`
	CommentParentID uint64          `json:"comment_parent_id"`
	ChildIDs        json.RawMessage `json:"child_ids,omitempty"`
	Moderation      *Moderation     `json:"moderation,omitempty"`
}

// ModlogEntry is a moderation log entry as returned by the platform API.
type ModlogEntry struct {
	Created     int64  `json:"created"`
	Moderator   string `json:"moderator"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description"`
	PostID      uint64 `json:"postId"`
	CommentID   uint64 `json:"commentId"`
}

// LiveUser is a profile summary from the user endpoint.
type LiveUser struct {
	Username    string `json:"username"`
	IsDeleted   bool   `json:"is_deleted"`
	IsSuspended bool   `json:"is_suspended"`
}

// LiveCommunity is an entry of the community listing.
type LiveCommunity struct {
	Name             string `json:"name"`
	StandaloneDomain string `json:"standalone_domain"`
	Description      string `json:"description"`
	Visibility       string `json:"visibility"`
	AppSafe          *bool  `json:"app_safe,omitempty"`
}

// Envelope is the common shape of platform API responses.
type Envelope struct {
	Status         bool              `json:"status"`
	Error          string            `json:"error,omitempty"`
	HasMoreEntries bool              `json:"has_more_entries"`
	Posts          []LivePost        `json:"posts,omitempty"`
	Comments       []LiveComment     `json:"comments,omitempty"`
	Logs           []ModlogEntry     `json:"logs,omitempty"`
	Users          []LiveUser        `json:"users,omitempty"`
	Communities    []LiveCommunity   `json:"communities,omitempty"`
	Content        []json.RawMessage `json:"content,omitempty"`
}

// NormalizeRemovalSource strips the pending suffix the platform appends to
// filter removals awaiting review.
func NormalizeRemovalSource(source string) string {
	return strings.TrimSuffix(source, "Pending")
}

// NormalizeNewlines converts CRLF line endings to LF.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
