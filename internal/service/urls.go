package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"unscored/internal/ident"
	"unscored/internal/models"
)

// GlobalDomains are the platform hosts that serve every community.
var GlobalDomains = []string{"scored.co", "communities.win"}

// Parsed URL types.
const (
	URLProfile     = "profile"
	URLCommunities = "communities"
	URLFeed        = "feed"
	URLModlog      = "modlog"
	URLThread      = "thread"
)

// DomainDirectory resolves standalone community domains.
type DomainDirectory interface {
	Domain(community string) string
	CommunityForDomain(domain string) (string, bool)
}

// ParsedURL is a platform URL resolved to the read operation that serves it.
type ParsedURL struct {
	Type           string `json:"type"`
	Community      string `json:"community,omitempty"`
	User           string `json:"user,omitempty"`
	Content        string `json:"content,omitempty"`
	Page           int    `json:"page,omitempty"`
	Sort           string `json:"sort,omitempty"`
	FromUUID       string `json:"from_uuid,omitempty"`
	Action         string `json:"action,omitempty"`
	Moderator      string `json:"moderator,omitempty"`
	Target         string `json:"target,omitempty"`
	PostUUID       string `json:"post_uuid,omitempty"`
	PostID         uint64 `json:"post_id,omitempty"`
	CommentUUID    string `json:"comment_uuid,omitempty"`
	CommentID      uint64 `json:"comment_id,omitempty"`
	NormalizedPath string `json:"normalized_path"`
}

var (
	bareUsername   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	communityPath  = regexp.MustCompile(`^/c/([^/]+)/?`)
	threadPath     = regexp.MustCompile(`^/p/([^/]+)(?:/[^/]+/c/([^/]+)?)?`)
	feedSortPaths  = map[string]bool{"/": true, "/rising": true, "/top": true, "/active": true, "/new": true}
	errInvalidURL  = models.NewInvalidURLError("Invalid URL")
	errUnknownHost = models.NewInvalidURLError("Unknown domain name")
)

func isGlobalDomain(domain string) bool {
	for _, d := range GlobalDomains {
		if d == domain {
			return true
		}
	}
	return false
}

func pageParam(params url.Values) int {
	page, err := strconv.Atoi(params.Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func paramOr(params url.Values, key, fallback string) string {
	if v := strings.TrimSpace(params.Get(key)); v != "" {
		return v
	}
	return fallback
}

// ParseURL resolves a pasted platform URL, a relative path or a bare username.
// Unsupported feed sorts are served as the new feed.
func ParseURL(dir DomainDirectory, raw string) (*ParsedURL, error) {
	raw = strings.TrimSpace(raw)
	if bareUsername.MatchString(raw) {
		return &ParsedURL{
			Type:           URLProfile,
			User:           raw,
			Content:        "removed",
			Page:           1,
			NormalizedPath: "/u/" + raw + "?type=removed",
		}, nil
	}
	if strings.HasPrefix(raw, "c/") || strings.HasPrefix(raw, "u/") {
		raw = "/" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, errInvalidURL
	}
	domain := u.Host
	params := u.Query()
	community := ""
	if domain != "" && !isGlobalDomain(domain) {
		name, ok := dir.CommunityForDomain(domain)
		if !ok {
			return nil, errUnknownHost
		}
		community = name
	}

	if strings.HasPrefix(u.Path, "/u/") {
		username := strings.TrimRight(u.Path[3:], "/")
		if username == "" || strings.Contains(username, "/") {
			return nil, models.NewInvalidURLError("Invalid user profile URL")
		}
		content := paramOr(params, "type", "comment")
		return &ParsedURL{
			Type:           URLProfile,
			User:           username,
			Content:        content,
			Page:           pageParam(params),
			NormalizedPath: "/u/" + username + "?type=" + content,
		}, nil
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "/communities" {
		page := pageParam(params)
		sort := paramOr(params, "sort", "activity")
		return &ParsedURL{
			Type:           URLCommunities,
			Page:           page,
			Sort:           sort,
			NormalizedPath: fmt.Sprintf("/communities?sort=%s&page=%d", sort, page),
		}, nil
	}

	switch {
	case community != "" && !strings.HasPrefix(path, "/c/"):
	case strings.HasPrefix(path, "/p/"):
	default:
		m := communityPath.FindStringSubmatch(path)
		if m == nil {
			return nil, errInvalidURL
		}
		community = m[1]
		parts := strings.SplitN(path, "/", 4)
		path = "/"
		if len(parts) == 4 {
			path = "/" + parts[3]
		}
	}
	if path == "" {
		path = "/"
	}

	switch {
	case feedSortPaths[path]:
		normalized := "/c/" + community + "/new"
		from := params.Get("from")
		if from != "" {
			normalized += "?from=" + from
		}
		return &ParsedURL{
			Type:           URLFeed,
			Community:      community,
			Sort:           "new",
			FromUUID:       from,
			NormalizedPath: normalized,
		}, nil
	case path == "/logs":
		out := &ParsedURL{
			Type:      URLModlog,
			Community: community,
			Action:    paramOr(params, "type", "*"),
			Moderator: paramOr(params, "moderator", "*"),
			Target:    paramOr(params, "target", "*"),
			Page:      pageParam(params),
		}
		out.NormalizedPath = fmt.Sprintf("/c/%s/logs?type=%s&moderator=%s&target=%s&page=%d",
			community, out.Action, out.Moderator, out.Target, out.Page)
		return out, nil
	case strings.HasPrefix(path, "/p/"):
		return parseThread(community, path, params)
	default:
		return nil, errInvalidURL
	}
}

func parseThread(community, path string, params url.Values) (*ParsedURL, error) {
	m := threadPath.FindStringSubmatch(path)
	if m == nil {
		return nil, errInvalidURL
	}
	out := &ParsedURL{
		Type:        URLThread,
		Community:   community,
		PostUUID:    m[1],
		CommentUUID: m[2],
		Sort:        paramOr(params, "sort", "top"),
	}
	var err error
	if out.PostID, err = ident.FromUUID(out.PostUUID); err != nil {
		return nil, errInvalidURL
	}
	if out.CommentUUID != "" {
		if out.CommentID, err = ident.FromUUID(out.CommentUUID); err != nil {
			return nil, errInvalidURL
		}
	}

	var b strings.Builder
	if community != "" {
		b.WriteString("/c/" + community)
	}
	b.WriteString("/p/" + out.PostUUID)
	if out.CommentUUID != "" {
		b.WriteString("/x/c/" + out.CommentUUID)
	}
	if out.Sort != "top" {
		b.WriteString("?sort=" + out.Sort)
	}
	out.NormalizedPath = b.String()
	return out, nil
}

// ContentURLs lists the public URLs of a post or comment on every global
// domain and on the community's standalone domain when it has one.
func ContentURLs(dir DomainDirectory, community string, postID, commentID uint64) []string {
	path := "/p/" + ident.ToUUID(postID)
	if commentID != 0 {
		path += "/x/c/" + ident.ToUUID(commentID)
	}
	urls := make([]string, 0, len(GlobalDomains)+1)
	for _, domain := range GlobalDomains {
		urls = append(urls, "https://"+domain+"/c/"+community+path)
	}
	if domain := dir.Domain(community); domain != "" {
		urls = append(urls, "https://"+domain+path)
	}
	return urls
}

// NormalizedPostPath is the canonical relative path of a post.
func NormalizedPostPath(community, postUUID string) string {
	return "/c/" + community + "/p/" + postUUID
}

// NormalizedCommentPath is the canonical relative path of a comment.
func NormalizedCommentPath(community, postUUID, commentUUID string) string {
	return "/c/" + community + "/p/" + postUUID + "/x/c/" + commentUUID
}
