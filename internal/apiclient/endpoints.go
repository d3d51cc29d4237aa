package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"unscored/internal/models"
)

// Platform API endpoints.
const (
	PostEndpoint              = "/api/v2/post/post.json"
	NewPostsEndpoint          = "/api/v2/post/newv2.json"
	ProfilePostsEndpoint      = "/api/v2/post/profile.json"
	CommunityCommentsEndpoint = "/api/v2/comment/community.json"
	ProfileCommentsEndpoint   = "/api/v2/comment/profile.json"
	ProfileContentEndpoint    = "/api/v2/content/profile.json"
	UserAboutEndpoint         = "/api/v2/user/about.json"
	ModlogEndpoint            = "/api/v2/community/logs.json"
	BanlogEndpoint            = "/api/v2/community/ban-logs.json"
	CommunityListEndpoint     = "/api/v2/community/list.json"
)

// Cache lifetimes of the read surface.
const (
	ThreadTTL         = 150 * time.Second
	ProfileTTL        = 300 * time.Second
	RemovedContentTTL = 120 * time.Second
	FeedTTL           = 60 * time.Second
	FeedProbeTTL      = 1800 * time.Second
)

// GlobalCommunity is the pseudo-community of the site-wide feed.
const GlobalCommunity = "win"

// Post fetches a single post, with its comments when withComments is set.
func (c *Client) Post(ctx context.Context, id uint64, withComments bool, ttl time.Duration) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatUint(id, 10))
	params.Set("comments", strconv.FormatBool(withComments))

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, PostEndpoint, params, ttl, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// NewPosts fetches a page of a community's newest posts, older than the post
// with uuid from when from is set.
func (c *Client) NewPosts(ctx context.Context, community, from string, ttl time.Duration) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("community", community)
	if from != "" {
		params.Set("from", from)
	}

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, NewPostsEndpoint, params, ttl, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// CommunityComments fetches a page of a community's newest comments.
func (c *Client) CommunityComments(ctx context.Context, community string, page int) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("community", community)
	params.Set("page", strconv.Itoa(page))

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, CommunityCommentsEndpoint, params, 0, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Modlogs fetches a page of the full moderation log, or of the ban log when
// banLogs is set.
func (c *Client) Modlogs(ctx context.Context, community string, page int, banLogs bool) (*models.Envelope, error) {
	endpoint := ModlogEndpoint
	if banLogs {
		endpoint = BanlogEndpoint
	}
	params := url.Values{}
	params.Set("community", community)
	params.Set("page", strconv.Itoa(page))

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, endpoint, params, 0, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ProbeModlogs reports whether endpoint answers with status true for community.
func (c *Client) ProbeModlogs(ctx context.Context, community string, banLogs bool) bool {
	endpoint := ModlogEndpoint
	if banLogs {
		endpoint = BanlogEndpoint
	}
	params := url.Values{}
	params.Set("community", community)
	params.Set("page", "1")
	return c.Request(ctx, http.MethodGet, endpoint, params, 0).Status
}

// UserAbout fetches a user's profile summary.
func (c *Client) UserAbout(ctx context.Context, username string) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("user", username)

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, UserAboutEndpoint, params, ProfileTTL, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ProfilePosts fetches a page of a user's posts, newest first.
func (c *Client) ProfilePosts(ctx context.Context, username string, page int) (*models.Envelope, error) {
	return c.profile(ctx, ProfilePostsEndpoint, username, page)
}

// ProfileComments fetches a page of a user's comments, newest first.
func (c *Client) ProfileComments(ctx context.Context, username string, page int) (*models.Envelope, error) {
	return c.profile(ctx, ProfileCommentsEndpoint, username, page)
}

func (c *Client) profile(ctx context.Context, endpoint, username string, page int) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("user", username)
	params.Set("sort", "new")
	params.Set("page", strconv.Itoa(page))
	params.Set("community", GlobalCommunity)

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, endpoint, params, 0, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ProfileContent fetches a mixed page of a user's posts and comments starting
// at the given post and comment offsets.
func (c *Client) ProfileContent(ctx context.Context, username string, fromPost, fromComment int) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("user", username)
	params.Set("community", GlobalCommunity)
	params.Set("post", strconv.Itoa(fromPost))
	params.Set("comment", strconv.Itoa(fromComment))

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, ProfileContentEndpoint, params, RemovedContentTTL, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Communities fetches a page of the platform's community listing.
func (c *Client) Communities(ctx context.Context, page int) (*models.Envelope, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var env models.Envelope
	if err := c.Fetch(ctx, http.MethodGet, CommunityListEndpoint, params, 0, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
