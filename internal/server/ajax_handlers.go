package server

import (
	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ParseURL resolves a platform URL into the page it maps to.
func (s *Server) ParseURL(c *fiber.Ctx) error {
	parsed, err := s.archive.ParseURL(c.Query("url"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(parsed)
}

// GetThread returns a post with its full comment tree. The post is given as
// post_uuid or post_id.
func (s *Server) GetThread(c *fiber.Ctx) error {
	var postID uint64
	if uuid := c.Query("post_uuid"); uuid != "" {
		id, err := ident.FromUUID(uuid)
		if err != nil {
			return models.RespondWithError(c, models.NewMalformedIdentifierError(err))
		}
		postID = id
	} else {
		postID = parseUint(c.Query("post_id"))
	}
	if postID < 1 {
		return badRequest("Invalid or missing post_id")
	}

	thread, err := s.archive.FetchThread(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(thread)
}

// GetPost returns a single post without comments.
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID := parseUint(c.Query("post_id"))
	if postID < 1 {
		return badRequest("Invalid or missing post_id")
	}
	post, err := s.archive.FetchSinglePost(c.UserContext(), postID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(post)
}

// GetComment returns one comment of a thread.
func (s *Server) GetComment(c *fiber.Ctx) error {
	postID := parseUint(c.Query("post_id"))
	commentID := parseUint(c.Query("comment_id"))
	if postID < 1 || commentID < 1 {
		return badRequest("Invalid or missing post_id or comment_id")
	}
	comment, err := s.archive.FetchSingleComment(c.UserContext(), postID, commentID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(comment)
}

// GetProfile serves the post, comment or removed-content tab of a profile.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	username := c.Query("user")
	if username == "" {
		return badRequest("Missing user")
	}

	var (
		view any
		err  error
	)
	switch c.Query("type", "comment") {
	case "removed":
		view, err = s.archive.FetchProfileRemovedContent(ctx, username,
			c.QueryInt("from_post", 0), c.QueryInt("from_comment", 0))
	case "post":
		view, err = s.archive.FetchProfilePosts(ctx, username, queryPage(c))
	default:
		view, err = s.archive.FetchProfileComments(ctx, username, queryPage(c))
	}
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(view)
}

// GetFeed returns a page of a community's new feed with archived posts
// restored.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	feed, err := s.archive.FetchNewFeed(c.UserContext(), c.Query("community"), c.Query("from"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(feed)
}

// GetCommunities lists the monitored communities.
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	return c.JSON(s.archive.FetchCommunities(queryPage(c), c.Query("sort", service.SortActivity)))
}

// GetModlogs returns a filtered page of a community's archived modlog.
func (s *Server) GetModlogs(c *fiber.Ctx) error {
	community := c.Query("community")
	if community == "" {
		return badRequest("Missing community")
	}
	logs, err := s.archive.FetchModlogs(c.UserContext(), community, queryPage(c),
		c.Query("action", "*"), c.Query("moderator", "*"), c.Query("target", "*"))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(logs)
}

// CreateRemovalRequest files a legal removal request from the form fields
// type, id, reason and description.
func (s *Server) CreateRemovalRequest(c *fiber.Ctx) error {
	kind := c.FormValue("type", service.KindPost)
	if !validKind(kind) {
		return badRequest("Invalid content type")
	}
	req := service.RemovalRequest{
		IP:          c.IP(),
		Kind:        kind,
		ID:          parseUint(c.FormValue("id")),
		Reason:      truncate(c.FormValue("reason", "no reason"), maxReasonLength),
		Description: truncate(c.FormValue("description", "no description"), maxDescriptionLength),
	}
	if err := s.archive.ProcessRemovalRequest(c.UserContext(), req); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"status": true})
}
