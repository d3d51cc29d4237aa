package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"unscored/internal/apiclient"
	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/observability"
	"unscored/internal/repository"

	"gorm.io/gorm"
)

// ItemsPerPage is the page size of archive-backed listings.
const ItemsPerPage = 25

// feedArchiveWindow bounds the archived posts merged into one feed page.
const feedArchiveWindow = 50

// fullFeedPage is the platform's new-feed page size; shorter pages reach the
// end of the feed.
const fullFeedPage = 20

const suspendedUserError = "user is suspended"

// Modlog actors that are not listed as community moderators.
var (
	modlogAdmins      = []string{"C", "Perun"}
	modlogFilters     = []string{"GlobalFilter", "CommunityFilter"}
	hiddenModerators  = map[string]bool{"": true, "C": true, "Perun": true, "GlobalFilter": true, "CommunityFilter": true}
	descriptionSpaces = strings.NewReplacer("\r", "", "\n", " ")
)

// PlatformClient is the subset of the platform API used by the read paths.
type PlatformClient interface {
	Post(ctx context.Context, id uint64, withComments bool, ttl time.Duration) (*models.Envelope, error)
	NewPosts(ctx context.Context, community, from string, ttl time.Duration) (*models.Envelope, error)
	UserAbout(ctx context.Context, username string) (*models.Envelope, error)
	ProfilePosts(ctx context.Context, username string, page int) (*models.Envelope, error)
	ProfileComments(ctx context.Context, username string, page int) (*models.Envelope, error)
	ProfileContent(ctx context.Context, username string, fromPost, fromComment int) (*models.Envelope, error)
}

// StateDirectory is the scheduler state consulted by the read paths.
type StateDirectory interface {
	CommunityStates
	ModlogStatus(name string) string
	LastKnownPostID() uint64
	All() []models.IngestState
}

// ReadLimits bounds the upstream requests of one read.
type ReadLimits struct {
	Feed    int
	Profile int
}

// ArchiveService serves reader requests by merging live platform data with
// the archive.
type ArchiveService struct {
	db         *gorm.DB
	client     PlatformClient
	archive    repository.ArchiveRepository
	interner   *repository.Interner
	states     StateDirectory
	writer     *Writer
	reconciler *Reconciler
	limits     ReadLimits
}

// NewArchiveService wires the read paths.
func NewArchiveService(
	db *gorm.DB,
	client PlatformClient,
	archive repository.ArchiveRepository,
	interner *repository.Interner,
	states StateDirectory,
	writer *Writer,
	reconciler *Reconciler,
	limits ReadLimits,
) *ArchiveService {
	return &ArchiveService{
		db:         db,
		client:     client,
		archive:    archive,
		interner:   interner,
		states:     states,
		writer:     writer,
		reconciler: reconciler,
		limits:     limits,
	}
}

func (s *ArchiveService) inTx(ctx context.Context, fn func(tx *gorm.DB, archive repository.ArchiveRepository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, s.archive.WithTx(tx))
	})
}

// FetchThread returns a post with all of its comments, oldest first.
func (s *ArchiveService) FetchThread(ctx context.Context, postID uint64) (*models.Thread, error) {
	env, err := s.client.Post(ctx, postID, true, apiclient.ThreadTTL)
	if err != nil {
		return nil, models.NewRequestFailedError("", err)
	}
	if len(env.Posts) == 0 {
		return nil, models.NewRequestFailedError("Post not found", nil)
	}
	live := env.Posts[0]
	comments := append([]models.LiveComment(nil), env.Comments...)
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })

	thread := &models.Thread{
		Comments:     make([]*models.CommentView, 0, len(comments)),
		ModlogStatus: s.states.ModlogStatus(live.Community),
	}
	err = s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		archivedPost, err := archive.PostByID(ctx, postID)
		if err != nil {
			return err
		}
		archivedComments, err := archive.CommentsByPost(ctx, postID)
		if err != nil {
			return err
		}
		if thread.Post, err = s.reconciler.MergePost(ctx, tx, live, archivedPost); err != nil {
			return err
		}
		for _, c := range comments {
			view, err := s.reconciler.MergeComment(ctx, tx, c, archivedComments[c.ID])
			if err != nil {
				return err
			}
			thread.Comments = append(thread.Comments, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return thread, nil
}

// FetchSinglePost returns the merged view of one post.
func (s *ArchiveService) FetchSinglePost(ctx context.Context, postID uint64) (*models.PostView, error) {
	thread, err := s.FetchThread(ctx, postID)
	if err != nil {
		return nil, err
	}
	return thread.Post, nil
}

// FetchSingleComment returns the merged view of one comment of a thread.
func (s *ArchiveService) FetchSingleComment(ctx context.Context, postID, commentID uint64) (*models.CommentView, error) {
	thread, err := s.FetchThread(ctx, postID)
	if err != nil {
		return nil, err
	}
	for _, c := range thread.Comments {
		if c.ID == commentID {
			return c, nil
		}
	}
	return nil, models.NewRequestFailedError("comment not found in thread", nil)
}

type profileStatus struct {
	username  string
	suspended bool
	deleted   bool
}

// checkProfile resolves the canonical username and the account state. A
// deleted account is recorded and reported as a failure.
func (s *ArchiveService) checkProfile(ctx context.Context, username, deletedMessage string) (*profileStatus, error) {
	status := &profileStatus{username: username}
	env, err := s.client.UserAbout(ctx, username)
	if err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != models.CodeUpstreamError || appErr.Message != suspendedUserError {
			return nil, models.NewRequestFailedError("", err)
		}
		status.suspended = true
	} else if len(env.Users) > 0 {
		user := env.Users[0]
		status.username = user.Username
		status.deleted = user.IsDeleted
		status.suspended = user.IsSuspended
	}

	if status.deleted {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.writer.MarkAuthorDeleted(ctx, tx, status.username)
		})
		if err != nil {
			return nil, err
		}
		return nil, models.NewRequestFailedError(deletedMessage, nil)
	}
	return status, nil
}

func idBounds(ids []uint64) (highest, lowest uint64) {
	for i, id := range ids {
		if i == 0 || id > highest {
			highest = id
		}
		if i == 0 || id < lowest {
			lowest = id
		}
	}
	return highest, lowest
}

func pageOffset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * ItemsPerPage
}

// FetchProfilePosts returns a page of a user's posts. A suspended account is
// served from the archive alone.
func (s *ArchiveService) FetchProfilePosts(ctx context.Context, username string, page int) (*models.ProfilePosts, error) {
	status, err := s.checkProfile(ctx, username, "User account deleted")
	if err != nil {
		return nil, err
	}
	if status.suspended {
		return s.suspendedProfilePosts(ctx, status.username, page)
	}

	env, err := s.client.ProfilePosts(ctx, status.username, page)
	if err != nil {
		return nil, models.NewRequestFailedError("", err)
	}
	posts := append([]models.LivePost(nil), env.Posts...)
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })

	out := &models.ProfilePosts{Posts: make([]*models.PostView, 0, len(posts)), HasMoreEntries: env.HasMoreEntries}
	err = s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		archived := map[uint64]*models.ArchivedPost{}
		authorID, err := s.interner.LookupAuthorID(ctx, tx, status.username)
		if err != nil {
			return err
		}
		if authorID != 0 && len(posts) > 0 {
			ids := make([]uint64, len(posts))
			for i, p := range posts {
				ids[i] = p.ID
			}
			highest, lowest := idBounds(ids)
			if archived, err = archive.PostsByAuthorInRange(ctx, authorID, highest, lowest); err != nil {
				return err
			}
		}
		for _, p := range posts {
			view, err := s.reconciler.MergePost(ctx, tx, p, archived[p.ID])
			if err != nil {
				return err
			}
			out.Posts = append(out.Posts, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ArchiveService) suspendedProfilePosts(ctx context.Context, username string, page int) (*models.ProfilePosts, error) {
	out := &models.ProfilePosts{IsSuspended: true, Posts: []*models.PostView{}}
	err := s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		if err := s.writer.MarkAuthorSuspended(ctx, tx, username); err != nil {
			return err
		}
		authorID, err := s.interner.LookupAuthorID(ctx, tx, username)
		if err != nil {
			return err
		}
		rows, err := archive.PostsByAuthor(ctx, authorID, ItemsPerPage, pageOffset(page))
		if err != nil {
			return err
		}
		for _, row := range rows {
			view, err := s.reconciler.MergePost(ctx, tx, SimulatedPost(row, true, "nuke"), row)
			if err != nil {
				return err
			}
			out.Posts = append(out.Posts, view)
		}
		out.HasMoreEntries = len(rows) == ItemsPerPage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProfileComments returns a page of a user's comments. A suspended
// account is served from the archive alone.
func (s *ArchiveService) FetchProfileComments(ctx context.Context, username string, page int) (*models.ProfileComments, error) {
	status, err := s.checkProfile(ctx, username, "User account deleted")
	if err != nil {
		return nil, err
	}
	if status.suspended {
		return s.suspendedProfileComments(ctx, status.username, page)
	}

	env, err := s.client.ProfileComments(ctx, status.username, page)
	if err != nil {
		return nil, models.NewRequestFailedError("", err)
	}
	comments := append([]models.LiveComment(nil), env.Comments...)
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })

	out := &models.ProfileComments{Comments: make([]*models.CommentView, 0, len(comments)), HasMoreEntries: env.HasMoreEntries}
	err = s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		archived := map[uint64]*models.ArchivedComment{}
		authorID, err := s.interner.LookupAuthorID(ctx, tx, status.username)
		if err != nil {
			return err
		}
		if authorID != 0 && len(comments) > 0 {
			ids := make([]uint64, len(comments))
			for i, c := range comments {
				ids[i] = c.ID
			}
			highest, lowest := idBounds(ids)
			if archived, err = archive.CommentsByAuthorInRange(ctx, authorID, highest, lowest); err != nil {
				return err
			}
		}
		for _, c := range comments {
			view, err := s.reconciler.MergeComment(ctx, tx, c, archived[c.ID])
			if err != nil {
				return err
			}
			out.Comments = append(out.Comments, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ArchiveService) suspendedProfileComments(ctx context.Context, username string, page int) (*models.ProfileComments, error) {
	out := &models.ProfileComments{IsSuspended: true, Comments: []*models.CommentView{}}
	err := s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		if err := s.writer.MarkAuthorSuspended(ctx, tx, username); err != nil {
			return err
		}
		authorID, err := s.interner.LookupAuthorID(ctx, tx, username)
		if err != nil {
			return err
		}
		rows, err := archive.CommentsByAuthor(ctx, authorID, ItemsPerPage, pageOffset(page))
		if err != nil {
			return err
		}
		for _, row := range rows {
			view, err := s.reconciler.MergeComment(ctx, tx, SimulatedComment(row, true, "nuke"), row)
			if err != nil {
				return err
			}
			out.Comments = append(out.Comments, view)
		}
		out.HasMoreEntries = len(rows) == ItemsPerPage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProfileRemovedContent walks a user's mixed post and comment history
// from the given offsets and returns the removed items, oldest first.
func (s *ArchiveService) FetchProfileRemovedContent(ctx context.Context, username string, fromPost, fromComment int) (*models.RemovedContent, error) {
	status, err := s.checkProfile(ctx, username, "User account deleted.")
	if err != nil {
		return nil, err
	}
	if status.suspended {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.writer.MarkAuthorSuspended(ctx, tx, status.username)
		})
		if err != nil {
			return nil, err
		}
		return nil, models.NewRequestFailedError("User account suspended.", nil)
	}

	type createdItem struct {
		created int64
		view    any
	}
	var removed []createdItem
	out := &models.RemovedContent{HasMoreEntries: true}

	for requests := 0; requests < s.limits.Profile; requests++ {
		env, err := s.client.ProfileContent(ctx, status.username, fromPost, fromComment)
		if err != nil {
			observability.Logger.WarnContext(ctx, "removed content page failed",
				slog.String("user", status.username),
				slog.String("error", err.Error()),
			)
			break
		}
		if len(env.Content) > 0 {
			var removedPosts []models.LivePost
			var removedComments []models.LiveComment
			for _, raw := range env.Content {
				isPost, err := isPostContent(raw)
				if err != nil {
					return nil, models.NewRequestFailedError("Malformed profile content", err)
				}
				if isPost {
					fromPost++
					var p models.LivePost
					if err := json.Unmarshal(raw, &p); err != nil {
						return nil, models.NewRequestFailedError("Malformed profile content", err)
					}
					out.Upto = p.Created
					if p.IsRemoved {
						removedPosts = append(removedPosts, p)
					}
				} else {
					fromComment++
					var c models.LiveComment
					if err := json.Unmarshal(raw, &c); err != nil {
						return nil, models.NewRequestFailedError("Malformed profile content", err)
					}
					out.Upto = c.Created
					if c.IsRemoved {
						removedComments = append(removedComments, c)
					}
				}
			}

			err = s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
				for _, p := range removedPosts {
					archived, err := archive.PostByID(ctx, p.ID)
					if err != nil {
						return err
					}
					view, err := s.reconciler.MergePost(ctx, tx, p, archived)
					if err != nil {
						return err
					}
					removed = append(removed, createdItem{view.Created, view})
				}
				for _, c := range removedComments {
					archived, err := archive.CommentByID(ctx, c.ID)
					if err != nil {
						return err
					}
					view, err := s.reconciler.MergeComment(ctx, tx, c, archived)
					if err != nil {
						return err
					}
					removed = append(removed, createdItem{view.Created, view})
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		if !env.HasMoreEntries {
			out.HasMoreEntries = false
			break
		}
	}

	sort.SliceStable(removed, func(i, j int) bool { return removed[i].created < removed[j].created })
	out.Content = make([]any, 0, len(removed))
	for _, item := range removed {
		out.Content = append(out.Content, item.view)
	}
	out.FromPost = fromPost
	out.FromComment = fromComment
	return out, nil
}

// isPostContent tells posts from comments in a mixed content page: only
// posts carry a title.
func isPostContent(raw json.RawMessage) (bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false, err
	}
	_, ok := fields["title"]
	return ok, nil
}

// FetchNewFeed returns a page of a community's new feed with archived posts
// the platform no longer lists merged back in, newest first.
func (s *ArchiveService) FetchNewFeed(ctx context.Context, community, fromUUID string) (*models.Feed, error) {
	env, err := s.client.NewPosts(ctx, community, fromUUID, apiclient.FeedTTL)
	if err != nil {
		return nil, models.NewRequestFailedError("", err)
	}

	var highest, lowest uint64
	if len(env.Posts) == 0 || fromUUID == "" {
		highest = s.states.LastKnownPostID()
	} else {
		highest = env.Posts[0].ID
	}
	if len(env.Posts) >= fullFeedPage {
		lowest = env.Posts[len(env.Posts)-1].ID
	}

	byID := make(map[uint64]*models.PostView, len(env.Posts))
	var probes []*models.ArchivedPost
	err = s.inTx(ctx, func(tx *gorm.DB, archive repository.ArchiveRepository) error {
		boardID, err := s.interner.LookupBoardID(ctx, tx, community)
		if err != nil {
			return err
		}
		var archived []*models.ArchivedPost
		if boardID != 0 {
			if archived, err = archive.PostsByBoardInRange(ctx, boardID, highest, lowest, feedArchiveWindow); err != nil {
				return err
			}
		}
		archivedByID := make(map[uint64]*models.ArchivedPost, len(archived))
		for _, a := range archived {
			archivedByID[a.ID] = a
		}

		for _, p := range env.Posts {
			view, err := s.reconciler.MergePost(ctx, tx, p, archivedByID[p.ID])
			if err != nil {
				return err
			}
			byID[p.ID] = view
		}
		for _, a := range archived {
			if _, live := byID[a.ID]; live {
				continue
			}
			if !a.KnownDeleted {
				probes = append(probes, a)
				continue
			}
			simulated := SimulatedPost(a, a.RemovalSource != nil, "")
			view, err := s.reconciler.MergePost(ctx, tx, simulated, a)
			if err != nil {
				return err
			}
			byID[a.ID] = view
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, a := range probes {
		if i >= s.limits.Feed {
			observability.Logger.WarnContext(ctx, "stopped checking missing feed posts at the request limit",
				slog.String("community", community),
				slog.Int("remaining", len(probes)-i),
			)
			break
		}
		view, err := s.probeFeedPost(ctx, a)
		if err != nil {
			return nil, err
		}
		if view != nil {
			byID[view.ID] = view
		}
	}

	feed := &models.Feed{
		Posts:          make([]*models.PostView, 0, len(byID)),
		ModlogStatus:   s.states.ModlogStatus(community),
		HasMoreEntries: env.HasMoreEntries,
	}
	for _, v := range byID {
		feed.Posts = append(feed.Posts, v)
	}
	sort.Slice(feed.Posts, func(i, j int) bool { return feed.Posts[i].ID > feed.Posts[j].ID })
	return feed, nil
}

// probeFeedPost checks an archived post missing from the live feed. Deleted
// posts are recorded; removed ones are returned for display.
func (s *ArchiveService) probeFeedPost(ctx context.Context, archived *models.ArchivedPost) (*models.PostView, error) {
	env, err := s.client.Post(ctx, archived.ID, false, apiclient.FeedProbeTTL)
	if err != nil || len(env.Posts) == 0 {
		return nil, nil
	}
	live := env.Posts[0]
	var view *models.PostView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case live.IsDeleted && !archived.KnownDeleted:
			observability.Logger.DebugContext(ctx, "marking post deleted", slog.Uint64("post_id", archived.ID))
			return s.writer.MarkPostDeleted(ctx, tx, archived.ID)
		case live.IsRemoved:
			var err error
			view, err = s.reconciler.MergePost(ctx, tx, live, archived)
			return err
		}
		return nil
	})
	return view, err
}

// FetchModlogs returns a page of a community's archived moderation log,
// optionally filtered by action, moderator and target. "*" or "" match all.
func (s *ArchiveService) FetchModlogs(ctx context.Context, community string, page int, action, moderator, target string) (*models.ModlogPage, error) {
	if page < 1 {
		page = 1
	}
	out := &models.ModlogPage{Records: []models.ModlogView{}}
	db := s.db.WithContext(ctx)

	boardID, err := s.interner.LookupBoardID(ctx, db, community)
	if err != nil {
		return nil, err
	}
	if boardID == 0 {
		return out, nil
	}
	filter := repository.ModlogFilter{BoardID: boardID, Limit: ItemsPerPage, Offset: pageOffset(page)}
	if action != "" && action != "*" {
		filter.Action = action
	}
	if moderator != "" && moderator != "*" {
		if filter.ModeratorID, err = s.interner.LookupAuthorID(ctx, db, moderator); err != nil {
			return nil, err
		}
		if filter.ModeratorID == 0 {
			return out, nil
		}
	}
	if target != "" && target != "*" {
		if filter.TargetID, err = s.interner.LookupAuthorID(ctx, db, target); err != nil {
			return nil, err
		}
		if filter.TargetID == 0 {
			return out, nil
		}
	}

	names, err := s.archive.ModlogModerators(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(names) != 1 || names[0] != "" {
		listing := &models.ModeratorListing{Moderators: []string{}, Admins: modlogAdmins, Filters: modlogFilters}
		for _, name := range names {
			if !hiddenModerators[name] {
				listing.Moderators = append(listing.Moderators, name)
			}
		}
		out.Moderators = listing
	}

	records, err := s.archive.Modlogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		r.Description = descriptionSpaces.Replace(r.Description)
		if r.PostID != nil {
			r.PostUUID = ident.ToUUID(*r.PostID)
		}
		if r.CommentID != nil {
			r.CommentUUID = ident.ToUUID(*r.CommentID)
		}
		out.Records = append(out.Records, r)
	}
	out.HasMoreEntries = len(records) == ItemsPerPage
	return out, nil
}

// Community listing orders.
const (
	SortActivity   = "activity"
	SortRestricted = "restricted"
	SortName       = "name"
)

// FetchCommunities lists monitored communities. The activity order puts the
// most frequently polled first; restricted keeps only private or unsafe ones.
func (s *ArchiveService) FetchCommunities(page int, order string) *models.CommunityPage {
	if page < 1 {
		page = 1
	}
	states := s.states.All()
	summaries := make([]models.CommunitySummary, 0, len(states))
	for i := range states {
		st := &states[i]
		if order == SortRestricted && !st.Restricted() {
			continue
		}
		summaries = append(summaries, models.CommunitySummary{
			Name:            st.Community,
			Domain:          st.Domain,
			IntervalSeconds: st.IntervalSeconds,
			ModlogStatus:    st.ModlogStatus(),
			LastIngested:    st.LastIngested,
			Description:     descriptionSpaces.Replace(st.Description),
			Visibility:      st.Visibility,
			AppSafe:         st.AppSafe == nil || *st.AppSafe,
		})
	}
	switch order {
	case SortActivity, SortRestricted:
		sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].IntervalSeconds < summaries[j].IntervalSeconds })
	default:
		sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	}

	start := min(pageOffset(page), len(summaries))
	end := min(start+ItemsPerPage, len(summaries))
	return &models.CommunityPage{
		Communities:    summaries[start:end],
		Page:           page,
		HasMoreEntries: pageOffset(page)+ItemsPerPage < len(summaries),
	}
}

// ProcessRemovalRequest files a legal removal request for an archived item.
func (s *ArchiveService) ProcessRemovalRequest(ctx context.Context, req RemovalRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.writer.ProcessRemovalRequest(ctx, tx, req)
	})
}

// ApproveItem keeps a reported item visible.
func (s *ArchiveService) ApproveItem(ctx context.Context, kind string, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.writer.ApproveItem(ctx, tx, kind, id)
	})
}

// RemoveItem hides a reported item for good.
func (s *ArchiveService) RemoveItem(ctx context.Context, kind string, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.writer.RemoveItem(ctx, tx, kind, id)
	})
}

// FetchRemovalRequests lists the open removal requests.
func (s *ArchiveService) FetchRemovalRequests(ctx context.Context) ([]models.RemovalRequestView, error) {
	return s.writer.FetchRemovalRequests(ctx, s.archive)
}

// ParseURL resolves a platform URL against the monitored communities.
func (s *ArchiveService) ParseURL(raw string) (*ParsedURL, error) {
	return ParseURL(s.states, raw)
}
