package service

import (
	"context"
	"html"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"unscored/internal/ident"
	"unscored/internal/models"
	"unscored/internal/observability"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// Scraper fetches public HTML pages.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, params url.Values, selector string) (*goquery.Selection, bool)
}

const (
	pageSelector    = ".error, .post, .comment"
	titleSelector   = ".title"
	bodySelector    = ".content .inner"
	suspendedMarker = "suspended"
)

var lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</blockquote>`)

// Recoverer restores the content of removed items from the public pages of
// communities that run on a standalone domain. Recovery is best effort.
type Recoverer struct {
	scraper Scraper
	domains DomainDirectory
	writer  *Writer
	policy  *bluemonday.Policy
}

// NewRecoverer returns a Recoverer scraping through scraper.
func NewRecoverer(scraper Scraper, domains DomainDirectory, writer *Writer) *Recoverer {
	return &Recoverer{
		scraper: scraper,
		domains: domains,
		writer:  writer,
		policy:  bluemonday.StrictPolicy(),
	}
}

// NeedsRecovery reports whether a removed item came back without content.
func NeedsRecovery(removed bool, title, body string) bool {
	return removed && strings.TrimSpace(title) == "" && strings.TrimSpace(body) == ""
}

// textFromHTML turns a content fragment into plain text.
func (r *Recoverer) textFromHTML(fragment string) string {
	fragment = lineBreaks.ReplaceAllStringFunc(fragment, func(tag string) string {
		return tag + "\n"
	})
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(fragment)))
}

type scrapedPage struct {
	items     *goquery.Selection
	suspended bool
}

func (r *Recoverer) fetchPage(ctx context.Context, pageURL string, params url.Values, itemSelector string) (*scrapedPage, bool) {
	sel, ok := r.scraper.Scrape(ctx, pageURL, params, pageSelector)
	if !ok {
		return nil, false
	}
	if errSel := sel.Filter(".error"); errSel.Length() > 0 {
		msg := strings.ToLower(errSel.First().Text())
		return &scrapedPage{suspended: strings.Contains(msg, suspendedMarker)}, true
	}
	return &scrapedPage{items: sel.Filter(itemSelector)}, true
}

// locate finds the item with id on a page, by data-id attribute or, on a
// thread page, by position.
func locate(items *goquery.Selection, id uint64, byPosition bool) *goquery.Selection {
	if items == nil || items.Length() == 0 {
		return nil
	}
	idText := strconv.FormatUint(id, 10)
	uuid := ident.ToUUID(id)
	match := items.FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("data-id")
		return v == idText || v == uuid
	})
	if match.Length() > 0 {
		return match.First()
	}
	if byPosition {
		return items.First()
	}
	return nil
}

func (r *Recoverer) extract(item *goquery.Selection, withTitle bool) RecoveredContent {
	var rec RecoveredContent
	if withTitle {
		title := item.Find(titleSelector).First()
		rec.Title = strings.TrimSpace(title.Text())
		if href, ok := title.Attr("href"); ok && strings.HasPrefix(href, "http") {
			rec.Link = href
		}
	}
	if body, err := item.Find(bodySelector).First().Html(); err == nil {
		rec.Body = r.textFromHTML(body)
	}
	return rec
}

// scrape tries the author's profile first and falls back to the thread page
// when the profile is unavailable. A suspended profile is reported so the
// author can be flagged.
func (r *Recoverer) scrape(ctx context.Context, domain, author, kind string, id uint64, threadPath string) (RecoveredContent, bool) {
	itemSelector := ".post"
	params := url.Values{"type": {"post"}}
	if kind == KindComment {
		itemSelector = ".comment"
		params.Set("type", "comment")
	}

	suspended := false
	profile, ok := r.fetchPage(ctx, "https://"+domain+"/u/"+url.PathEscape(author), params, itemSelector)
	if ok {
		if item := locate(profile.items, id, false); item != nil {
			return r.extract(item, kind == KindPost), false
		}
		suspended = profile.suspended
	}

	thread, ok := r.fetchPage(ctx, "https://"+domain+threadPath, nil, itemSelector)
	if !ok {
		return RecoveredContent{}, suspended
	}
	if item := locate(thread.items, id, true); item != nil {
		return r.extract(item, kind == KindPost), suspended
	}
	return RecoveredContent{}, suspended
}

// RecoverPost scrapes the content of a removed post and stores whatever was
// found. It returns true when content was recovered.
func (r *Recoverer) RecoverPost(ctx context.Context, db *gorm.DB, post *models.LivePost) bool {
	domain := r.domains.Domain(post.Community)
	if domain == "" {
		return false
	}
	rec, suspended := r.scrape(ctx, domain, post.Author, KindPost, post.ID, "/p/"+ident.ToUUID(post.ID))
	return r.store(ctx, db, KindPost, post.ID, post.Author, rec, suspended)
}

// RecoverComment is the comment counterpart of RecoverPost.
func (r *Recoverer) RecoverComment(ctx context.Context, db *gorm.DB, comment *models.LiveComment) bool {
	domain := r.domains.Domain(comment.Community)
	if domain == "" {
		return false
	}
	path := "/p/" + ident.ToUUID(comment.ParentID) + "/x/c/" + ident.ToUUID(comment.ID)
	rec, suspended := r.scrape(ctx, domain, comment.Author, KindComment, comment.ID, path)
	return r.store(ctx, db, KindComment, comment.ID, comment.Author, rec, suspended)
}

func (r *Recoverer) store(ctx context.Context, db *gorm.DB, kind string, id uint64, author string, rec RecoveredContent, suspended bool) bool {
	if !suspended && rec.Empty() {
		observability.Logger.DebugContext(ctx, "nothing recovered", slog.String("kind", kind), slog.Uint64("id", id))
		return false
	}
	recovered := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if suspended {
			if err := r.writer.MarkAuthorSuspended(ctx, tx, author); err != nil {
				return err
			}
		}
		result, err := r.writer.StoreRecovered(ctx, tx, kind, id, rec)
		recovered = result == WriteUpdated
		return err
	})
	if err != nil {
		observability.Logger.WarnContext(ctx, "failed to store recovered content",
			slog.String("kind", kind),
			slog.Uint64("id", id),
			slog.String("error", err.Error()),
		)
		return false
	}
	if recovered {
		observability.Logger.InfoContext(ctx, "recovered removed content", slog.String("kind", kind), slog.Uint64("id", id))
	}
	return recovered
}
