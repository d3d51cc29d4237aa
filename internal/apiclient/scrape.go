package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"unscored/internal/observability"

	"github.com/PuerkitoBio/goquery"
)

// Scrape fetches a public HTML page once and returns the elements matching
// selector. The second result is false when the page could not be fetched or
// parsed. The request is followed by the usual cooldown.
func (c *Client) Scrape(ctx context.Context, rawURL string, params url.Values, selector string) (*goquery.Selection, bool) {
	target := rawURL
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	defer c.Cooldown(ctx)

	observability.Logger.DebugContext(ctx, "Scraping page", slog.String("url", target), slog.String("selector", selector))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		observability.Logger.WarnContext(ctx, "Scrape request invalid", slog.String("url", target), slog.String("error", err.Error()))
		return nil, false
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.scraper.Do(req)
	if err != nil {
		observability.Logger.WarnContext(ctx, "Scrape failed", slog.String("url", target), slog.String("error", err.Error()))
		observability.APIRequests.WithLabelValues("scrape", "failed").Inc()
		return nil, false
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		observability.Logger.WarnContext(ctx, "Scrape parse failed",
			slog.String("url", target),
			slog.String("error", fmt.Errorf("status %d: %w", resp.StatusCode, err).Error()),
		)
		observability.APIRequests.WithLabelValues("scrape", "failed").Inc()
		return nil, false
	}
	observability.APIRequests.WithLabelValues("scrape", "ok").Inc()
	return doc.Find(selector), true
}
