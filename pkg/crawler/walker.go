package crawler

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/parse"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// walk follows the listing chain from the start URL, one page at a time, dispatching a
// work unit per detail link. It returns when there is no next page, max_pages is reached,
// a listing page repeats, ctx is done, or a listing page fails (*CrawlError).
func (c *Crawler) walk(ctx context.Context, work chan<- models.WorkItem) error {
	walkLog := c.log.WithField("stage", "walker")
	seen := make(map[string]struct{})

	current := c.startURL
	for page := 1; current != nil; page++ {
		if err := ctx.Err(); err != nil {
			walkLog.Warnf("Stopping pagination: %v", err)
			return err
		}
		if c.cfg.MaxPages > 0 && page > c.cfg.MaxPages {
			walkLog.WithField("max_pages", c.cfg.MaxPages).Info("Listing page limit reached")
			return nil
		}
		key := parse.NormalizeURL(current)
		if _, ok := seen[key]; ok {
			walkLog.WithField("url", current.String()).Warn("Listing page already walked; ending pagination")
			return nil
		}
		seen[key] = struct{}{}

		pageLog := walkLog.WithFields(logrus.Fields{"url": current.String(), "listing_page": page})
		body, err := c.fetchPage(ctx, metrics.KindListing, current.String(), pageLog)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			pageLog.WithField("category", utils.CategorizeError(err)).Errorf("Listing page failed: %v", err)
			return &CrawlError{URL: current.String(), Page: page, Err: err}
		}
		c.listingPages.Add(1)

		result, err := c.listing.Parse(body, current)
		if err != nil {
			return &CrawlError{URL: current.String(), Page: page, Err: err}
		}
		pageLog.WithFields(logrus.Fields{
			"detail_links": len(result.DetailURLs),
			"has_next":     result.NextURL != nil,
		}).Info("Listing page parsed")

		for _, detailURL := range result.DetailURLs {
			if err := c.dispatch(ctx, work, detailURL, page, pageLog); err != nil {
				return err
			}
		}
		current = result.NextURL
	}
	return nil
}

// dispatch submits one detail URL to the worker pool, blocking while the queue is full.
// With dedupe enabled a URL already dispatched during this crawl is skipped.
func (c *Crawler) dispatch(ctx context.Context, work chan<- models.WorkItem, detailURL *url.URL, page int, pageLog *logrus.Entry) error {
	if c.dedupe {
		added, err := c.store.MarkDetailDispatched(parse.NormalizeURL(detailURL), page)
		switch {
		case err != nil:
			// Losing a record is worse than fetching one twice
			pageLog.WithField("detail_url", detailURL.String()).Warnf("Visited store unavailable, dispatching anyway: %v", err)
		case !added:
			c.skipped.Add(1)
			c.metrics.IncSkipped()
			pageLog.WithField("detail_url", detailURL.String()).Debug("Detail already dispatched; skipping")
			return nil
		}
	}

	select {
	case work <- models.WorkItem{URL: detailURL.String(), ListingPage: page}:
		c.dispatched.Add(1)
		c.metrics.SetQueueDepth(len(work))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
