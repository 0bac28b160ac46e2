package process

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/parse"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// ListingPage holds what a listing page contributes to the crawl
type ListingPage struct {
	DetailURLs   []*url.URL // Absolute detail links, document order (duplicates kept)
	NextURL      *url.URL   // nil when pagination ends here
	SkippedLinks int        // hrefs that could not be resolved to http(s) URLs
}

// ListingParser extracts detail links and the next-page link from a listing page
type ListingParser struct {
	sel config.SelectorConfig
	log *logrus.Entry
}

// NewListingParser creates a ListingParser. Empty selectors fall back to the defaults.
func NewListingParser(sel config.SelectorConfig, log *logrus.Entry) *ListingParser {
	if sel.DetailLink == "" {
		sel.DetailLink = config.DefaultDetailLinkSelector
	}
	if sel.NextPage == "" {
		sel.NextPage = config.DefaultNextPageSelector
	}
	return &ListingParser{sel: sel, log: log}
}

// Parse parses body and resolves its links against pageURL, the URL the listing page was requested from.
func (lp *ListingParser) Parse(body []byte, pageURL *url.URL) (*ListingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, pageURL, err)
	}
	return lp.ParseDocument(doc, pageURL), nil
}

// ParseDocument is Parse for an already parsed document.
// Detail links: every a[href] matched by (or nested under) the DetailLink selector.
// Next link: the first NextPage match; its own href or the first nested a[href].
// A next element without any href ends pagination.
func (lp *ListingParser) ParseDocument(doc *goquery.Document, pageURL *url.URL) *ListingPage {
	page := &ListingPage{}
	pageLog := lp.log.WithField("listing_url", pageURL.String())

	doc.Find(lp.sel.DetailLink).Each(func(_ int, s *goquery.Selection) {
		anchorsOf(s).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			linkURL, err := parse.ResolveURL(pageURL, href)
			if err != nil {
				pageLog.Debugf("Skipping detail link: %v", err)
				page.SkippedLinks++
				return
			}
			page.DetailURLs = append(page.DetailURLs, linkURL)
		})
	})

	next := doc.Find(lp.sel.NextPage).First()
	if next.Length() == 0 {
		pageLog.Debugf("No element matches next selector '%s', pagination ends", lp.sel.NextPage)
		return page
	}
	href, ok := next.Attr("href")
	if !ok {
		href, ok = next.Find("a[href]").First().Attr("href")
	}
	if !ok {
		pageLog.Debug("Next element has no href, pagination ends")
		return page
	}
	nextURL, err := parse.ResolveURL(pageURL, href)
	if err != nil {
		pageLog.Warnf("Unusable next link, pagination ends: %v", err)
		return page
	}
	page.NextURL = nextURL
	return page
}

// anchorsOf returns s itself when it is an anchor with an href, otherwise the anchors nested under it.
func anchorsOf(s *goquery.Selection) *goquery.Selection {
	if goquery.NodeName(s) == "a" {
		if _, ok := s.Attr("href"); ok {
			return s
		}
	}
	return s.Find("a[href]")
}
