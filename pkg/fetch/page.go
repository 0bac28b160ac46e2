package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// PageFetcher retrieves the body of a page. Every error wraps utils.ErrTransport.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPPageFetcher is the PageFetcher used for real crawls: a GET through Fetcher with the
// body capped at maxBytes.
type HTTPPageFetcher struct {
	fetcher  *Fetcher
	maxBytes int64
	log      *logrus.Entry
}

// NewPageFetcher wraps f. maxBytes <= 0 disables the size limit.
func NewPageFetcher(f *Fetcher, maxBytes int64, log *logrus.Entry) *HTTPPageFetcher {
	return &HTTPPageFetcher{
		fetcher:  f,
		maxBytes: maxBytes,
		log:      log.WithField("component", "page_fetcher"),
	}
}

// Fetch GETs url and returns its body.
func (p *HTTPPageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", utils.ErrTransport, utils.ErrRequestCreation, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := p.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		drainAndClose(resp)
		return nil, fmt.Errorf("%w: fetching '%s': %w", utils.ErrTransport, url, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if p.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, p.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w from '%s': %w", utils.ErrTransport, utils.ErrResponseBodyRead, url, err)
	}
	if p.maxBytes > 0 && int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("%w: %w: '%s' exceeds %d bytes", utils.ErrTransport, utils.ErrResponseBodyRead, url, p.maxBytes)
	}

	p.log.WithFields(logrus.Fields{"url": url, "bytes": len(body)}).Debug("Page fetched")
	return body, nil
}
