package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/fetch"
	"github.com/Sriram-PR/film-indexer/pkg/index"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/parse"
	"github.com/Sriram-PR/film-indexer/pkg/process"
	"github.com/Sriram-PR/film-indexer/pkg/storage"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

// CrawlError reports a listing page that could not be fetched or parsed. It ends pagination;
// detail pages already dispatched still complete.
type CrawlError struct {
	URL  string
	Page int // 1-based listing page number
	Err  error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("listing page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

var errAlreadyRun = errors.New("crawler: Run may only be called once")

// Crawler walks the listing pages of one site and indexes every linked detail page
type Crawler struct {
	log      *logrus.Entry // Carries component and crawl_id
	cfg      *config.AppConfig
	startURL *url.URL
	crawlID  string
	dedupe   bool

	fetcher   fetch.PageFetcher
	store     storage.DetailStore
	listing   *process.ListingParser
	extractor *process.DetailExtractor
	idx       *index.InvertedIndex
	metrics   *metrics.Metrics

	// Bounds in-flight HTTP requests across the walker and all workers
	globalSemaphore *semaphore.Weighted

	wg      sync.WaitGroup // Worker goroutines
	started atomic.Bool

	listingPages atomic.Int64
	dispatched   atomic.Int64
	succeeded    atomic.Int64
	failed       atomic.Int64
	skipped      atomic.Int64

	mu         sync.Mutex // Guards the fields below
	startedAt  time.Time
	finishedAt time.Time
	runErr     error
}

// Options contains optional parameters for New
type Options struct {
	Metrics *metrics.Metrics
	// SharedSemaphore lets several crawlers share one request bound.
	// If nil, the crawler creates its own from cfg.MaxRequests
	SharedSemaphore *semaphore.Weighted
	// CrawlID overrides the generated crawl identifier
	CrawlID string
}

// New creates a Crawler. cfg must already have been validated (see config.AppConfig.Validate).
func New(cfg *config.AppConfig, fetcher fetch.PageFetcher, store storage.DetailStore, baseLogger *logrus.Entry, opts *Options) (*Crawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", utils.ErrConfigValidation)
	}
	if fetcher == nil || store == nil {
		return nil, errors.New("crawler: fetcher and store are required")
	}
	if cfg.NumWorkers <= 0 || cfg.MaxRequests <= 0 {
		return nil, fmt.Errorf("%w: num_workers and max_requests must be positive (got %d, %d)", utils.ErrConfigValidation, cfg.NumWorkers, cfg.MaxRequests)
	}
	startURL, err := url.Parse(cfg.StartURL)
	if err != nil || startURL.Host == "" {
		return nil, fmt.Errorf("%w: invalid start_url '%s'", utils.ErrConfigValidation, cfg.StartURL)
	}
	if opts == nil {
		opts = &Options{}
	}

	crawlID := opts.CrawlID
	if crawlID == "" {
		crawlID = uuid.NewString()
	}
	logger := baseLogger.WithFields(logrus.Fields{"component": "crawler", "crawl_id": crawlID})

	globalSem := opts.SharedSemaphore
	if globalSem == nil {
		globalSem = semaphore.NewWeighted(int64(cfg.MaxRequests))
	}

	return &Crawler{
		log:             logger,
		cfg:             cfg,
		startURL:        startURL,
		crawlID:         crawlID,
		dedupe:          config.GetEffectiveDedupeDetailURLs(*cfg),
		fetcher:         fetcher,
		store:           store,
		listing:         process.NewListingParser(cfg.Selectors, logger),
		extractor:       process.NewDetailExtractor(cfg.Selectors),
		idx:             index.New(),
		metrics:         opts.Metrics,
		globalSemaphore: globalSem,
	}, nil
}

// CrawlID returns the identifier attached to this crawl's logs and summary
func (c *Crawler) CrawlID() string { return c.crawlID }

// Index returns the index being built. It is safe to query while the crawl runs.
func (c *Crawler) Index() *index.InvertedIndex { return c.idx }

// Run crawls from the start URL and returns the populated index.
//
// All dispatched work units have finished when Run returns. On a listing failure the
// partially populated index is returned together with a *CrawlError. On cancellation or
// global timeout the partial index is returned with an error wrapping ctx.Err().
func (c *Crawler) Run(ctx context.Context) (*index.InvertedIndex, error) {
	if !c.started.CompareAndSwap(false, true) {
		return nil, errAlreadyRun
	}
	if c.cfg.GlobalCrawlTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GlobalCrawlTimeout)
		defer cancel()
	}

	c.mu.Lock()
	c.startedAt = time.Now()
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{
		"start_url":    c.cfg.StartURL,
		"workers":      c.cfg.NumWorkers,
		"queue_size":   c.cfg.QueueSize,
		"max_requests": c.cfg.MaxRequests,
	}).Info("Crawl starting")

	work := make(chan models.WorkItem, c.cfg.QueueSize)
	for i := 1; i <= c.cfg.NumWorkers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, work, c.log.WithField("worker_id", i))
	}

	walkErr := c.walk(ctx, work)
	close(work)
	c.wg.Wait()
	c.metrics.SetQueueDepth(0)

	runErr := walkErr
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	if runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)) {
		var crawlErr *CrawlError
		if !errors.As(runErr, &crawlErr) {
			runErr = fmt.Errorf("crawl interrupted: %w", runErr)
		}
	}

	c.mu.Lock()
	c.finishedAt = time.Now()
	c.runErr = runErr
	c.mu.Unlock()

	c.logSummary()
	return c.idx, runErr
}

// worker processes work units until the channel is closed.
func (c *Crawler) worker(ctx context.Context, work <-chan models.WorkItem, workerLog *logrus.Entry) {
	defer c.wg.Done()
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for item := range work {
		c.metrics.SetQueueDepth(len(work))
		c.processDetail(ctx, item, workerLog)
	}
}

// processDetail runs one work unit: fetch, extract, index. Every failure, a panic
// included, is logged, counted and recorded in the store, then discarded.
func (c *Crawler) processDetail(ctx context.Context, item models.WorkItem, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": item.URL, "listing_page": item.ListingPage})
	startTime := time.Now()
	c.metrics.WorkerBusy(1)

	var taskErr error
	var rec *models.Record
	var contentHash string

	defer func() {
		panicked := false
		if r := recover(); r != nil {
			panicked = true
			taskErr = fmt.Errorf("panic: %v", r)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in work unit")
		}

		category := utils.CategorizeError(taskErr)
		logFields := logrus.Fields{"duration": time.Since(startTime).String()}
		entry := &models.DetailDBEntry{LastAttempt: time.Now(), ListingPage: item.ListingPage}

		if taskErr != nil {
			c.failed.Add(1)
			entry.Status = models.DetailStatusFailure
			entry.ErrorType = category
			logFields["category"] = category
			switch {
			case panicked:
			case utils.IsTransport(taskErr):
				taskLog.WithFields(logFields).Warnf("Detail page could not be fetched: %v", taskErr)
			default:
				// The page arrived but yielded no record; usually a selector mismatch
				taskLog.WithFields(logFields).Warnf("Detail page not indexed: %v", taskErr)
			}
		} else {
			c.succeeded.Add(1)
			entry.Status = models.DetailStatusSuccess
			entry.ProcessedAt = entry.LastAttempt
			entry.RecordName = rec.Name
			entry.ContentHash = contentHash
			logFields["name"] = rec.Name
			taskLog.WithFields(logFields).Debug("Work unit completed")
		}

		if u, err := url.Parse(item.URL); err == nil {
			if dbErr := c.store.UpdateDetailStatus(parse.NormalizeURL(u), entry); dbErr != nil {
				taskLog.Errorf("Failed to record final status '%s': %v", entry.Status, dbErr)
			}
		}
		c.metrics.ObserveWorkUnit(taskErr, category)
		c.metrics.WorkerBusy(-1)
	}()

	if err := ctx.Err(); err != nil {
		taskErr = err
		return
	}

	taskCtx := ctx
	if c.cfg.PerPageTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.cfg.PerPageTimeout)
		defer cancel()
	}

	body, err := c.fetchPage(taskCtx, metrics.KindDetail, item.URL, taskLog)
	if err != nil {
		taskErr = err
		return
	}
	contentHash = utils.SHA256Hex(body)

	rec, err = c.extractor.Extract(body)
	if err != nil {
		taskErr = err
		return
	}

	if !c.idx.Add(rec) {
		c.metrics.IncNameCollision()
		taskLog.WithField("name", rec.Name).Info("A record with this name is already indexed; keeping the first")
	}
	c.metrics.SetIndexSize(c.idx.Len(), c.idx.TermCount())
}

// fetchPage fetches one page while holding a slot of the global request bound.
// Detail units give up on a slot after semaphore_acquire_timeout. The walker waits for
// as long as ctx allows, since a busy pool is not a listing failure.
func (c *Crawler) fetchPage(ctx context.Context, kind, pageURL string, taskLog *logrus.Entry) ([]byte, error) {
	acquireTimeout := c.cfg.SemaphoreAcquireTimeout
	if kind == metrics.KindListing {
		acquireTimeout = 0
	}
	release, err := c.acquireResources(ctx, acquireTimeout, taskLog)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	body, err := c.fetcher.Fetch(ctx, pageURL)
	c.metrics.ObserveFetch(kind, time.Since(start), err)
	return body, err
}

// acquireResources takes one slot of the global semaphore, waiting at most timeout
// (0 = until ctx is done). Returns a function that releases it.
func (c *Crawler) acquireResources(ctx context.Context, timeout time.Duration, taskLog *logrus.Entry) (func(), error) {
	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.globalSemaphore.Acquire(acquireCtx, 1); err != nil {
		// The caller's own cancellation is not a semaphore timeout
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire global semaphore: %w", ctx.Err())
		}
		return nil, fmt.Errorf("%w: acquire global semaphore: %w", utils.ErrSemaphoreTimeout, err)
	}
	taskLog.Trace("Acquired global semaphore")
	return func() { c.globalSemaphore.Release(1) }, nil
}

// Summary returns the crawl counters. It may be called while the crawl is running.
func (c *Crawler) Summary() models.CrawlSummary {
	c.mu.Lock()
	startedAt, finishedAt, runErr := c.startedAt, c.finishedAt, c.runErr
	c.mu.Unlock()

	s := models.CrawlSummary{
		CrawlID:      c.crawlID,
		StartURL:     c.cfg.StartURL,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		ListingPages: int(c.listingPages.Load()),
		Dispatched:   c.dispatched.Load(),
		Succeeded:    c.succeeded.Load(),
		Failed:       c.failed.Load(),
		Skipped:      c.skipped.Load(),
		Records:      c.idx.Len(),
		Terms:        c.idx.TermCount(),
	}
	if visited, err := c.store.GetVisitedCount(); err == nil {
		s.Visited = visited
	}
	switch {
	case !finishedAt.IsZero():
		s.Duration = finishedAt.Sub(startedAt)
	case !startedAt.IsZero():
		s.Duration = time.Since(startedAt)
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

func (c *Crawler) logSummary() {
	s := c.Summary()
	fields := logrus.Fields{
		"duration":      s.Duration.String(),
		"listing_pages": s.ListingPages,
		"dispatched":    s.Dispatched,
		"succeeded":     s.Succeeded,
		"failed":        s.Failed,
		"skipped":       s.Skipped,
		"visited":       s.Visited,
		"records":       s.Records,
		"terms":         s.Terms,
	}
	if s.Error != "" {
		c.log.WithFields(fields).Errorf("Crawl finished with error: %s", s.Error)
		return
	}
	c.log.WithFields(fields).Info("Crawl finished")
}
