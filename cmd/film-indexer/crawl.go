package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/config"
	"github.com/Sriram-PR/film-indexer/pkg/crawler"
	"github.com/Sriram-PR/film-indexer/pkg/fetch"
	"github.com/Sriram-PR/film-indexer/pkg/metrics"
	"github.com/Sriram-PR/film-indexer/pkg/server"
	"github.com/Sriram-PR/film-indexer/pkg/storage"
)

const (
	dbGCInterval  = 10 * time.Minute
	shutdownGrace = 30 * time.Second
)

// crawlOptions are the flags of the crawl command
type crawlOptions struct {
	commonFlags
	outPath        string // JSONL export
	summaryPath    string // YAML crawl report
	visitedLogPath string
	pprofAddr      string
}

// serveOptions are the flags of the serve command
type serveOptions struct {
	commonFlags
	listenAddr string
}

func runCrawl(args []string) {
	var opts crawlOptions
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	opts.register(fs)
	fs.StringVar(&opts.outPath, "out", "", "Write the records as JSON lines to this file")
	fs.StringVar(&opts.summaryPath, "summary", "", "Write the crawl summary as YAML to this file")
	fs.StringVar(&opts.visitedLogPath, "visited-log", "", "Write every dispatched detail URL and its final status to this file")
	fs.StringVar(&opts.pprofAddr, "pprof", "", "pprof and metrics address, e.g. localhost:6060 (disabled by default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: film-indexer crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  film-indexer crawl -config config.yaml -out films.jsonl\n")
		fmt.Fprintf(os.Stderr, "  film-indexer crawl -config '' -start-url 'https://www.imdb.com/search/title/?genres=drama' -summary report.yaml\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log, shutdownGrace)
	exitCode := doCrawl(ctx, opts, log, os.Stdout)
	stop()
	os.Exit(exitCode)
}

// doCrawl runs one crawl and writes the requested artefacts.
// Returns exit code (0 = success or user cancellation, 1 = error).
func doCrawl(ctx context.Context, opts crawlOptions, log *logrus.Logger, stdout io.Writer) int {
	appCfg, err := loadAndValidateConfig(opts.commonFlags, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	m := metrics.New(prometheus.NewRegistry())
	startPprof(opts.pprofAddr, m, log)

	c, store, err := newCrawl(ctx, appCfg, log, m)
	if err != nil {
		log.Errorf("Failed to initialize crawl: %v", err)
		return 1
	}
	defer store.Close()

	idx, runErr := c.Run(ctx)
	summary := c.Summary()

	var export *crawler.ExportResult
	if opts.outPath != "" {
		if runErr != nil {
			log.Warnf("Skipping export of a partial index due to crawl error: %v", runErr)
		} else if export, err = crawler.WriteRecordsJSONL(idx, opts.outPath, log.WithField("component", "export")); err != nil {
			log.Errorf("Export failed: %v", err)
			return 1
		}
	}

	if opts.summaryPath != "" {
		if err := crawler.WriteSummaryYAML(summary, export, opts.summaryPath); err != nil {
			log.Errorf("Failed to write crawl summary: %v", err)
		} else {
			log.Infof("Crawl summary written to %s", opts.summaryPath)
		}
	}

	if opts.visitedLogPath != "" {
		if ctx.Err() != nil {
			log.Warnf("Skipping visited log due to context error: %v", ctx.Err())
		} else if err := store.WriteVisitedLog(ctx, opts.visitedLogPath); err != nil {
			log.Errorf("Error writing visited log: %v", err)
		}
	}

	fmt.Fprintf(stdout, "Indexed %d records (%d terms) from %d listing pages in %s\n",
		summary.Records, summary.Terms, summary.ListingPages, summary.Duration.Round(time.Millisecond))
	if export != nil {
		fmt.Fprintf(stdout, "Exported %d records to %s (sha256 %s)\n", export.Records, export.Path, export.Checksum)
	}
	return exitCodeFor(runErr, log)
}

func runServe(args []string) {
	var opts serveOptions
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	opts.register(fs)
	fs.StringVar(&opts.listenAddr, "listen", "", "Listen address (overrides server.listen_addr)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: film-indexer serve [options]\n\nCrawls first, then serves GET /terms/{term} (and GET /{term}).\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	log := setupLogger(opts.logLevel, os.Stderr)
	ctx, stop := signalContext(log, shutdownGrace)
	exitCode := doServe(ctx, opts, log)
	stop()
	os.Exit(exitCode)
}

// doServe crawls, then serves the finished index until ctx is done. A crawl that ends in
// error is never served.
func doServe(ctx context.Context, opts serveOptions, log *logrus.Logger) int {
	appCfg, err := loadAndValidateConfig(opts.commonFlags, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if opts.listenAddr != "" {
		appCfg.Server.ListenAddr = opts.listenAddr
	}
	logAppConfig(appCfg, log)

	m := metrics.New(prometheus.NewRegistry())
	c, store, err := newCrawl(ctx, appCfg, log, m)
	if err != nil {
		log.Errorf("Failed to initialize crawl: %v", err)
		return 1
	}
	idx, runErr := c.Run(ctx)
	store.Close() // Not needed once the crawl is done
	if runErr != nil {
		log.Error("Refusing to serve a partial index")
		return max(exitCodeFor(runErr, log), 1)
	}

	srv, err := server.New(idx, appCfg.Server, log.WithField("crawl_id", c.CrawlID()),
		server.WithMetrics(m), server.WithSummary(c.Summary()))
	if err != nil {
		log.Errorf("Failed to create server: %v", err)
		return 1
	}
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Errorf("Server error: %v", err)
		return 1
	}
	return 0
}

// newCrawl wires the visited store, HTTP fetcher and crawler for appCfg.
// The caller must close the returned store once the crawl has finished.
func newCrawl(ctx context.Context, appCfg *config.AppConfig, log *logrus.Logger, m *metrics.Metrics) (*crawler.Crawler, *storage.BadgerStore, error) {
	startURL, err := url.Parse(appCfg.StartURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse start_url: %w", err)
	}
	logEntry := logrus.NewEntry(log)

	store, err := storage.NewBadgerStore(appCfg.StateDir, startURL.Host, logEntry)
	if err != nil {
		return nil, nil, fmt.Errorf("open visited store: %w", err)
	}
	go store.RunGC(ctx, dbGCInterval)

	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.UserAgent, logEntry)
	fetcher := fetch.NewFetcher(httpClient, appCfg, logEntry.WithField("component", "fetcher"), fetch.WithMetrics(m))
	pages := fetch.NewPageFetcher(fetcher, appCfg.MaxPageSizeBytes, logEntry)

	c, err := crawler.New(appCfg, pages, store, logEntry, &crawler.Options{Metrics: m})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return c, store, nil
}

// exitCodeFor maps a crawl error to a process exit code. Cancellation by the user is not
// a failure; a global timeout or a failed listing page is.
func exitCodeFor(err error, log *logrus.Logger) int {
	var crawlErr *crawler.CrawlError
	switch {
	case err == nil:
		log.Info("Crawl completed successfully.")
		return 0
	case errors.As(err, &crawlErr):
		log.Errorf("Crawl stopped at listing page %d: %v", crawlErr.Page, crawlErr.Err)
		return 1
	case errors.Is(err, context.Canceled):
		log.Warn("Crawl cancelled gracefully.")
		return 0
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Crawl timed out (global timeout).")
		return 1
	default:
		log.Errorf("Crawl finished with error: %v", err)
		return 1
	}
}
