package models

import "time"

// WorkItem is one detail page handed from the pagination walker to a worker
type WorkItem struct {
	URL         string // Absolute detail URL, as resolved from the listing page
	ListingPage int    // 1-based listing page the link was found on
}

// DetailDBEntry stores the outcome of processing a detail URL in the visited store
type DetailDBEntry struct {
	Status      DetailStatus `json:"status"`
	ErrorType   string       `json:"error_type,omitempty"`   // Error category (on failure)
	RecordName  string       `json:"record_name,omitempty"`  // Extracted name (on success)
	ContentHash string       `json:"content_hash,omitempty"` // SHA-256 of the fetched body (on success)
	ProcessedAt time.Time    `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time    `json:"last_attempt"`
	ListingPage int          `json:"listing_page"`
}

// CrawlSummary holds the counters of a single crawl run.
type CrawlSummary struct {
	CrawlID      string        `json:"crawl_id" yaml:"crawl_id"`
	StartURL     string        `json:"start_url" yaml:"start_url"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Duration     time.Duration `json:"duration_ns" yaml:"duration"`
	ListingPages int           `json:"listing_pages" yaml:"listing_pages"`
	Dispatched   int64         `json:"dispatched" yaml:"dispatched"` // Work units submitted to the pool
	Succeeded    int64         `json:"succeeded" yaml:"succeeded"`
	Failed       int64         `json:"failed" yaml:"failed"`
	Skipped      int64         `json:"skipped" yaml:"skipped"` // Detail links already dispatched this crawl
	Visited      int           `json:"visited" yaml:"visited"` // Distinct detail URLs in the visited store
	Records      int           `json:"records" yaml:"records"`
	Terms        int           `json:"terms" yaml:"terms"`
	Error        string        `json:"error,omitempty" yaml:"error,omitempty"`
}
