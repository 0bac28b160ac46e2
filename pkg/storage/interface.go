package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/film-indexer/pkg/models"
)

// DetailStore tracks which detail URLs a crawl has dispatched and how each one ended
type DetailStore interface {
	// MarkDetailDispatched records a normalized detail URL as pending.
	// Returns true if the URL was newly added, false if this crawl had already seen it
	MarkDetailDispatched(normalizedURL string, listingPage int) (bool, error)

	// CheckDetailStatus returns the stored status and entry for a detail URL.
	// An absent URL yields DetailStatusNotFound and a nil entry
	CheckDetailStatus(normalizedURL string) (models.DetailStatus, *models.DetailDBEntry, error)

	// UpdateDetailStatus overwrites the entry for a detail URL
	UpdateDetailStatus(normalizedURL string, entry *models.DetailDBEntry) error

	// GetVisitedCount returns the number of detail URLs in the store.
	// It stays answerable after Close, so a finished crawl can still be summarized
	GetVisitedCount() (int, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// WriteVisitedLog writes every stored detail URL with its status to filePath, one per line
	WriteVisitedLog(ctx context.Context, filePath string) error

	// RunGC runs periodic value log garbage collection until ctx is done. Run it in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// VisitedStore combines all store interfaces
type VisitedStore interface {
	DetailStore
	StoreAdmin
}
