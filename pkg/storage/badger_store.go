package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/film-indexer/pkg/log"
	"github.com/Sriram-PR/film-indexer/pkg/models"
	"github.com/Sriram-PR/film-indexer/pkg/utils"
)

const (
	detailKeyPrefix = "detail:"    // Prefix for detail URL keys
	visitedDBDir    = "visited_db" // Suffix of the per-site directory inside state_dir
)

var errStoreClosed = errors.New("visited store not initialized or closed")

// BadgerStore implements VisitedStore on BadgerDB. Its contents last for one crawl only:
// an on-disk store is wiped when opened.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	path     string       // Empty for an in-memory store
	keyCount atomic.Int64 // Number of detail keys written
}

// NewBadgerStore opens the visited store for siteHost. An empty stateDir keeps the store
// entirely in memory.
func NewBadgerStore(stateDir, siteHost string, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger.WithField("component", "visited_store")}
	badgerLogger := log.NewBadgerLogger(logger.WithField("component", "badgerdb"))

	var opts badger.Options
	if stateDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		store.log.Debug("Using in-memory visited store")
	} else {
		store.path = filepath.Join(stateDir, utils.StateDirName(siteHost)+"_"+visitedDBDir)
		if err := os.RemoveAll(store.path); err != nil {
			store.log.Warnf("Failed to remove previous visited store %s: %v", store.path, err)
		}
		if err := os.MkdirAll(store.path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrDatabase, store.path, err)
		}
		opts = badger.DefaultOptions(store.path)
		store.log.Infof("Visited store at %s", store.path)
	}
	opts = opts.WithLogger(badgerLogger).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening badger database: %w", utils.ErrDatabase, err)
	}
	store.db = db
	return store, nil
}

// Path returns the on-disk directory, or "" for an in-memory store.
func (s *BadgerStore) Path() string {
	return s.path
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for transaction conflicts.
// Conflicts between concurrent workers on the same key resolve quickly.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("Transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

func (s *BadgerStore) open() bool {
	return s.db != nil && !s.db.IsClosed()
}

// MarkDetailDispatched implements DetailStore
func (s *BadgerStore) MarkDetailDispatched(normalizedURL string, listingPage int) (bool, error) {
	if !s.open() {
		return false, fmt.Errorf("%w: %w", utils.ErrDatabase, errStoreClosed)
	}
	key := []byte(detailKeyPrefix + normalizedURL)
	value, err := json.Marshal(&models.DetailDBEntry{
		Status:      models.DetailStatusPending,
		LastAttempt: time.Now(),
		ListingPage: listingPage,
	})
	if err != nil {
		return false, fmt.Errorf("%w: encoding pending entry for '%s': %w", utils.ErrDatabase, normalizedURL, err)
	}

	added := false
	err = s.dbUpdate(func(txn *badger.Txn) error {
		added = false
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			if errSet := txn.SetEntry(badger.NewEntry(key, value)); errSet != nil {
				return errSet
			}
			added = true
			return nil
		}
		return errGet
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB update error in MarkDetailDispatched: %v", err)
		return false, fmt.Errorf("%w: marking detail key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// CheckDetailStatus implements DetailStore
func (s *BadgerStore) CheckDetailStatus(normalizedURL string) (models.DetailStatus, *models.DetailDBEntry, error) {
	if !s.open() {
		return models.DetailStatusDBError, nil, fmt.Errorf("%w: %w", utils.ErrDatabase, errStoreClosed)
	}
	status := models.DetailStatusNotFound
	var entry *models.DetailDBEntry
	key := []byte(detailKeyPrefix + normalizedURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting detail key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}
		return item.Value(func(val []byte) error {
			var decoded models.DetailDBEntry
			if len(val) == 0 {
				status = models.DetailStatusPending
				return nil
			}
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to decode entry for key '%s': %v. Treating as 'pending'.", string(key), errJSON)
				status = models.DetailStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})
	if errView != nil {
		s.log.Errorf("DB view error in CheckDetailStatus for key '%s': %v", string(key), errView)
		return models.DetailStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateDetailStatus implements DetailStore
func (s *BadgerStore) UpdateDetailStatus(normalizedURL string, entry *models.DetailDBEntry) error {
	if !s.open() {
		return fmt.Errorf("%w: %w", utils.ErrDatabase, errStoreClosed)
	}
	key := []byte(detailKeyPrefix + normalizedURL)
	value, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: encoding entry for key '%s': %w", utils.ErrDatabase, string(key), errJSON)
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		isNew = errors.Is(errGet, badger.ErrKeyNotFound)
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB update error in UpdateDetailStatus: %v", err)
		return fmt.Errorf("%w: setting detail status for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	s.log.Debugf("Detail '%s' -> %s", normalizedURL, entry.Status)
	return nil
}

// GetVisitedCount implements DetailStore. The count is kept in memory, not read from badger
func (s *BadgerStore) GetVisitedCount() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RunGC implements StoreAdmin. In-memory stores have no value log to collect.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if s.path == "" {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.open() {
				return
			}
			var err error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("Value log GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping GC loop: %v", ctx.Err())
			return
		}
	}
}

// WriteVisitedLog implements StoreAdmin. Lines are "<url>\t<status>", in key order.
func (s *BadgerStore) WriteVisitedLog(ctx context.Context, filePath string) error {
	if !s.open() {
		return fmt.Errorf("%w: %w", utils.ErrDatabase, errStoreClosed)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create visited log '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	written := 0
	prefix := []byte(detailKeyPrefix)

	iterErr := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			url := string(item.Key()[len(prefix):])
			status := models.DetailStatusPending
			errValue := item.Value(func(val []byte) error {
				var entry models.DetailDBEntry
				if len(val) > 0 && json.Unmarshal(val, &entry) == nil {
					status = entry.Status
				}
				return nil
			})
			if errValue != nil {
				return errValue
			}
			if _, err := fmt.Fprintf(writer, "%s\t%s\n", url, status); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if iterErr != nil {
		return fmt.Errorf("writing visited log '%s': %w", filePath, iterErr)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing visited log '%s': %w", filePath, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing visited log '%s': %w", filePath, err)
	}
	s.log.Infof("Wrote %d URLs to visited log %s", written, filePath)
	return nil
}

// Close implements StoreAdmin. Safe to call more than once.
func (s *BadgerStore) Close() error {
	if !s.open() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: closing visited store: %w", utils.ErrDatabase, err)
	}
	return nil
}
