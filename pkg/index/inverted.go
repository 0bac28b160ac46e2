package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/Sriram-PR/film-indexer/pkg/models"
)

// InvertedIndex maps lowercase terms to the set of records (keyed by name) carrying them.
// Safe for concurrent use. Records are shared by pointer across buckets.
type InvertedIndex struct {
	mu       sync.RWMutex
	terms    map[string]map[string]*models.Record
	records  map[string]*models.Record // first record seen per name
	postings int
}

// Stats is a point-in-time view of index size
type Stats struct {
	Records       int    `json:"records"`
	Terms         int    `json:"terms"`
	Postings      int    `json:"postings"` // Sum of bucket sizes
	LargestTerm   string `json:"largest_term,omitempty"`
	LargestBucket int    `json:"largest_bucket"`
}

// New returns an empty index, safe for concurrent use.
func New() *InvertedIndex {
	return &InvertedIndex{
		terms:   make(map[string]map[string]*models.Record),
		records: make(map[string]*models.Record),
	}
}

// NormalizeTerm is the key form used on both insert and query.
func NormalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Insert adds rec to the bucket for term. The first record with a given name wins;
// inserting another record with the same name into the same bucket is a no-op.
func (x *InvertedIndex) Insert(term string, rec *models.Record) {
	if rec == nil {
		return
	}
	key := NormalizeTerm(term)
	if key == "" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.insertLocked(key, rec)
	if _, ok := x.records[rec.Name]; !ok {
		x.records[rec.Name] = rec
	}
}

// Add inserts rec under every one of its terms while holding the lock once,
// so readers never see a record present under some of its terms but not others.
// Returns false if a record with the same name was already in the index.
func (x *InvertedIndex) Add(rec *models.Record) bool {
	if rec == nil {
		return false
	}
	terms := rec.Terms()

	x.mu.Lock()
	defer x.mu.Unlock()

	_, existed := x.records[rec.Name]
	if !existed {
		x.records[rec.Name] = rec
	}
	for _, term := range terms {
		if key := NormalizeTerm(term); key != "" {
			x.insertLocked(key, rec)
		}
	}
	return !existed
}

func (x *InvertedIndex) insertLocked(key string, rec *models.Record) {
	bucket, ok := x.terms[key]
	if !ok {
		bucket = make(map[string]*models.Record)
		x.terms[key] = bucket
	}
	if _, dup := bucket[rec.Name]; dup {
		return
	}
	bucket[rec.Name] = rec
	x.postings++
}

// Query returns a snapshot of the records under term, sorted by name.
// An unknown term gives an empty, non-nil slice.
func (x *InvertedIndex) Query(term string) []*models.Record {
	key := NormalizeTerm(term)

	x.mu.RLock()
	bucket := x.terms[key]
	result := make([]*models.Record, 0, len(bucket))
	for _, rec := range bucket {
		result = append(result, rec)
	}
	x.mu.RUnlock()

	sortByName(result)
	return result
}

// Len returns the number of distinct record names.
func (x *InvertedIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records)
}

// TermCount returns the number of distinct terms with at least one record.
func (x *InvertedIndex) TermCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.terms)
}

// Records returns every distinct record, sorted by name.
func (x *InvertedIndex) Records() []*models.Record {
	x.mu.RLock()
	result := make([]*models.Record, 0, len(x.records))
	for _, rec := range x.records {
		result = append(result, rec)
	}
	x.mu.RUnlock()

	sortByName(result)
	return result
}

// Stats reports the index size and its largest bucket.
func (x *InvertedIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	s := Stats{
		Records:  len(x.records),
		Terms:    len(x.terms),
		Postings: x.postings,
	}
	for term, bucket := range x.terms {
		// Ties broken alphabetically so the result is stable
		if len(bucket) > s.LargestBucket || (len(bucket) == s.LargestBucket && term < s.LargestTerm) {
			s.LargestBucket = len(bucket)
			s.LargestTerm = term
		}
	}
	return s
}

func sortByName(recs []*models.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Name < recs[j].Name
	})
}
