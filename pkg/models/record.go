package models

import (
	"encoding/json"
	"strings"

	"github.com/Sriram-PR/film-indexer/pkg/parse"
)

// Record is one film extracted from a detail page.
// Identity is by Name alone (case-sensitive). Records are not mutated once built,
// so the index shares a single pointer across every term bucket.
type Record struct {
	Name     string   `json:"name"`
	Actors   []string `json:"actors"`
	Year     *string  `json:"year"`     // null when absent
	Director *string  `json:"director"` // null when absent
}

// RecordOption sets an optional field on a Record under construction
type RecordOption func(*Record)

// WithYear sets the release year. Blank values leave it absent.
func WithYear(year string) RecordOption {
	return func(r *Record) {
		r.Year = optionalString(year)
	}
}

// WithDirector sets the director. Blank values leave it absent.
func WithDirector(director string) RecordOption {
	return func(r *Record) {
		r.Director = optionalString(director)
	}
}

// WithActors appends actors in the given order, skipping blanks.
func WithActors(actors ...string) RecordOption {
	return func(r *Record) {
		for _, a := range actors {
			if a = strings.TrimSpace(a); a != "" {
				r.Actors = append(r.Actors, a)
			}
		}
	}
}

// NewRecord builds a Record with every field trimmed.
// Actors is always non-nil so it serializes as [] rather than null.
func NewRecord(name string, opts ...RecordOption) *Record {
	r := &Record{
		Name:   strings.TrimSpace(name),
		Actors: []string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Terms returns the raw (un-lowercased) index terms for the record:
// tokens of the name, then year, then director, then each actor in order.
// Duplicates are kept.
func (r *Record) Terms() []string {
	terms := parse.Tokenize(r.Name)
	if r.Year != nil {
		terms = append(terms, parse.Tokenize(*r.Year)...)
	}
	if r.Director != nil {
		terms = append(terms, parse.Tokenize(*r.Director)...)
	}
	for _, actor := range r.Actors {
		terms = append(terms, parse.Tokenize(actor)...)
	}
	return terms
}

// MarshalJSON keeps "actors" an array even for records built without NewRecord.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	p := plain(r)
	if p.Actors == nil {
		p.Actors = []string{}
	}
	return json.Marshal(p)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
