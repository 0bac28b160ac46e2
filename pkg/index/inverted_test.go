package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/film-indexer/pkg/models"
)

func names(recs []*models.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func TestQuery_UnknownTermIsEmptyNotNil(t *testing.T) {
	idx := New()

	result := idx.Query("nothing")

	require.NotNil(t, result)
	assert.Empty(t, result)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 0, idx.TermCount())
}

func TestInsert_NormalizesKey(t *testing.T) {
	idx := New()
	rec := models.NewRecord("The Godfather")

	idx.Insert("Godfather", rec)

	for _, q := range []string{"godfather", "GODFATHER", "Godfather", " godfather "} {
		result := idx.Query(q)
		require.Len(t, result, 1, "query %q", q)
		assert.Same(t, rec, result[0])
	}
	assert.Equal(t, 1, idx.TermCount())
	assert.Equal(t, 1, idx.Len())
}

func TestInsert_IgnoresNilAndBlank(t *testing.T) {
	idx := New()

	idx.Insert("term", nil)
	idx.Insert("   ", models.NewRecord("Heat"))

	assert.Equal(t, 0, idx.TermCount())
}

func TestInsert_FirstSameNameWins(t *testing.T) {
	idx := New()
	first := models.NewRecord("Heat", models.WithYear("1995"))
	second := models.NewRecord("Heat", models.WithYear("1986"))

	idx.Insert("heat", first)
	idx.Insert("heat", second)

	result := idx.Query("heat")
	require.Len(t, result, 1)
	assert.Same(t, first, result[0])
}

func TestInsert_ReinsertIsNoOp(t *testing.T) {
	idx := New()
	rec := models.NewRecord("Heat")

	idx.Insert("heat", rec)
	idx.Insert("heat", rec)
	idx.Insert("HEAT", rec)

	assert.Len(t, idx.Query("heat"), 1)
	assert.Equal(t, 1, idx.Stats().Postings)
}

func TestAdd_IndexesEveryTerm(t *testing.T) {
	idx := New()
	rec := models.NewRecord("The Godfather",
		models.WithYear("1972"),
		models.WithDirector("Francis Ford Coppola"),
		models.WithActors("Marlon Brando", "Al Pacino"))

	added := idx.Add(rec)

	assert.True(t, added)
	for _, term := range rec.Terms() {
		result := idx.Query(term)
		require.Len(t, result, 1, "term %q", term)
		assert.Same(t, rec, result[0])
	}
	assert.Len(t, idx.Query("1972"), 1)
	assert.Len(t, idx.Query("coppola"), 1)
	assert.Empty(t, idx.Query("pulp"))
}

func TestAdd_DuplicateTermsWithinRecord(t *testing.T) {
	idx := New()
	rec := models.NewRecord("New York New York", models.WithActors("Liza Minnelli"))

	idx.Add(rec)

	assert.Len(t, idx.Query("new"), 1)
	assert.Len(t, idx.Query("york"), 1)
	assert.Equal(t, 4, idx.TermCount()) // new, york, liza, minnelli
}

func TestAdd_ReportsNameCollision(t *testing.T) {
	idx := New()
	first := models.NewRecord("Heat", models.WithActors("Al Pacino"))
	second := models.NewRecord("Heat", models.WithActors("Burt Reynolds"))

	assert.True(t, idx.Add(first))
	assert.False(t, idx.Add(second))

	// Shared bucket keeps the first record
	heat := idx.Query("heat")
	require.Len(t, heat, 1)
	assert.Same(t, first, heat[0])

	// Terms only the second record carries still point at it
	burt := idx.Query("burt")
	require.Len(t, burt, 1)
	assert.Same(t, second, burt[0])

	assert.Equal(t, 1, idx.Len())
	records := idx.Records()
	require.Len(t, records, 1)
	assert.Same(t, first, records[0])
}

func TestQuery_SortedByName(t *testing.T) {
	idx := New()
	for _, name := range []string{"Zodiac", "Alien", "Memento", "Brazil"} {
		idx.Add(models.NewRecord(name, models.WithActors("Jane Doe")))
	}

	assert.Equal(t, []string{"Alien", "Brazil", "Memento", "Zodiac"}, names(idx.Query("jane")))
	assert.Equal(t, []string{"Alien", "Brazil", "Memento", "Zodiac"}, names(idx.Records()))
}

func TestQuery_ReturnsSnapshot(t *testing.T) {
	idx := New()
	idx.Add(models.NewRecord("Alien", models.WithYear("1979")))

	snapshot := idx.Query("1979")
	idx.Add(models.NewRecord("Apocalypse Now", models.WithYear("1979")))

	assert.Len(t, snapshot, 1, "earlier snapshot must not change")
	assert.Len(t, idx.Query("1979"), 2)
}

func TestStats(t *testing.T) {
	idx := New()
	idx.Add(models.NewRecord("Alien", models.WithActors("Jane Doe")))
	idx.Add(models.NewRecord("Brazil", models.WithActors("Jane Doe")))
	idx.Add(models.NewRecord("Heat", models.WithActors("Jane Doe")))

	s := idx.Stats()

	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 5, s.Terms) // alien, brazil, heat, jane, doe
	assert.Equal(t, 9, s.Postings)
	assert.Equal(t, 3, s.LargestBucket)
	assert.Equal(t, "doe", s.LargestTerm)
}

func TestConcurrentAdd(t *testing.T) {
	const (
		workers    = 8
		perWorker  = 25
		iterations = 20
	)

	for iter := 0; iter < iterations; iter++ {
		idx := New()
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					rec := models.NewRecord(fmt.Sprintf("Film w%d n%d", w, i),
						models.WithYear(fmt.Sprintf("%d", 1950+i)),
						models.WithActors("Jane Doe", fmt.Sprintf("Actor%d", w)))
					idx.Add(rec)
					// Interleave readers with writers
					_ = idx.Query("jane")
					_ = idx.Stats()
				}
			}(w)
		}
		wg.Wait()

		total := workers * perWorker
		require.Equal(t, total, idx.Len(), "iteration %d", iter)
		require.Len(t, idx.Query("film"), total, "iteration %d", iter)
		require.Len(t, idx.Query("JANE"), total, "iteration %d", iter)
		require.Len(t, idx.Query("doe"), total, "iteration %d", iter)
		for w := 0; w < workers; w++ {
			require.Len(t, idx.Query(fmt.Sprintf("w%d", w)), perWorker, "iteration %d", iter)
			require.Len(t, idx.Query(fmt.Sprintf("actor%d", w)), perWorker, "iteration %d", iter)
		}
	}
}

func TestConcurrentInsert_SameTerm(t *testing.T) {
	idx := New()
	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				idx.Insert("shared", models.NewRecord(fmt.Sprintf("r-%02d-%03d", g, i)))
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, idx.Query("shared"), goroutines*perGoroutine)
	assert.Equal(t, goroutines*perGoroutine, idx.Len())
}
