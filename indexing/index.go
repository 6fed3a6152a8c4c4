package indexing

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/hupe1980/turnmesh/core"
)

// Entry is one embedded guideline.
type Entry struct {
	Guideline core.Guideline
	Vector    []float64
}

// Match is a search hit ranked by cosine similarity.
type Match struct {
	Guideline core.Guideline
	Score     float64
}

// Index is a process-local vector set keyed by guideline id.
// Concurrency: protected by RWMutex.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Put stores or replaces the entry for e.Guideline.ID.
func (x *Index) Put(e Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[e.Guideline.ID] = e
}

// Delete removes the entry for id. Unknown ids return core.ErrNotFound.
func (x *Index) Delete(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.entries[id]; !ok {
		return core.ErrNotFound
	}
	delete(x.entries, id)
	return nil
}

// Len returns the number of indexed guidelines.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search returns up to k guidelines ordered by descending similarity to
// vector. Ties are broken by guideline id. A non-positive k returns all
// entries.
func (x *Index) Search(vector []float64, k int) []Match {
	x.mu.RLock()
	matches := make([]Match, 0, len(x.entries))
	for _, e := range x.entries {
		matches = append(matches, Match{Guideline: e.Guideline, Score: Cosine(vector, e.Vector)})
	}
	x.mu.RUnlock()

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Guideline.ID, b.Guideline.ID)
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
