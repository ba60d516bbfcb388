package ratings

import "sync"

// Table is the shared card-name to desirability mapping. Sessions take an
// immutable snapshot at creation; the live table keeps updating underneath
// from the periodic sync without touching running drafts.
type Table struct {
	mu      sync.RWMutex
	ratings map[string]float64
}

// NewTable creates an empty rating table
func NewTable() *Table {
	return &Table{ratings: make(map[string]float64)}
}

// NewTableFrom creates a table seeded with the given ratings
func NewTableFrom(seed map[string]float64) *Table {
	t := NewTable()
	for name, rating := range seed {
		t.ratings[name] = rating
	}
	return t
}

// Set stores or replaces the rating for a card name
func (t *Table) Set(cardName string, rating float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ratings[cardName] = rating
	return nil
}

// Get returns the rating for a card name and whether it is present
func (t *Table) Get(cardName string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rating, ok := t.ratings[cardName]
	return rating, ok
}

// Len returns the number of rated cards
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ratings)
}

// Snapshot returns an independent copy of the table for a single session.
func (t *Table) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]float64, len(t.ratings))
	for name, rating := range t.ratings {
		out[name] = rating
	}
	return out
}
