package applist

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"apptrack-engine/internal/domain"
)

var ErrNotFound = errors.New("application not found")

// List is the in-memory application collection, newest first. All mutation
// goes through id-addressed operations; ids are pairwise distinct.
type List struct {
	mu      sync.Mutex
	records []domain.ApplicationRecord
}

func New() *List {
	return &List{}
}

// Reset replaces the whole collection, e.g. after a snapshot load or logout.
func (l *List) Reset(records []domain.ApplicationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]domain.ApplicationRecord(nil), records...)
}

// Add assigns a fresh id, prepends the record and returns the stored copy.
func (l *List) Add(r domain.ApplicationRecord) domain.ApplicationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.ID = uuid.NewString()
	l.records = append([]domain.ApplicationRecord{r}, l.records...)
	return r
}

// Update replaces the record with the matching id, preserving its position.
func (l *List) Update(id string, r domain.ApplicationRecord) (domain.ApplicationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].ID == id {
			r.ID = id
			l.records[i] = r
			return r, nil
		}
	}
	return domain.ApplicationRecord{}, ErrNotFound
}

// Remove deletes the record with the matching id. Removing an absent id is
// not an error.
func (l *List) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			return
		}
	}
}

// All returns a copy of the collection in display order.
func (l *List) All() []domain.ApplicationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ApplicationRecord(nil), l.records...)
}

// Get returns the record with the matching id.
func (l *List) Get(id string) (domain.ApplicationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.records {
		if r.ID == id {
			return r, true
		}
	}
	return domain.ApplicationRecord{}, false
}

// CountByStatus is a linear scan, recomputed on demand. Lists stay at
// personal job-search scale, so no cache.
func (l *List) CountByStatus(s domain.Status) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, r := range l.records {
		if r.Status == s {
			n++
		}
	}
	return n
}

// Counts returns the per-status totals in one pass.
func (l *List) Counts() map[domain.Status]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[domain.Status]int, 4)
	for _, r := range l.records {
		out[r.Status]++
	}
	return out
}

// OnDate returns the records applied on the given ISO date (2006-01-02).
func (l *List) OnDate(date string) []domain.ApplicationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.ApplicationRecord
	for _, r := range l.records {
		if r.AppliedDate == date {
			out = append(out, r)
		}
	}
	return out
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
