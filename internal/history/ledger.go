package history

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
)

// Entry is one audit row per document. It is rewritten in place as the
// document moves through the lifecycle.
type Entry struct {
	Timestamp    time.Time            `json:"timestamp"`
	DocumentID   int64                `json:"document_id"`
	DocumentName string               `json:"document_name"`
	Status       enums.DocumentStatus `json:"status"`
	UploadedAt   time.Time            `json:"uploaded_at"`
	DecidedAt    *time.Time           `json:"decided_at,omitempty"`
}

// Filter narrows Query results. Zero values match everything; bounds are inclusive.
type Filter struct {
	From   *time.Time
	To     *time.Time
	Status *enums.DocumentStatus
}

func (f Filter) matches(e Entry) bool {
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	return true
}

// Ledger keeps the history of one session. Rows outlive the documents they describe.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[int64]int
}

func NewLedger() *Ledger {
	return &Ledger{index: make(map[int64]int)}
}

// Record upserts the entry keyed by DocumentID.
func (l *Ledger) Record(entry Entry) error {
	if entry.DocumentID <= 0 {
		return fmt.Errorf("document id is required")
	}
	if !entry.Status.IsValid() {
		return fmt.Errorf("invalid document status %q", entry.Status)
	}
	if entry.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.index[entry.DocumentID]; ok {
		existing := &l.entries[pos]
		existing.Status = entry.Status
		existing.Timestamp = entry.Timestamp
		existing.DecidedAt = cloneTime(entry.DecidedAt)
		if entry.DocumentName != "" {
			existing.DocumentName = entry.DocumentName
		}
		if !entry.UploadedAt.IsZero() {
			existing.UploadedAt = entry.UploadedAt
		}
		return nil
	}

	entry.DecidedAt = cloneTime(entry.DecidedAt)
	l.index[entry.DocumentID] = len(l.entries)
	l.entries = append(l.entries, entry)
	return nil
}

// Query returns matching rows, newest timestamp first. Rows sharing a
// timestamp are ordered by document id descending, which is newest-inserted first.
func (l *Ledger) Query(filter Filter) []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if filter.matches(e) {
			e.DecidedAt = cloneTime(e.DecidedAt)
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	slices.SortFunc(out, compareNewestFirst)
	return out
}

// Page is a cursor-paginated slice of Query results.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// QueryPage applies cursor pagination on top of Query.
func (l *Ledger) QueryPage(filter Filter, params pagination.Params) (Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return Page{}, err
	}

	rows := l.Query(filter)
	if cursor != nil {
		start := len(rows)
		for i, e := range rows {
			if cursor.After(e.Timestamp, e.DocumentID) {
				start = i
				break
			}
		}
		rows = rows[start:]
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := Page{Entries: rows}
	if len(rows) > limit {
		page.Entries = rows[:limit]
		last := page.Entries[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			Timestamp:  last.Timestamp,
			DocumentID: last.DocumentID,
		})
	}
	return page, nil
}

// Len returns the number of rows in the ledger.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func compareNewestFirst(a, b Entry) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.DocumentID > b.DocumentID:
		return -1
	case a.DocumentID < b.DocumentID:
		return 1
	default:
		return 0
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
