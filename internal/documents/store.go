package documents

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
)

// DefaultRetentionWindow is how long a decided document stays in the active set.
const DefaultRetentionWindow = 5 * time.Minute

// StatusAll disables status filtering in ListByStatus.
const StatusAll = "all"

// Ledger receives one row per document, rewritten on every transition.
type Ledger interface {
	Record(entry history.Entry) error
}

// Options configures a Store.
type Options struct {
	RetentionWindow time.Duration
	Ledger          Ledger
	Now             func() time.Time
}

// Store owns the active documents of one review session. All methods are
// serialized by a single mutex and never perform I/O while holding it.
type Store struct {
	mu        sync.Mutex
	records   map[int64]*Record
	nextID    int64
	retention time.Duration
	ledger    Ledger
	now       func() time.Time
}

func NewStore(opts Options) *Store {
	if opts.RetentionWindow <= 0 {
		opts.RetentionWindow = DefaultRetentionWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Ledger == nil {
		opts.Ledger = history.NewLedger()
	}
	return &Store{
		records:   make(map[int64]*Record),
		nextID:    1,
		retention: opts.RetentionWindow,
		ledger:    opts.Ledger,
		now:       opts.Now,
	}
}

// RetentionWindow returns the configured retention window.
func (s *Store) RetentionWindow() time.Duration {
	return s.retention
}

// Create allocates the next id and inserts a pending record.
func (s *Store) Create(name string, meta Metadata) (Record, error) {
	if strings.TrimSpace(name) == "" {
		return Record{}, pkgerrors.New(pkgerrors.CodeValidation, "document name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &Record{
		ID:         s.nextID,
		Name:       name,
		Status:     enums.DocumentStatusPending,
		UploadedAt: now,
		Type:       meta.Type,
		MIMEType:   meta.MIMEType,
		SizeBytes:  meta.SizeBytes,
		PageCount:  meta.PageCount,
		Text:       meta.Text,
	}

	if err := s.ledger.Record(entryFor(rec, now)); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record history")
	}

	s.nextID++
	s.records[rec.ID] = rec
	return rec.clone(), nil
}

// Get returns the record with the given id.
func (s *Store) Get(id int64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, notFound(id)
	}
	return rec.clone(), nil
}

// ListByStatus returns records in id order. An empty filter or StatusAll returns every record.
func (s *Store) ListByStatus(filter string) ([]Record, error) {
	var want enums.DocumentStatus
	if filter != "" && filter != StatusAll {
		status, err := enums.ParseDocumentStatus(filter)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		want = status
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if want != "" && rec.Status != want {
			continue
		}
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Decide moves a pending record to outcome, stamps DecidedAt and ExpiresAt,
// and rewrites its ledger row. Any failure leaves the store untouched.
func (s *Store) Decide(id int64, outcome enums.DocumentStatus) (Record, error) {
	if !outcome.IsTerminal() {
		return Record{}, pkgerrors.Newf(pkgerrors.CodeValidation, "outcome must be %s or %s", enums.DocumentStatusAuthorized, enums.DocumentStatusRejected)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, notFound(id)
	}
	if rec.Status != enums.DocumentStatusPending {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, ErrInvalidTransition, fmt.Sprintf("document %d is already %s", id, rec.Status)).
			WithDetails(map[string]any{"id": id, "status": rec.Status})
	}

	now := s.now()
	expires := now.Add(s.retention)
	next := rec.clone()
	next.Status = outcome
	next.DecidedAt = &now
	next.ExpiresAt = &expires

	if err := s.ledger.Record(entryFor(&next, now)); err != nil {
		return Record{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record history")
	}

	*rec = next
	return rec.clone(), nil
}

// AttachAnalysis sets or replaces the analysis text of a record in any status.
func (s *Store) AttachAnalysis(id int64, text string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, notFound(id)
	}
	rec.Analysis = &text
	return rec.clone(), nil
}

// Sweep removes every decided record whose ExpiresAt is at or before now and
// returns how many were removed. The ledger is left untouched.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the size of the active set.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func entryFor(rec *Record, at time.Time) history.Entry {
	return history.Entry{
		Timestamp:    at,
		DocumentID:   rec.ID,
		DocumentName: rec.Name,
		Status:       rec.Status,
		UploadedAt:   rec.UploadedAt,
		DecidedAt:    rec.DecidedAt,
	}
}

func notFound(id int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrDocumentNotFound, fmt.Sprintf("document %d not found", id)).
		WithDetails(map[string]any{"id": id})
}
