package documents

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type failingLedger struct {
	err error
}

func (f failingLedger) Record(history.Entry) error { return f.err }

func newTestStore(t *testing.T, start time.Time, window time.Duration) (*Store, *history.Ledger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: start}
	ledger := history.NewLedger()
	store := NewStore(Options{RetentionWindow: window, Ledger: ledger, Now: clock.Now})
	return store, ledger, clock
}

func TestCreateThenGetIsPending(t *testing.T) {
	start := time.Unix(500, 0)
	store, ledger, _ := newTestStore(t, start, time.Minute)

	created, err := store.Create("a.txt", Metadata{Type: enums.DocumentTypeTXT, SizeBytes: 12})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.Get(created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != enums.DocumentStatusPending {
		t.Fatalf("expected pending, got %q", got.Status)
	}
	if got.DecidedAt != nil || got.ExpiresAt != nil {
		t.Fatalf("pending record must not carry decision timestamps: %+v", got)
	}
	if !got.UploadedAt.Equal(start) || got.Type != enums.DocumentTypeTXT || got.SizeBytes != 12 {
		t.Fatalf("unexpected record: %+v", got)
	}

	rows := ledger.Query(history.Filter{})
	if len(rows) != 1 || rows[0].Status != enums.DocumentStatusPending {
		t.Fatalf("expected pending placeholder row, got %+v", rows)
	}
}

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	store, _, clock := newTestStore(t, time.Unix(0, 0), time.Second)

	var last int64
	for i := 0; i < 5; i++ {
		rec, err := store.Create("doc.txt", Metadata{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if rec.ID <= last {
			t.Fatalf("id %d not greater than %d", rec.ID, last)
		}
		last = rec.ID
		if _, err := store.Decide(rec.ID, enums.DocumentStatusAuthorized); err != nil {
			t.Fatalf("Decide: %v", err)
		}
	}

	clock.Set(time.Unix(10, 0))
	store.Sweep(clock.Now())
	rec, err := store.Create("after-sweep.txt", Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != 6 {
		t.Fatalf("ids must not be reused after sweep, got %d", rec.ID)
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	store, ledger, _ := newTestStore(t, time.Unix(0, 0), time.Second)

	_, err := store.Create("  ", Metadata{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Len() != 0 || ledger.Len() != 0 {
		t.Fatal("failed create must not mutate state")
	}
}

func TestDecideSetsTimestampsAndBlocksRedecide(t *testing.T) {
	store, _, clock := newTestStore(t, time.Unix(900, 0), 300*time.Second)
	rec, _ := store.Create("a.txt", Metadata{})

	clock.Set(time.Unix(1000, 0))
	decided, err := store.Decide(rec.ID, enums.DocumentStatusAuthorized)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decided.Status != enums.DocumentStatusAuthorized {
		t.Fatalf("expected authorized, got %q", decided.Status)
	}
	if decided.DecidedAt == nil || !decided.DecidedAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("unexpected decidedAt: %v", decided.DecidedAt)
	}
	if decided.ExpiresAt == nil || !decided.ExpiresAt.Equal(time.Unix(1300, 0)) {
		t.Fatalf("unexpected expiresAt: %v", decided.ExpiresAt)
	}

	for _, outcome := range []enums.DocumentStatus{enums.DocumentStatusAuthorized, enums.DocumentStatusRejected} {
		_, err := store.Decide(rec.ID, outcome)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("expected state conflict code, got %v", err)
		}
	}
}

func TestDecideRejectsNonTerminalOutcome(t *testing.T) {
	store, _, _ := newTestStore(t, time.Unix(0, 0), time.Second)
	rec, _ := store.Create("a.txt", Metadata{})

	_, err := store.Decide(rec.ID, enums.DocumentStatusPending)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := store.Get(rec.ID)
	if got.Status != enums.DocumentStatusPending {
		t.Fatalf("status changed on failed decide: %q", got.Status)
	}
}

func TestDecideUnknownIDIsNotFound(t *testing.T) {
	store, _, _ := newTestStore(t, time.Unix(0, 0), time.Second)

	_, err := store.Decide(999, enums.DocumentStatusRejected)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found code, got %v", err)
	}
}

func TestDecideLedgerFailureLeavesStoreUntouched(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	ledger := history.NewLedger()
	store := NewStore(Options{RetentionWindow: time.Second, Ledger: ledger, Now: clock.Now})
	rec, _ := store.Create("a.txt", Metadata{})

	store.ledger = failingLedger{err: errors.New("ledger down")}
	if _, err := store.Decide(rec.ID, enums.DocumentStatusAuthorized); err == nil {
		t.Fatal("expected ledger error")
	}
	got, _ := store.Get(rec.ID)
	if got.Status != enums.DocumentStatusPending || got.DecidedAt != nil {
		t.Fatalf("record mutated despite failure: %+v", got)
	}
}

func TestListByStatus(t *testing.T) {
	store, _, _ := newTestStore(t, time.Unix(0, 0), time.Minute)
	a, _ := store.Create("a.txt", Metadata{})
	b, _ := store.Create("b.txt", Metadata{})
	c, _ := store.Create("c.txt", Metadata{})
	if _, err := store.Decide(b.ID, enums.DocumentStatusRejected); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	all, err := store.ListByStatus(StatusAll)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(all) != 3 || all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Fatalf("expected insertion order, got %+v", all)
	}

	pending, _ := store.ListByStatus("pending")
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != c.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	rejected, _ := store.ListByStatus("rejected")
	if len(rejected) != 1 || rejected[0].ID != b.ID {
		t.Fatalf("unexpected rejected list: %+v", rejected)
	}

	if _, err := store.ListByStatus("archived"); err == nil {
		t.Fatal("expected invalid filter error")
	}
}

func TestAttachAnalysisInAnyStatus(t *testing.T) {
	store, _, _ := newTestStore(t, time.Unix(0, 0), time.Minute)
	rec, _ := store.Create("a.txt", Metadata{})

	if _, err := store.Decide(rec.ID, enums.DocumentStatusAuthorized); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	got, err := store.AttachAnalysis(rec.ID, "looks fine")
	if err != nil {
		t.Fatalf("AttachAnalysis: %v", err)
	}
	if got.Analysis == nil || *got.Analysis != "looks fine" {
		t.Fatalf("analysis not attached: %+v", got)
	}
	if _, err := store.AttachAnalysis(42, "x"); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepBoundaryAndIdempotence(t *testing.T) {
	store, _, clock := newTestStore(t, time.Unix(1000, 0), 300*time.Second)
	rec, _ := store.Create("a.txt", Metadata{})
	pending, _ := store.Create("b.txt", Metadata{})
	if _, err := store.Decide(rec.ID, enums.DocumentStatusAuthorized); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if n := store.Sweep(time.Unix(1299, 0)); n != 0 {
		t.Fatalf("expected nothing swept before expiry, got %d", n)
	}
	if n := store.Sweep(time.Unix(1300, 0)); n != 1 {
		t.Fatalf("expected sweep at expiresAt to remove the record, got %d", n)
	}
	if n := store.Sweep(time.Unix(1300, 0)); n != 0 {
		t.Fatalf("second sweep with same now removed %d", n)
	}

	clock.Set(time.Unix(1_000_000, 0))
	store.Sweep(clock.Now())
	if _, err := store.Get(pending.ID); err != nil {
		t.Fatalf("pending records never expire: %v", err)
	}
}

func TestScenarioAuthorizeThenExpire(t *testing.T) {
	store, ledger, clock := newTestStore(t, time.Unix(900, 0), 300*time.Second)

	rec, err := store.Create("a.txt", Metadata{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID != 1 || rec.Status != enums.DocumentStatusPending {
		t.Fatalf("unexpected created record: %+v", rec)
	}

	clock.Set(time.Unix(1000, 0))
	decided, err := store.Decide(1, enums.DocumentStatusAuthorized)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !decided.ExpiresAt.Equal(time.Unix(1300, 0)) {
		t.Fatalf("expected expiresAt 1300, got %v", decided.ExpiresAt)
	}

	store.Sweep(time.Unix(1299, 0))
	if _, err := store.Get(1); err != nil {
		t.Fatalf("record should still be active at 1299: %v", err)
	}

	store.Sweep(time.Unix(1301, 0))
	if _, err := store.Get(1); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("record should be gone at 1301, got %v", err)
	}

	rows := ledger.Query(history.Filter{})
	if len(rows) != 1 || rows[0].DocumentID != 1 || rows[0].Status != enums.DocumentStatusAuthorized {
		t.Fatalf("expected one authorized history row, got %+v", rows)
	}
}

func TestScenarioRejectThenAuthorize(t *testing.T) {
	store, ledger, _ := newTestStore(t, time.Unix(0, 0), time.Minute)
	if _, err := store.Create("a.txt", Metadata{}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec, err := store.Create("b.txt", Metadata{})
	if err != nil || rec.ID != 2 {
		t.Fatalf("expected id 2, got %d err=%v", rec.ID, err)
	}
	if _, err := store.Decide(2, enums.DocumentStatusRejected); err != nil {
		t.Fatalf("Decide reject: %v", err)
	}
	if _, err := store.Decide(2, enums.DocumentStatusAuthorized); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	got, _ := store.Get(2)
	if got.Status != enums.DocumentStatusRejected {
		t.Fatalf("final status should stay rejected, got %q", got.Status)
	}

	rejected := enums.DocumentStatusRejected
	if rows := ledger.Query(history.Filter{Status: &rejected}); len(rows) != 1 || rows[0].DocumentID != 2 {
		t.Fatalf("expected a single rejected row for id 2, got %+v", rows)
	}
}

func TestConcurrentCreateDecideSweep(t *testing.T) {
	store, ledger, clock := newTestStore(t, time.Unix(0, 0), time.Second)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				rec, err := store.Create("doc.txt", Metadata{})
				if err != nil {
					t.Errorf("Create: %v", err)
					return
				}
				if _, err := store.Decide(rec.ID, enums.DocumentStatusRejected); err != nil {
					t.Errorf("Decide: %v", err)
					return
				}
				store.Sweep(clock.Now())
			}
		}()
	}
	wg.Wait()

	if got := ledger.Len(); got != workers*perWorker {
		t.Fatalf("expected %d history rows, got %d", workers*perWorker, got)
	}
	if removed := store.Sweep(time.Unix(2, 0)); removed != workers*perWorker {
		t.Fatalf("expected every record to expire, removed %d", removed)
	}
}
