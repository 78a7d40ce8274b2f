package history

import (
	"testing"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func pendingEntry(id int64, name string, at time.Time) Entry {
	return Entry{Timestamp: at, DocumentID: id, DocumentName: name, Status: enums.DocumentStatusPending, UploadedAt: at}
}

func TestLedgerRecordUpdatesInPlace(t *testing.T) {
	l := NewLedger()
	if err := l.Record(pendingEntry(1, "a.txt", base)); err != nil {
		t.Fatalf("Record pending: %v", err)
	}

	decided := base.Add(time.Minute)
	if err := l.Record(Entry{Timestamp: decided, DocumentID: 1, Status: enums.DocumentStatusAuthorized, DecidedAt: &decided}); err != nil {
		t.Fatalf("Record decision: %v", err)
	}

	if l.Len() != 1 {
		t.Fatalf("expected one row, got %d", l.Len())
	}
	rows := l.Query(Filter{})
	got := rows[0]
	if got.Status != enums.DocumentStatusAuthorized {
		t.Fatalf("expected authorized, got %q", got.Status)
	}
	if got.DocumentName != "a.txt" || !got.UploadedAt.Equal(base) {
		t.Fatalf("placeholder fields should survive the update: %+v", got)
	}
	if got.DecidedAt == nil || !got.DecidedAt.Equal(decided) || !got.Timestamp.Equal(decided) {
		t.Fatalf("decision fields not applied: %+v", got)
	}
}

func TestLedgerRecordValidation(t *testing.T) {
	l := NewLedger()
	cases := []Entry{
		{Timestamp: base, Status: enums.DocumentStatusPending},
		{Timestamp: base, DocumentID: 1, Status: "expired"},
		{DocumentID: 1, Status: enums.DocumentStatusPending},
	}
	for i, c := range cases {
		if err := l.Record(c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if l.Len() != 0 {
		t.Fatalf("invalid entries must not be stored")
	}
}

func TestLedgerQueryOrderingAndFilters(t *testing.T) {
	l := NewLedger()
	mustRecord(t, l, pendingEntry(1, "a.txt", base))
	mustRecord(t, l, pendingEntry(2, "b.txt", base))
	mustRecord(t, l, pendingEntry(3, "c.txt", base.Add(-time.Hour)))

	rejectedAt := base.Add(2 * time.Minute)
	mustRecord(t, l, Entry{Timestamp: rejectedAt, DocumentID: 3, Status: enums.DocumentStatusRejected, DecidedAt: &rejectedAt})

	rows := l.Query(Filter{})
	gotIDs := []int64{rows[0].DocumentID, rows[1].DocumentID, rows[2].DocumentID}
	want := []int64{3, 2, 1}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, gotIDs)
		}
	}

	pending := enums.DocumentStatusPending
	if rows := l.Query(Filter{Status: &pending}); len(rows) != 2 {
		t.Fatalf("expected two pending rows, got %d", len(rows))
	}

	from := base.Add(time.Minute)
	if rows := l.Query(Filter{From: &from}); len(rows) != 1 || rows[0].DocumentID != 3 {
		t.Fatalf("unexpected from filter result: %+v", rows)
	}

	to := base
	if rows := l.Query(Filter{To: &to}); len(rows) != 2 {
		t.Fatalf("to bound should be inclusive, got %d rows", len(rows))
	}
}

func TestLedgerQueryReturnsCopies(t *testing.T) {
	l := NewLedger()
	decided := base
	mustRecord(t, l, Entry{Timestamp: base, DocumentID: 1, Status: enums.DocumentStatusAuthorized, DecidedAt: &decided})

	rows := l.Query(Filter{})
	*rows[0].DecidedAt = base.Add(time.Hour)
	rows[0].Status = enums.DocumentStatusRejected

	again := l.Query(Filter{})
	if again[0].Status != enums.DocumentStatusAuthorized || !again[0].DecidedAt.Equal(base) {
		t.Fatalf("ledger state leaked through query result: %+v", again[0])
	}
}

func TestLedgerQueryPage(t *testing.T) {
	l := NewLedger()
	for i := int64(1); i <= 5; i++ {
		mustRecord(t, l, pendingEntry(i, "doc.txt", base.Add(time.Duration(i%2)*time.Minute)))
	}

	first, err := l.QueryPage(Filter{}, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("QueryPage: %v", err)
	}
	if len(first.Entries) != 2 || first.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}

	var seen []int64
	page := first
	for {
		for _, e := range page.Entries {
			seen = append(seen, e.DocumentID)
		}
		if page.NextCursor == "" {
			break
		}
		page, err = l.QueryPage(Filter{}, pagination.Params{Limit: 2, Cursor: page.NextCursor})
		if err != nil {
			t.Fatalf("QueryPage: %v", err)
		}
	}

	want := []int64{5, 3, 1, 4, 2}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}

	if _, err := l.QueryPage(Filter{}, pagination.Params{Cursor: "not-base64!"}); err == nil {
		t.Fatal("expected invalid cursor error")
	}
}

func mustRecord(t *testing.T, l *Ledger, e Entry) {
	t.Helper()
	if err := l.Record(e); err != nil {
		t.Fatalf("Record(%d): %v", e.DocumentID, err)
	}
}
