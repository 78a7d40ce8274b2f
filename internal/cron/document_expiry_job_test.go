package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/internal/sessions"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
)

type registrySweeper struct {
	registry *sessions.Registry
	calls    []time.Time
}

func (s *registrySweeper) SweepAll(now time.Time) int {
	s.calls = append(s.calls, now)
	total := 0
	_ = s.registry.Each(func(ws *sessions.Workspace) error {
		total += ws.Store.Sweep(now)
		return nil
	})
	return total
}

type fakeSessions struct {
	live map[string]bool
	err  error
}

func (f *fakeSessions) HasSession(ctx context.Context, sessionID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.live[sessionID], nil
}

type recordingGauge struct {
	value int
	calls int
}

func (g *recordingGauge) SetOpenSessions(n int) {
	g.value = n
	g.calls++
}

func TestDocumentExpiryJobSweepsDecidedDocuments(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	registry := sessions.NewRegistry(5*time.Minute, func() time.Time { return base })
	ws, err := registry.Open("sess-a", "reviewer")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	decided, err := ws.Store.Create("contract.pdf", documents.Metadata{Type: enums.DocumentTypePDF})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pending, err := ws.Store.Create("notes.txt", documents.Metadata{Type: enums.DocumentTypeTXT})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ws.Store.Decide(decided.ID, enums.DocumentStatusAuthorized); err != nil {
		t.Fatalf("decide: %v", err)
	}

	logs := &bytes.Buffer{}
	sweeper := &registrySweeper{registry: registry}
	gauge := &recordingGauge{}
	job := newExpiryJob(t, DocumentExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: logs}),
		Sweeper:    sweeper,
		Workspaces: registry,
		Sessions:   &fakeSessions{live: map[string]bool{"sess-a": true}},
		Gauge:      gauge,
	})
	job.now = func() time.Time { return base.Add(5*time.Minute + time.Second) }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sweeper.calls) != 1 || !sweeper.calls[0].Equal(base.Add(5*time.Minute+time.Second)) {
		t.Fatalf("unexpected sweep calls %v", sweeper.calls)
	}
	if _, err := ws.Store.Get(decided.ID); !errors.Is(err, documents.ErrDocumentNotFound) {
		t.Fatalf("expected decided document swept, got %v", err)
	}
	if _, err := ws.Store.Get(pending.ID); err != nil {
		t.Fatalf("pending document must survive the sweep: %v", err)
	}
	if !strings.Contains(logs.String(), "expired decided documents") {
		t.Fatalf("expected sweep log line, got %s", logs.String())
	}
	if gauge.value != 1 {
		t.Fatalf("expected gauge 1, got %d", gauge.value)
	}
}

func TestDocumentExpiryJobClosesLapsedSessions(t *testing.T) {
	registry := sessions.NewRegistry(time.Minute, nil)
	for _, id := range []string{"sess-live", "sess-gone"} {
		if _, err := registry.Open(id, "reviewer"); err != nil {
			t.Fatalf("open %s: %v", id, err)
		}
	}
	gauge := &recordingGauge{}
	job := newExpiryJob(t, DocumentExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Sweeper:    &registrySweeper{registry: registry},
		Workspaces: registry,
		Sessions:   &fakeSessions{live: map[string]bool{"sess-live": true}},
		Gauge:      gauge,
	})

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := registry.Get("sess-gone"); ok {
		t.Fatal("lapsed session workspace should be closed")
	}
	if _, ok := registry.Get("sess-live"); !ok {
		t.Fatal("live session workspace should stay open")
	}
	if gauge.value != 1 {
		t.Fatalf("expected gauge 1, got %d", gauge.value)
	}
}

func TestDocumentExpiryJobKeepsWorkspacesOnLookupError(t *testing.T) {
	registry := sessions.NewRegistry(time.Minute, nil)
	if _, err := registry.Open("sess-a", "reviewer"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := registry.Open("sess-b", "reviewer"); err != nil {
		t.Fatalf("open: %v", err)
	}
	job := newExpiryJob(t, DocumentExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Sweeper:    &registrySweeper{registry: registry},
		Workspaces: registry,
		Sessions:   &fakeSessions{err: errors.New("redis down")},
	})

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated lookup error")
	}
	if !strings.Contains(err.Error(), "sess-a") || !strings.Contains(err.Error(), "sess-b") {
		t.Fatalf("expected both sessions in error, got %v", err)
	}
	if registry.Len() != 2 {
		t.Fatalf("workspaces must stay open when liveness is unknown, got %d", registry.Len())
	}
}

func TestDocumentExpiryJobWithoutSessionChecker(t *testing.T) {
	registry := sessions.NewRegistry(time.Minute, nil)
	if _, err := registry.Open("sess-a", "reviewer"); err != nil {
		t.Fatalf("open: %v", err)
	}
	job := newExpiryJob(t, DocumentExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}}),
		Sweeper:    &registrySweeper{registry: registry},
		Workspaces: registry,
	})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if registry.Len() != 1 {
		t.Fatal("workspace should remain without a session checker")
	}
	if job.Name() != "document-expiry" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestNewDocumentExpiryJobValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}})
	registry := sessions.NewRegistry(time.Minute, nil)
	cases := []DocumentExpiryJobParams{
		{Sweeper: &registrySweeper{registry: registry}, Workspaces: registry},
		{Logger: logg, Workspaces: registry},
		{Logger: logg, Sweeper: &registrySweeper{registry: registry}},
	}
	for i, params := range cases {
		if _, err := NewDocumentExpiryJob(params); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func newExpiryJob(t *testing.T, params DocumentExpiryJobParams) *documentExpiryJob {
	t.Helper()
	job, err := NewDocumentExpiryJob(params)
	if err != nil {
		t.Fatalf("NewDocumentExpiryJob: %v", err)
	}
	return job.(*documentExpiryJob)
}
