package review

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/analysis"
	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/internal/history"
	"github.com/angelmondragon/docreview-backend/internal/notifications"
	"github.com/angelmondragon/docreview-backend/internal/sessions"
	"github.com/angelmondragon/docreview-backend/internal/uploads"
	"github.com/angelmondragon/docreview-backend/pkg/db/models"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"github.com/angelmondragon/docreview-backend/pkg/metrics"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxFiles    = 10
	defaultConcurrency = 4
)

type inspector interface {
	Inspect(file uploads.File) (uploads.Result, error)
}

// Params wires the review service. Analyzer, Notifier and Archive are optional.
type Params struct {
	Sessions    *sessions.Registry
	Inspector   inspector
	Analyzer    analysis.Analyzer
	Notifier    notifications.Notifier
	Archive     history.Archive
	Metrics     *metrics.ReviewMetrics
	Logger      *logger.Logger
	MaxFiles    int
	Concurrency int
	Now         func() time.Time
}

// Service runs the reviewer-facing workflows on top of a session workspace.
type Service struct {
	sessions    *sessions.Registry
	inspector   inspector
	analyzer    analysis.Analyzer
	notifier    notifications.Notifier
	archive     history.Archive
	metrics     *metrics.ReviewMetrics
	logg        *logger.Logger
	maxFiles    int
	concurrency int
	now         func() time.Time
}

func NewService(p Params) (*Service, error) {
	if p.Sessions == nil {
		return nil, fmt.Errorf("sessions registry required")
	}
	if p.Inspector == nil {
		return nil, fmt.Errorf("upload inspector required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.MaxFiles <= 0 {
		p.MaxFiles = defaultMaxFiles
	}
	if p.Concurrency <= 0 {
		p.Concurrency = defaultConcurrency
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Service{
		sessions:    p.Sessions,
		inspector:   p.Inspector,
		analyzer:    p.Analyzer,
		notifier:    p.Notifier,
		archive:     p.Archive,
		metrics:     p.Metrics,
		logg:        p.Logger,
		maxFiles:    p.MaxFiles,
		concurrency: p.Concurrency,
		now:         p.Now,
	}, nil
}

// UploadInput is one batch of files from a reviewer.
type UploadInput struct {
	SessionID string
	Files     []uploads.File
	Notify    bool
}

// Upload inspects every file, creates one pending document per file, then
// analyses and optionally notifies outside the store lock. Inspection errors
// reject the whole batch before anything is created.
func (s *Service) Upload(ctx context.Context, in UploadInput) ([]documents.Record, error) {
	ws, err := s.workspace(in.SessionID)
	if err != nil {
		return nil, err
	}
	if len(in.Files) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	if len(in.Files) > s.maxFiles {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d files per upload", s.maxFiles)
	}

	inspected := make([]uploads.Result, 0, len(in.Files))
	for _, f := range in.Files {
		res, err := s.inspector.Inspect(f)
		if err != nil {
			return nil, err
		}
		inspected = append(inspected, res)
	}

	created := make([]documents.Record, 0, len(inspected))
	for _, res := range inspected {
		meta := res.Metadata
		meta.Text = res.Text
		rec, err := ws.Store.Create(res.Name, meta)
		if err != nil {
			return nil, err
		}
		s.metrics.IncCreated(string(rec.Type))
		s.archiveRecord(ctx, ws.ID, rec)
		created = append(created, rec)
	}

	s.analyzeAll(ctx, ws, created)

	out := make([]documents.Record, 0, len(created))
	for _, rec := range created {
		if fresh, err := ws.Store.Get(rec.ID); err == nil {
			rec = fresh
		}
		out = append(out, rec)
	}

	if in.Notify {
		s.notifyAll(ctx, ws.ID, out)
	}
	return out, nil
}

func (s *Service) analyzeAll(ctx context.Context, ws *sessions.Workspace, recs []documents.Record) {
	if s.analyzer == nil || len(recs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, rec := range recs {
		g.Go(func() error {
			_, err := s.analyze(ctx, ws, rec)
			switch {
			case err == nil:
			case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
				s.logg.Info(s.logg.WithDocumentID(ctx, rec.ID), "document left the store before analysis finished")
			default:
				logCtx := s.logg.WithFields(s.logg.WithDocumentID(ctx, rec.ID), pkgerrors.Dump(err).Fields())
				s.logg.Warn(logCtx, "document analysis failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) analyze(ctx context.Context, ws *sessions.Workspace, rec documents.Record) (documents.Record, error) {
	text, err := s.analyzer.Analyze(ctx, analysis.Request{
		Name:      rec.Name,
		Type:      rec.Type,
		PageCount: rec.PageCount,
		Text:      rec.Text,
	})
	if err != nil {
		s.metrics.IncAnalysisFailure()
		return documents.Record{}, err
	}
	return ws.Store.AttachAnalysis(rec.ID, text)
}

func (s *Service) notifyAll(ctx context.Context, sessionID string, recs []documents.Record) {
	if s.notifier == nil {
		return
	}
	for _, rec := range recs {
		note := notifications.Notification{
			SessionID:    sessionID,
			DocumentID:   rec.ID,
			DocumentName: rec.Name,
			DocumentType: rec.Type,
			OccurredAt:   s.now().UTC(),
		}
		if rec.Analysis != nil {
			note.Analysis = *rec.Analysis
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.metrics.IncNotificationFailure()
			s.logg.Error(s.logg.WithDocumentID(ctx, rec.ID), "document notification failed", err)
		}
	}
}

// Reanalyze runs analysis again for one document and returns the service
// error to the caller. The document is unchanged on failure.
func (s *Service) Reanalyze(ctx context.Context, sessionID string, id int64) (documents.Record, error) {
	if s.analyzer == nil {
		return documents.Record{}, pkgerrors.New(pkgerrors.CodeDependency, "analysis is disabled")
	}
	ws, err := s.workspace(sessionID)
	if err != nil {
		return documents.Record{}, err
	}
	s.sweep(ws)

	rec, err := ws.Store.Get(id)
	if err != nil {
		return documents.Record{}, err
	}
	return s.analyze(ctx, ws, rec)
}

// Decide applies a reviewer decision and archives the updated ledger row.
func (s *Service) Decide(ctx context.Context, sessionID string, id int64, decision enums.DocumentDecision) (documents.Record, error) {
	outcome := decision.Outcome()
	if outcome == "" {
		return documents.Record{}, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid decision %q", decision)
	}
	ws, err := s.workspace(sessionID)
	if err != nil {
		return documents.Record{}, err
	}
	s.sweep(ws)

	rec, err := ws.Store.Decide(id, outcome)
	if err != nil {
		return documents.Record{}, err
	}
	s.metrics.IncDecision(string(outcome))
	s.archiveRecord(ctx, ws.ID, rec)
	return rec, nil
}

// List sweeps expired documents and returns the active set.
func (s *Service) List(ctx context.Context, sessionID, status string) ([]documents.Record, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return nil, err
	}
	s.sweep(ws)
	return ws.Store.ListByStatus(status)
}

// Get sweeps expired documents and returns one of the rest.
func (s *Service) Get(ctx context.Context, sessionID string, id int64) (documents.Record, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return documents.Record{}, err
	}
	s.sweep(ws)
	return ws.Store.Get(id)
}

// History returns one page of the session ledger, newest first.
func (s *Service) History(ctx context.Context, sessionID string, filter history.Filter, params pagination.Params) (history.Page, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return history.Page{}, err
	}
	page, err := ws.Ledger.QueryPage(filter, params)
	if err != nil {
		return history.Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return page, nil
}

// Stats projects the session ledger into counts, latency and a daily series.
func (s *Service) Stats(ctx context.Context, sessionID string, filter history.Filter) (history.Stats, error) {
	ws, err := s.workspace(sessionID)
	if err != nil {
		return history.Stats{}, err
	}
	return history.Summarize(ws.Ledger.Query(filter)), nil
}

// Archived lists archived rows across sessions.
func (s *Service) Archived(ctx context.Context, filter history.ArchiveFilter) ([]models.ReviewHistory, error) {
	if s.archive == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "history archive is disabled")
	}
	rows, err := s.archive.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list archived history")
	}
	return rows, nil
}

// SweepAll sweeps every open workspace at now and returns the total removed.
func (s *Service) SweepAll(now time.Time) int {
	total := 0
	_ = s.sessions.Each(func(ws *sessions.Workspace) error {
		total += ws.Store.Sweep(now)
		return nil
	})
	s.metrics.AddExpired(total)
	return total
}

func (s *Service) sweep(ws *sessions.Workspace) {
	s.metrics.AddExpired(ws.Store.Sweep(s.now()))
}

func (s *Service) workspace(sessionID string) (*sessions.Workspace, error) {
	ws, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "review session is not open")
	}
	return ws, nil
}

// archiveRecord is best effort; archive failures are logged and never
// surface to the reviewer.
func (s *Service) archiveRecord(ctx context.Context, sessionID string, rec documents.Record) {
	if s.archive == nil {
		return
	}
	entry := history.Entry{
		Timestamp:    rec.UploadedAt,
		DocumentID:   rec.ID,
		DocumentName: rec.Name,
		Status:       rec.Status,
		UploadedAt:   rec.UploadedAt,
		DecidedAt:    rec.DecidedAt,
	}
	if rec.DecidedAt != nil {
		entry.Timestamp = *rec.DecidedAt
	}
	if err := s.archive.Save(ctx, sessionID, entry); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"session_id":  sessionID,
			"document_id": rec.ID,
			"error_dump":  pkgerrors.Dump(err),
		})
		s.logg.Error(logCtx, "archive history row failed", err)
	}
}
