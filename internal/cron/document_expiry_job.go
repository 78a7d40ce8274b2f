package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/sessions"
	"github.com/angelmondragon/docreview-backend/pkg/logger"
	"go.uber.org/multierr"
)

// DocumentExpiryJobParams configure the expiry sweep.
type DocumentExpiryJobParams struct {
	Logger     *logger.Logger
	Sweeper    documentSweeper
	Workspaces workspaceLister
	Sessions   sessionChecker
	Gauge      sessionGauge
}

type documentSweeper interface {
	SweepAll(now time.Time) int
}

type workspaceLister interface {
	Each(fn func(*sessions.Workspace) error) error
	Close(sessionID string) bool
	Len() int
}

type sessionChecker interface {
	HasSession(ctx context.Context, sessionID string) (bool, error)
}

type sessionGauge interface {
	SetOpenSessions(n int)
}

// NewDocumentExpiryJob builds the job that removes decided documents past
// their retention window and drops workspaces whose login has lapsed.
func NewDocumentExpiryJob(params DocumentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("document sweeper required")
	}
	if params.Workspaces == nil {
		return nil, fmt.Errorf("workspace registry required")
	}
	return &documentExpiryJob{
		logg:       params.Logger,
		sweeper:    params.Sweeper,
		workspaces: params.Workspaces,
		sessions:   params.Sessions,
		gauge:      params.Gauge,
		now:        time.Now,
	}, nil
}

type documentExpiryJob struct {
	logg       *logger.Logger
	sweeper    documentSweeper
	workspaces workspaceLister
	sessions   sessionChecker
	gauge      sessionGauge
	now        func() time.Time
}

func (j *documentExpiryJob) Name() string { return "document-expiry" }

func (j *documentExpiryJob) Run(ctx context.Context) error {
	removed := j.sweeper.SweepAll(j.now())
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "expired decided documents")
	}

	err := j.pruneWorkspaces(ctx)
	if j.gauge != nil {
		j.gauge.SetOpenSessions(j.workspaces.Len())
	}
	return err
}

// pruneWorkspaces closes workspaces whose Redis session expired or was
// revoked elsewhere. Lookup failures keep the workspace open.
func (j *documentExpiryJob) pruneWorkspaces(ctx context.Context) error {
	if j.sessions == nil {
		return nil
	}
	var errs []error
	closed := 0
	_ = j.workspaces.Each(func(ws *sessions.Workspace) error {
		live, err := j.sessions.HasSession(ctx, ws.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("check session %s: %w", ws.ID, err))
			return nil
		}
		if !live && j.workspaces.Close(ws.ID) {
			closed++
		}
		return nil
	})
	if closed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "closed", closed), "closed lapsed review sessions")
	}
	return multierr.Combine(errs...)
}
