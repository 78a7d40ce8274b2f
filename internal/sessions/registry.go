package sessions

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/docreview-backend/internal/documents"
	"github.com/angelmondragon/docreview-backend/internal/history"
	pkgerrors "github.com/angelmondragon/docreview-backend/pkg/errors"
)

// Workspace is the state of one reviewer session: its active documents and
// the ledger those documents write to.
type Workspace struct {
	ID       string
	Reviewer string
	OpenedAt time.Time
	Store    *documents.Store
	Ledger   *history.Ledger
}

// Registry maps session ids to workspaces. Workspaces never share state.
type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
	retention  time.Duration
	now        func() time.Time
}

func NewRegistry(retention time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		workspaces: make(map[string]*Workspace),
		retention:  retention,
		now:        now,
	}
}

// Open returns the workspace for sessionID, creating it on first use.
func (r *Registry) Open(sessionID, reviewer string) (*Workspace, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.workspaces[sessionID]; ok {
		return ws, nil
	}

	ledger := history.NewLedger()
	ws := &Workspace{
		ID:       sessionID,
		Reviewer: reviewer,
		OpenedAt: r.now(),
		Ledger:   ledger,
		Store: documents.NewStore(documents.Options{
			RetentionWindow: r.retention,
			Ledger:          ledger,
			Now:             r.now,
		}),
	}
	r.workspaces[sessionID] = ws
	return ws, nil
}

// Get looks up an open workspace.
func (r *Registry) Get(sessionID string) (*Workspace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ws, ok := r.workspaces[sessionID]
	return ws, ok
}

// Close discards the workspace. Closing an unknown session is a no-op.
func (r *Registry) Close(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[sessionID]; !ok {
		return false
	}
	delete(r.workspaces, sessionID)
	return true
}

// Each calls fn for every open workspace in session id order. fn runs
// without the registry lock held.
func (r *Registry) Each(fn func(*Workspace) error) error {
	r.mu.RLock()
	list := make([]*Workspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		list = append(list, ws)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	for _, ws := range list {
		if err := fn(ws); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of open workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}
