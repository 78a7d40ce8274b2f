package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/docreview-backend/pkg/db/models"
	"github.com/angelmondragon/docreview-backend/pkg/enums"
	"github.com/angelmondragon/docreview-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Archive persists ledger rows beyond the life of a session.
type Archive interface {
	Save(ctx context.Context, sessionID string, entry Entry) error
	List(ctx context.Context, filter ArchiveFilter) ([]models.ReviewHistory, error)
}

// ArchiveFilter narrows archived rows across sessions.
type ArchiveFilter struct {
	SessionID string
	Status    *enums.DocumentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
}

type archiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository returns an archive bound to the provided database.
func NewArchiveRepository(db *gorm.DB) (Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("archive db required")
	}
	return &archiveRepository{db: db}, nil
}

func (r *archiveRepository) conn(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return r.db
	}
	return r.db.WithContext(ctx)
}

// Save upserts on (session_id, document_id) so each document keeps one archived row.
func (r *archiveRepository) Save(ctx context.Context, sessionID string, entry Entry) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if entry.DocumentID <= 0 {
		return fmt.Errorf("document id is required")
	}
	if !entry.Status.IsValid() {
		return fmt.Errorf("invalid document status %q", entry.Status)
	}

	row := &models.ReviewHistory{
		ID:           uuid.New(),
		SessionID:    sessionID,
		DocumentID:   entry.DocumentID,
		DocumentName: entry.DocumentName,
		Status:       entry.Status,
		UploadedAt:   entry.UploadedAt.UTC(),
		DecidedAt:    utcPtr(entry.DecidedAt),
		RecordedAt:   entry.Timestamp.UTC(),
	}

	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document_name", "status", "decided_at", "recorded_at", "updated_at"}),
		}).
		Create(row).Error
}

func (r *archiveRepository) List(ctx context.Context, filter ArchiveFilter) ([]models.ReviewHistory, error) {
	query := r.conn(ctx).Model(&models.ReviewHistory{})
	if filter.SessionID != "" {
		query = query.Where("session_id = ?", filter.SessionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		query = query.Where("recorded_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("recorded_at <= ?", filter.To.UTC())
	}

	var rows []models.ReviewHistory
	if err := query.
		Order("recorded_at DESC").
		Order("document_id DESC").
		Limit(pagination.NormalizeLimit(filter.Limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
