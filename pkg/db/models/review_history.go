package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/docreview-backend/pkg/enums"
)

// ReviewHistory is the archived ledger row for one document of one session.
type ReviewHistory struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SessionID    string               `gorm:"column:session_id;not null;uniqueIndex:review_history_session_document_key"`
	DocumentID   int64                `gorm:"column:document_id;not null;uniqueIndex:review_history_session_document_key"`
	DocumentName string               `gorm:"column:document_name;not null"`
	Status       enums.DocumentStatus `gorm:"column:status;not null"`
	UploadedAt   time.Time            `gorm:"column:uploaded_at;not null"`
	DecidedAt    *time.Time           `gorm:"column:decided_at"`
	RecordedAt   time.Time            `gorm:"column:recorded_at;not null"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReviewHistory) TableName() string {
	return "review_history"
}
