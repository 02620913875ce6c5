package domain

import (
	"context"
	"time"
)

// PredictionRecord is one scored message. Inline scoring creates it; the heavy
// rescore engine may later overwrite Score and PredictedLabel in place.
// TrueLabel is only ever set by human feedback, never by the core.
type PredictionRecord struct {
	ID             int64
	Text           string
	Score          *float64
	PredictedLabel *string
	TrueLabel      *string
	ModelVersion   *string
	CreatedAt      time.Time
}

// Review item statuses.
const (
	ReviewPending  = "pending"
	ReviewResolved = "resolved"
)

// ReviewItem is a human-reviewable record created when a heavy rescore
// escalates a message in the spam direction. Resolution is driven externally.
type ReviewItem struct {
	ID            int64
	Text          string
	Score         *float64
	ModelVersion  *string
	Status        string
	AssignedTo    *string
	CreatedAt     time.Time
	ReviewedAt    *time.Time
	ReviewerLabel *string
}

// PredictionRepository persists prediction records.
type PredictionRepository interface {
	GetByID(ctx context.Context, id int64) (*PredictionRecord, error)
	Insert(ctx context.Context, rec *PredictionRecord) error
	UpdateScore(ctx context.Context, id int64, score *float64, label *string) error
}

// ReviewRepository persists review items.
type ReviewRepository interface {
	Insert(ctx context.Context, item *ReviewItem) error
	ListByStatus(ctx context.Context, status string) ([]*ReviewItem, error)
	Resolve(ctx context.Context, id int64, reviewerLabel string) error
}

// RescoreStore is the transactional port the heavy rescore engine writes
// through. InTx runs fn against tx-scoped repositories; fn returning an error
// rolls the whole unit back. Each job acquires its own scope (no session
// reuse across jobs).
type RescoreStore interface {
	Predictions() PredictionRepository
	Reviews() ReviewRepository
	InTx(ctx context.Context, fn func(preds PredictionRepository, reviews ReviewRepository) error) error
}
