package persistence

import (
	"context"
	"net/http"
	"time"

	"spamguard_server/core/domain"
	"spamguard_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
)

// ReviewAdapter implements ReviewRepository over any sqlx executor.
type ReviewAdapter struct {
	ext sqlx.ExtContext
}

// NewReviewAdapter creates a new ReviewAdapter
func NewReviewAdapter(ext sqlx.ExtContext) *ReviewAdapter {
	return &ReviewAdapter{ext: ext}
}

// Ensure ReviewAdapter implements ReviewRepository
var _ domain.ReviewRepository = (*ReviewAdapter)(nil)

// reviewRow represents the database row
type reviewRow struct {
	ID            int64      `db:"id"`
	TextBody      string     `db:"text_body"`
	Score         *float64   `db:"score"`
	ModelVersion  *string    `db:"model_version"`
	Status        string     `db:"status"`
	AssignedTo    *string    `db:"assigned_to"`
	CreatedAt     time.Time  `db:"created_at"`
	ReviewedAt    *time.Time `db:"reviewed_at"`
	ReviewerLabel *string    `db:"reviewer_label"`
}

func (r *reviewRow) toEntity() *domain.ReviewItem {
	return &domain.ReviewItem{
		ID:            r.ID,
		Text:          r.TextBody,
		Score:         r.Score,
		ModelVersion:  r.ModelVersion,
		Status:        r.Status,
		AssignedTo:    r.AssignedTo,
		CreatedAt:     r.CreatedAt,
		ReviewedAt:    r.ReviewedAt,
		ReviewerLabel: r.ReviewerLabel,
	}
}

// Insert stores a new review item and backfills its id
func (a *ReviewAdapter) Insert(ctx context.Context, item *domain.ReviewItem) error {
	query := `
		INSERT INTO review_items (text_body, score, model_version, status, assigned_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	status := item.Status
	if status == "" {
		status = domain.ReviewPending
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return a.ext.QueryRowxContext(
		ctx, query,
		item.Text,
		item.Score,
		item.ModelVersion,
		status,
		item.AssignedTo,
		createdAt,
	).Scan(&item.ID)
}

// ListByStatus returns review items in one status, oldest first
func (a *ReviewAdapter) ListByStatus(ctx context.Context, status string) ([]*domain.ReviewItem, error) {
	query := `
		SELECT id, text_body, score, model_version, status, assigned_to, created_at, reviewed_at, reviewer_label
		FROM review_items
		WHERE status = $1
		ORDER BY created_at ASC
	`

	var rows []reviewRow
	if err := sqlx.SelectContext(ctx, a.ext, &rows, query, status); err != nil {
		return nil, err
	}

	items := make([]*domain.ReviewItem, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toEntity())
	}
	return items, nil
}

// Resolve transitions a pending item to resolved with the reviewer's label
func (a *ReviewAdapter) Resolve(ctx context.Context, id int64, reviewerLabel string) error {
	res, err := a.ext.ExecContext(ctx, `
		UPDATE review_items
		SET status = $1, reviewer_label = $2, reviewed_at = $3
		WHERE id = $4 AND status = $5
	`, domain.ReviewResolved, reviewerLabel, time.Now().UTC(), id, domain.ReviewPending)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Wrap(ErrNotFound, apperr.CodeNotFound, "pending review item not found", http.StatusNotFound)
	}
	return nil
}
