package persistence

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"spamguard_server/core/domain"
	"spamguard_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
)

// PredictionAdapter implements PredictionRepository over any sqlx executor,
// so the same adapter serves both pool-scoped and transaction-scoped access.
type PredictionAdapter struct {
	ext sqlx.ExtContext
}

// NewPredictionAdapter creates a new PredictionAdapter
func NewPredictionAdapter(ext sqlx.ExtContext) *PredictionAdapter {
	return &PredictionAdapter{ext: ext}
}

// Ensure PredictionAdapter implements PredictionRepository
var _ domain.PredictionRepository = (*PredictionAdapter)(nil)

// predictionRow represents the database row
type predictionRow struct {
	ID             int64     `db:"id"`
	TextBody       string    `db:"text_body"`
	Score          *float64  `db:"score"`
	PredictedLabel *string   `db:"predicted_label"`
	TrueLabel      *string   `db:"true_label"`
	ModelVersion   *string   `db:"model_version"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *predictionRow) toEntity() *domain.PredictionRecord {
	return &domain.PredictionRecord{
		ID:             r.ID,
		Text:           r.TextBody,
		Score:          r.Score,
		PredictedLabel: r.PredictedLabel,
		TrueLabel:      r.TrueLabel,
		ModelVersion:   r.ModelVersion,
		CreatedAt:      r.CreatedAt,
	}
}

// GetByID retrieves one prediction record
func (a *PredictionAdapter) GetByID(ctx context.Context, id int64) (*domain.PredictionRecord, error) {
	query := `
		SELECT id, text_body, score, predicted_label, true_label, model_version, created_at
		FROM prediction_logs
		WHERE id = $1
	`

	var row predictionRow
	if err := sqlx.GetContext(ctx, a.ext, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(ErrNotFound, apperr.CodeNotFound, "prediction record not found", http.StatusNotFound)
		}
		return nil, err
	}
	return row.toEntity(), nil
}

// Insert stores a new prediction record and backfills its id
func (a *PredictionAdapter) Insert(ctx context.Context, rec *domain.PredictionRecord) error {
	query := `
		INSERT INTO prediction_logs (text_body, score, predicted_label, true_label, model_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return a.ext.QueryRowxContext(
		ctx, query,
		rec.Text,
		rec.Score,
		rec.PredictedLabel,
		rec.TrueLabel,
		rec.ModelVersion,
		createdAt,
	).Scan(&rec.ID)
}

// UpdateScore overwrites score and predicted label in place
func (a *PredictionAdapter) UpdateScore(ctx context.Context, id int64, score *float64, label *string) error {
	res, err := a.ext.ExecContext(ctx,
		`UPDATE prediction_logs SET score = $1, predicted_label = $2 WHERE id = $3`,
		score, label, id,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Wrap(ErrNotFound, apperr.CodeNotFound, "prediction record not found", http.StatusNotFound)
	}
	return nil
}
