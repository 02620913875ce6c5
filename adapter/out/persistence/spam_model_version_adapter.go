package persistence

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"spamguard_server/core/domain"
	"spamguard_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// ModelVersionAdapter implements ModelVersionRepository
type ModelVersionAdapter struct {
	db *sqlx.DB
}

// NewModelVersionAdapter creates a new ModelVersionAdapter
func NewModelVersionAdapter(db *sqlx.DB) *ModelVersionAdapter {
	return &ModelVersionAdapter{db: db}
}

// Ensure ModelVersionAdapter implements ModelVersionRepository
var _ domain.ModelVersionRepository = (*ModelVersionAdapter)(nil)

// modelVersionRow represents the database row
type modelVersionRow struct {
	ID        int64     `db:"id"`
	Version   string    `db:"version"`
	Path      string    `db:"path"`
	CreatedAt time.Time `db:"created_at"`
	Metrics   []byte    `db:"metrics"` // JSONB
	Threshold float64   `db:"threshold"`
	Active    bool      `db:"active"`
}

func (r *modelVersionRow) toEntity() (*domain.ModelVersion, error) {
	var metrics map[string]float64
	if len(r.Metrics) > 0 {
		if err := json.Unmarshal(r.Metrics, &metrics); err != nil {
			return nil, err
		}
	}
	return &domain.ModelVersion{
		ID:        r.ID,
		Version:   r.Version,
		Path:      r.Path,
		CreatedAt: r.CreatedAt,
		Metrics:   metrics,
		Threshold: r.Threshold,
		Active:    r.Active,
	}, nil
}

// GetByVersion retrieves one model version row
func (a *ModelVersionAdapter) GetByVersion(ctx context.Context, version string) (*domain.ModelVersion, error) {
	query := `
		SELECT id, version, path, created_at, metrics, threshold, active
		FROM model_versions
		WHERE version = $1
	`

	var row modelVersionRow
	if err := a.db.GetContext(ctx, &row, query, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Wrap(ErrNotFound, apperr.CodeNotFound, "model version not found", http.StatusNotFound)
		}
		return nil, err
	}
	return row.toEntity()
}

// List returns all model versions, newest first
func (a *ModelVersionAdapter) List(ctx context.Context) ([]*domain.ModelVersion, error) {
	query := `
		SELECT id, version, path, created_at, metrics, threshold, active
		FROM model_versions
		ORDER BY created_at DESC, version DESC
	`

	var rows []modelVersionRow
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	versions := make([]*domain.ModelVersion, 0, len(rows))
	for i := range rows {
		mv, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		versions = append(versions, mv)
	}
	return versions, nil
}

// Upsert creates or updates the row keyed by version
func (a *ModelVersionAdapter) Upsert(ctx context.Context, mv *domain.ModelVersion) error {
	metricsJSON, err := json.Marshal(mv.Metrics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO model_versions (version, path, created_at, metrics, threshold, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (version) DO UPDATE SET
			path = EXCLUDED.path,
			metrics = EXCLUDED.metrics,
			threshold = EXCLUDED.threshold,
			active = EXCLUDED.active
		RETURNING id
	`

	createdAt := mv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	err = a.db.QueryRowxContext(
		ctx, query,
		mv.Version,
		mv.Path,
		createdAt,
		metricsJSON,
		mv.Threshold,
		mv.Active,
	).Scan(&mv.ID)
	if isUniqueViolation(err) {
		// Concurrent upserts can still trip the unique index under
		// serialization; surface it as a conflict instead of a raw driver error.
		return apperr.Wrap(ErrDuplicate, apperr.CodeAlreadyExists, "model version already exists", http.StatusConflict)
	}
	return err
}

// DeactivateAll clears the active flag on every row
func (a *ModelVersionAdapter) DeactivateAll(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `UPDATE model_versions SET active = FALSE WHERE active = TRUE`)
	return err
}

// SetActive marks one version active
func (a *ModelVersionAdapter) SetActive(ctx context.Context, version string) error {
	res, err := a.db.ExecContext(ctx, `UPDATE model_versions SET active = TRUE WHERE version = $1`, version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Wrap(ErrNotFound, apperr.CodeNotFound, "model version not found", http.StatusNotFound)
	}
	return nil
}
