package persistence

import (
	"context"
	"fmt"

	"spamguard_server/core/domain"

	"github.com/jmoiron/sqlx"
)

// RescoreStore implements the transactional store port of the heavy rescore
// engine. Outside a transaction the repositories run on the pool; InTx hands
// the callback repositories bound to one sqlx transaction.
type RescoreStore struct {
	db *sqlx.DB
}

// NewRescoreStore creates a new RescoreStore
func NewRescoreStore(db *sqlx.DB) *RescoreStore {
	return &RescoreStore{db: db}
}

// Ensure RescoreStore implements the port
var _ domain.RescoreStore = (*RescoreStore)(nil)

func (s *RescoreStore) Predictions() domain.PredictionRepository {
	return NewPredictionAdapter(s.db)
}

func (s *RescoreStore) Reviews() domain.ReviewRepository {
	return NewReviewAdapter(s.db)
}

// InTx runs fn inside one transaction. fn returning an error rolls everything
// back; the commit error surfaces to the caller.
func (s *RescoreStore) InTx(ctx context.Context, fn func(preds domain.PredictionRepository, reviews domain.ReviewRepository) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(NewPredictionAdapter(tx), NewReviewAdapter(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
