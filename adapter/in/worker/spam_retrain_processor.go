package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"spamguard_server/core/domain"
	"spamguard_server/core/service/registry"
	"spamguard_server/core/service/training"
)

// RetrainProcessor runs retraining jobs: train a new version, activate it,
// and mirror the activation into the model_versions table.
type RetrainProcessor struct {
	trainer  *training.Trainer
	registry *registry.ModelRegistry
	versions domain.ModelVersionRepository
	log      zerolog.Logger
}

func NewRetrainProcessor(
	trainer *training.Trainer,
	reg *registry.ModelRegistry,
	versions domain.ModelVersionRepository,
	log zerolog.Logger,
) *RetrainProcessor {
	return &RetrainProcessor{
		trainer:  trainer,
		registry: reg,
		versions: versions,
		log:      log.With().Str("component", "retrain_processor").Logger(),
	}
}

func (p *RetrainProcessor) ProcessRetrain(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[RetrainPayload](msg)
	if err != nil {
		return err
	}
	if payload.DatasetPath == "" {
		p.log.Warn().Str("job_id", msg.ID).Msg("retrain job without dataset path, dropping")
		return nil
	}

	version, meta, err := p.trainer.TrainAndSave(ctx, training.Options{
		DatasetPath:   payload.DatasetPath,
		Classifier:    payload.Classifier,
		Augment:       payload.Augment,
		UseEmbeddings: payload.UseEmbeddings,
	})
	if err != nil {
		return fmt.Errorf("retrain: %w", err)
	}

	if err := p.registry.Activate(version); err != nil {
		return fmt.Errorf("activate %s: %w", version, err)
	}

	// Mirror the activation: clear every active flag, then upsert the new
	// version as the single active row.
	if err := p.versions.DeactivateAll(ctx); err != nil {
		p.log.Error().Err(err).Str("version", version).Msg("deactivate-all failed, db mirror out of sync")
		return err
	}
	if err := p.versions.Upsert(ctx, &domain.ModelVersion{
		Version:   version,
		Path:      filepath.Join(p.registry.Dir(), version),
		CreatedAt: meta.CreatedAt,
		Metrics:   meta.Metrics,
		Threshold: meta.Threshold,
		Active:    true,
	}); err != nil {
		p.log.Error().Err(err).Str("version", version).Msg("model version upsert failed")
		return err
	}

	p.log.Info().
		Str("job_id", msg.ID).
		Str("version", version).
		Float64("accuracy", meta.Metrics["accuracy"]).
		Msg("retrain complete, model activated")
	return nil
}
