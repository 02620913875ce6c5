package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"spamguard_server/core/service/rescore"
)

// RescoreProcessor runs heavy rescore jobs against the engine.
type RescoreProcessor struct {
	engine *rescore.Engine
	log    zerolog.Logger
}

func NewRescoreProcessor(engine *rescore.Engine, log zerolog.Logger) *RescoreProcessor {
	return &RescoreProcessor{
		engine: engine,
		log:    log.With().Str("component", "rescore_processor").Logger(),
	}
}

func (p *RescoreProcessor) ProcessHeavy(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[RescorePayload](msg)
	if err != nil {
		return err
	}
	if payload.Text == "" {
		p.log.Warn().Str("job_id", msg.ID).Msg("rescore job without text, dropping")
		return nil
	}

	result := p.engine.Rescore(ctx, payload.Text, payload.RecordID)

	event := p.log.Info()
	switch result.Status {
	case rescore.StatusError:
		// Scoring exhausted every fallback; let the pool retry the job.
		p.log.Error().Str("job_id", msg.ID).Str("message", result.Message).Msg("heavy rescore failed")
		return errors.New(result.Message)
	case rescore.StatusNoModel:
		event = p.log.Warn()
	}

	event.
		Str("job_id", msg.ID).
		Str("status", result.Status).
		Str("label", result.Label).
		Str("model_version", result.ModelVersion).
		Bool("escalated", result.Escalated).
		Msg("heavy rescore done")
	if result.PersistenceError != "" {
		p.log.Error().Str("job_id", msg.ID).Str("error", result.PersistenceError).Msg("rescore verdict not persisted")
	}
	return nil
}
