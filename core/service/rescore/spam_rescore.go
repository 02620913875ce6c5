// Package rescore implements the asynchronous heavy rescoring engine: resolve
// a model, score the message again, persist the new verdict and escalate
// spam-direction disagreements to human review. Every job terminates in a
// structured Result; nothing propagates past the job boundary.
package rescore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spamguard_server/core/domain"
	"spamguard_server/core/service/pipeline"
	"spamguard_server/core/service/registry"
	"spamguard_server/pkg/apperr"
)

// Terminal statuses of one rescore job.
const (
	StatusOK      = "ok"
	StatusNoModel = "no_model"
	StatusError   = "error"
)

// Result is the closed outcome of a rescore job. PersistenceError carries a
// caught-and-rolled-back write failure; the verdict fields stay valid.
type Result struct {
	Status           string   `json:"status"`
	Probability      *float64 `json:"probability,omitempty"`
	Label            string   `json:"label,omitempty"`
	ModelVersion     string   `json:"model_version,omitempty"`
	Escalated        bool     `json:"escalated,omitempty"`
	Message          string   `json:"message,omitempty"`
	PersistenceError string   `json:"persistence_error,omitempty"`
}

// Engine rescores messages with the heavy (or active) model. Safe for
// concurrent use; loaded heavy artifacts are cached per version for the
// process lifetime, which is sound because version artifacts are immutable.
type Engine struct {
	registry         *registry.ModelRegistry
	store            domain.RescoreStore
	defaultThreshold float64
	log              zerolog.Logger

	heavyMu sync.RWMutex
	heavy   map[string]*pipeline.ScoringPipeline
}

func NewEngine(reg *registry.ModelRegistry, store domain.RescoreStore, defaultThreshold float64, log zerolog.Logger) *Engine {
	return &Engine{
		registry:         reg,
		store:            store,
		defaultThreshold: defaultThreshold,
		log:              log.With().Str("component", "rescore").Logger(),
		heavy:            make(map[string]*pipeline.ScoringPipeline),
	}
}

// Rescore runs the full state machine for one message. recordID, when set,
// points at the prediction row to update in place.
func (e *Engine) Rescore(ctx context.Context, text string, recordID *int64) Result {
	active, source := e.registry.GetActive()
	if source == registry.NoneAvailable {
		e.log.Info().Msg("rescore skipped, no model available")
		return Result{Status: StatusNoModel}
	}

	scorer, scorerVersion := e.selectScorer(active)

	probability, label, err := e.score(scorer, active, text)
	if err != nil {
		e.log.Error().Err(err).Str("version", scorerVersion).Msg("scoring failed after all fallbacks")
		return Result{Status: StatusError, Message: err.Error()}
	}

	result := Result{
		Status:       StatusOK,
		Probability:  probability,
		Label:        label,
		ModelVersion: scorerVersion,
	}

	escalated, err := e.persist(ctx, text, recordID, probability, label, scorerVersion)
	if err != nil {
		e.log.Error().Err(err).Msg("rescore persistence failed, verdict still returned")
		result.PersistenceError = err.Error()
		return result
	}
	result.Escalated = escalated
	return result
}

// selectScorer prefers the heavy artifact named by the active model's
// metadata. Heavy load failures are silent fallbacks to the active pipeline.
func (e *Engine) selectScorer(active *registry.ActiveModel) (*pipeline.ScoringPipeline, string) {
	heavyVersion := active.Metadata.HeavyVersion
	if heavyVersion == "" || heavyVersion == active.Version {
		return active.Pipeline, active.Version
	}

	e.heavyMu.RLock()
	cached, ok := e.heavy[heavyVersion]
	e.heavyMu.RUnlock()
	if ok {
		return cached, heavyVersion
	}

	p, _, err := e.registry.Load(heavyVersion)
	if err != nil {
		e.log.Warn().Str("heavy_version", heavyVersion).Err(err).Msg("heavy artifact unavailable, using active pipeline")
		return active.Pipeline, active.Version
	}

	e.heavyMu.Lock()
	e.heavy[heavyVersion] = p
	size := len(e.heavy)
	e.heavyMu.Unlock()
	e.log.Info().Str("heavy_version", heavyVersion).Int("cache_size", size).Msg("heavy artifact cached")
	return p, heavyVersion
}

// score computes the probability with fallbacks: scorer probability, then the
// active pipeline's probability, then a hard predict. The label comes from
// the version's stored threshold, defaulting when absent.
func (e *Engine) score(scorer *pipeline.ScoringPipeline, active *registry.ActiveModel, text string) (*float64, string, error) {
	probs, err := scorer.PredictProba([]string{text})
	if err != nil && scorer != active.Pipeline {
		e.log.Warn().Err(err).Msg("heavy probability failed, retrying with active pipeline")
		probs, err = active.Pipeline.PredictProba([]string{text})
	}
	if err == nil {
		threshold := active.Threshold(e.defaultThreshold)
		label := domain.LabelHam
		if probs[0] >= threshold {
			label = domain.LabelSpam
		}
		return &probs[0], label, nil
	}
	if !errors.Is(err, pipeline.ErrNoProba) {
		e.log.Warn().Err(err).Msg("probability unavailable, falling back to hard predict")
	}

	preds, predErr := active.Pipeline.Predict([]string{text})
	if predErr != nil {
		return nil, "", apperr.InferenceFailure(fmt.Errorf("probability: %w; predict: %w", err, predErr))
	}
	label := domain.LabelHam
	if preds[0] == 1 {
		label = domain.LabelSpam
	}
	return nil, label, nil
}

// persist updates or inserts the prediction record and applies the escalation
// rule in one transaction. Reports whether a review item was created.
func (e *Engine) persist(ctx context.Context, text string, recordID *int64, probability *float64, label, version string) (bool, error) {
	escalated := false
	err := e.store.InTx(ctx, func(preds domain.PredictionRepository, reviews domain.ReviewRepository) error {
		var prior *string

		switch {
		case recordID != nil:
			rec, err := preds.GetByID(ctx, *recordID)
			switch {
			case err == nil:
				prior = rec.PredictedLabel
				if err := preds.UpdateScore(ctx, rec.ID, probability, &label); err != nil {
					return err
				}
			case apperr.IsCode(err, apperr.CodeNotFound):
				if err := e.insertRecord(ctx, preds, text, probability, label, version); err != nil {
					return err
				}
			default:
				return err
			}
		default:
			if err := e.insertRecord(ctx, preds, text, probability, label, version); err != nil {
				return err
			}
		}

		// Escalation: spam-direction disagreement only. A prior of ham or
		// absent moving to spam escalates; everything else never does.
		if label == domain.LabelSpam && (prior == nil || *prior == domain.LabelHam) {
			item := &domain.ReviewItem{
				Text:         text,
				Score:        probability,
				ModelVersion: &version,
				Status:       domain.ReviewPending,
				CreatedAt:    time.Now().UTC(),
			}
			if err := reviews.Insert(ctx, item); err != nil {
				return err
			}
			escalated = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return escalated, nil
}

func (e *Engine) insertRecord(ctx context.Context, preds domain.PredictionRepository, text string, probability *float64, label, version string) error {
	rec := &domain.PredictionRecord{
		Text:           text,
		Score:          probability,
		PredictedLabel: &label,
		ModelVersion:   &version,
		CreatedAt:      time.Now().UTC(),
	}
	return preds.Insert(ctx, rec)
}
