// Package scoring serves the fast inline prediction path: score with the
// active model, log the prediction, and hand ambiguous verdicts to the
// asynchronous heavy rescore queue.
package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"spamguard_server/core/domain"
	"spamguard_server/core/service/pipeline"
	"spamguard_server/core/service/registry"
	"spamguard_server/pkg/apperr"
)

// RescoreEnqueuer hands a message to the durable heavy-rescore queue.
type RescoreEnqueuer interface {
	EnqueueHeavyRescore(ctx context.Context, text string, recordID *int64) error
}

// Verdict is one inline scoring outcome.
type Verdict struct {
	Label        string   `json:"label"`
	Probability  *float64 `json:"probability,omitempty"`
	ModelVersion string   `json:"model_version"`
	ModelSource  string   `json:"model_source"`
	RecordID     *int64   `json:"record_id,omitempty"`
	Enqueued     bool     `json:"rescore_enqueued"`
}

// InlineScorer is safe for concurrent use.
type InlineScorer struct {
	registry         *registry.ModelRegistry
	predictions      domain.PredictionRepository
	queue            RescoreEnqueuer
	defaultThreshold float64
	grayLow          float64
	grayHigh         float64
	log              zerolog.Logger
}

func NewInlineScorer(
	reg *registry.ModelRegistry,
	predictions domain.PredictionRepository,
	queue RescoreEnqueuer,
	defaultThreshold, grayLow, grayHigh float64,
	log zerolog.Logger,
) *InlineScorer {
	return &InlineScorer{
		registry:         reg,
		predictions:      predictions,
		queue:            queue,
		defaultThreshold: defaultThreshold,
		grayLow:          grayLow,
		grayHigh:         grayHigh,
		log:              log.With().Str("component", "scoring").Logger(),
	}
}

// Predict scores one message with the active model. The prediction is logged
// and a gray-zone probability enqueues a heavy rescore referencing the logged
// record; neither side effect failing invalidates the verdict.
func (s *InlineScorer) Predict(ctx context.Context, text string) (*Verdict, error) {
	if text == "" {
		return nil, apperr.InvalidInput("text", "must not be empty")
	}

	active, source := s.registry.GetActive()
	if source == registry.NoneAvailable {
		return nil, apperr.ConfigurationMissing("")
	}

	probability, label, err := s.score(active, text)
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{
		Label:        label,
		Probability:  probability,
		ModelVersion: active.Version,
		ModelSource:  source.String(),
	}

	rec := &domain.PredictionRecord{
		Text:           text,
		Score:          probability,
		PredictedLabel: &label,
		ModelVersion:   &active.Version,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.predictions.Insert(ctx, rec); err != nil {
		s.log.Error().Err(err).Msg("prediction logging failed")
	} else {
		verdict.RecordID = &rec.ID
	}

	if probability != nil && *probability >= s.grayLow && *probability <= s.grayHigh {
		if err := s.queue.EnqueueHeavyRescore(ctx, text, verdict.RecordID); err != nil {
			s.log.Error().Err(err).Msg("heavy rescore enqueue failed")
		} else {
			verdict.Enqueued = true
			s.log.Debug().Float64("probability", *probability).Msg("gray-zone verdict enqueued for heavy rescore")
		}
	}
	return verdict, nil
}

func (s *InlineScorer) score(active *registry.ActiveModel, text string) (*float64, string, error) {
	probs, err := active.Pipeline.PredictProba([]string{text})
	if err == nil {
		threshold := active.Threshold(s.defaultThreshold)
		label := domain.LabelHam
		if probs[0] >= threshold {
			label = domain.LabelSpam
		}
		return &probs[0], label, nil
	}
	if !errors.Is(err, pipeline.ErrNoProba) {
		return nil, "", apperr.InferenceFailure(err)
	}

	preds, err := active.Pipeline.Predict([]string{text})
	if err != nil {
		return nil, "", apperr.InferenceFailure(err)
	}
	label := domain.LabelHam
	if preds[0] == 1 {
		label = domain.LabelSpam
	}
	return nil, label, nil
}
