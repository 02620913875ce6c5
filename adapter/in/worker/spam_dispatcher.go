package worker

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type Handler struct {
	rescoreProcessor *RescoreProcessor
	retrainProcessor *RetrainProcessor
	log              zerolog.Logger
}

func NewHandler(rescoreProcessor *RescoreProcessor, retrainProcessor *RetrainProcessor, log zerolog.Logger) *Handler {
	return &Handler{
		rescoreProcessor: rescoreProcessor,
		retrainProcessor: retrainProcessor,
		log:              log.With().Str("component", "dispatcher").Logger(),
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	h.log.Debug().Str("job_id", msg.ID).Str("job_type", msg.Type).Msg("processing message")

	switch msg.Type {
	case JobRescoreHeavy:
		return h.rescoreProcessor.ProcessHeavy(ctx, msg)
	case JobRetrain:
		return h.retrainProcessor.ProcessRetrain(ctx, msg)
	default:
		h.log.Warn().Str("job_type", msg.Type).Msg("unknown job type, dropping")
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
