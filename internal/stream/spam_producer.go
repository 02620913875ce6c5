package stream

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

type Job struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// EnqueueHeavyRescore queues one message for asynchronous heavy rescoring.
// recordID, when present, names the prediction row the job should update.
func (p *Producer) EnqueueHeavyRescore(ctx context.Context, text string, recordID *int64) error {
	payload := map[string]any{"text": text}
	if recordID != nil {
		payload["record_id"] = *recordID
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      "rescore.heavy",
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	_, err := p.stream.Publish(ctx, StreamRescore, job)
	return err
}

// EnqueueRetrain queues a full retraining run.
func (p *Producer) EnqueueRetrain(ctx context.Context, datasetPath, classifier string, augment bool) (string, error) {
	job := &Job{
		ID:   uuid.New().String(),
		Type: "train.retrain",
		Payload: map[string]any{
			"dataset_path": datasetPath,
			"classifier":   classifier,
			"augment":      augment,
		},
		CreatedAt: time.Now(),
	}
	return p.stream.Publish(ctx, StreamTrain, job)
}
