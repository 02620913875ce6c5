package worker

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of a job.
type JobType = string

// Job types
const (
	// Rescore jobs
	JobRescoreHeavy JobType = "rescore.heavy"

	// Training jobs
	JobRetrain JobType = "train.retrain"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
	Retries   int            `json:"retries"`
}

func NewMessage(jobType string, payload map[string]any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   payload,
		CreatedAt: time.Now(),
		Retries:   0,
	}
}

// RescorePayload parameterizes one heavy rescore job.
type RescorePayload struct {
	Text     string `json:"text"`
	RecordID *int64 `json:"record_id,omitempty"`
}

// RetrainPayload parameterizes one retraining run.
type RetrainPayload struct {
	DatasetPath   string `json:"dataset_path"`
	Classifier    string `json:"classifier,omitempty"`
	Augment       bool   `json:"augment"`
	UseEmbeddings bool   `json:"use_embeddings,omitempty"`
}
