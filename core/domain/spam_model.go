// Package domain holds the core entities and outbound ports of the spam
// platform. Entities carry no persistence concerns; adapters map them to rows.
package domain

import (
	"context"
	"time"
)

// Predicted labels. The platform is binary: everything that is not spam is ham.
const (
	LabelSpam = "spam"
	LabelHam  = "ham"
)

// ModelVersion is the database mirror of one registry entry. The artifact
// itself lives on disk under MODEL_DIR/<version>/; this row carries the
// metadata the serving path needs without touching the filesystem.
type ModelVersion struct {
	ID        int64
	Version   string
	Path      string
	CreatedAt time.Time
	Metrics   map[string]float64
	Threshold float64
	Active    bool
}

// ModelVersionRepository persists model version metadata.
//
// DeactivateAll exists so activation can clear the previous active flag and
// set the new one inside one transaction, keeping the at-most-one-active
// invariant in the store.
type ModelVersionRepository interface {
	GetByVersion(ctx context.Context, version string) (*ModelVersion, error)
	List(ctx context.Context) ([]*ModelVersion, error)
	Upsert(ctx context.Context, mv *ModelVersion) error
	DeactivateAll(ctx context.Context) error
	SetActive(ctx context.Context, version string) error
}
