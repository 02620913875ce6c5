// Package registry owns the on-disk model store and the process-wide active
// model. Artifacts live under <dir>/<version>/ as a gob blob plus a JSON
// metadata sidecar; the active model is swapped atomically and only after a
// successful load.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"spamguard_server/core/service/pipeline"
	"spamguard_server/pkg/apperr"
)

const (
	artifactFile = "artifact.gob"
	metadataFile = "metadata.json"
)

// Metadata is the JSON sidecar written next to every artifact. HeavyVersion
// optionally names another registry version to prefer for heavy rescoring.
type Metadata struct {
	Version      string             `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	Classifier   string             `json:"classifier"`
	Metrics      map[string]float64 `json:"metrics"`
	Threshold    float64            `json:"threshold"`
	Active       bool               `json:"active"`
	HeavyVersion string             `json:"heavy_version,omitempty"`
}

// VersionInfo is one registry listing entry. Corrupt metadata degrades to the
// version and path alone instead of failing the listing.
type VersionInfo struct {
	Version  string    `json:"version"`
	Path     string    `json:"path"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// ActiveModel pairs a loaded pipeline with its metadata. Immutable once
// published; a new activation publishes a new value.
type ActiveModel struct {
	Version  string
	Pipeline *pipeline.ScoringPipeline
	Metadata Metadata
}

// Threshold returns the decision threshold for this model, falling back to
// def when the metadata carries none.
func (m *ActiveModel) Threshold(def float64) float64 {
	if m.Metadata.Threshold > 0 {
		return m.Metadata.Threshold
	}
	return def
}

// Source reports how GetActive arrived at its answer.
type Source int

const (
	// NoneAvailable means the registry holds no loadable model at all.
	NoneAvailable Source = iota
	// ActiveFound means a previously activated model was already resident.
	ActiveFound
	// DefaultSelected means no model was active and the registry lazily
	// promoted the best candidate on disk.
	DefaultSelected
)

func (s Source) String() string {
	switch s {
	case ActiveFound:
		return "active"
	case DefaultSelected:
		return "default"
	default:
		return "none"
	}
}

// ModelRegistry is safe for concurrent use. One instance per process.
type ModelRegistry struct {
	dir    string
	embed  pipeline.EmbedFunc
	log    zerolog.Logger
	active atomic.Pointer[ActiveModel]

	// serializes the lazy default selection so concurrent readers do not
	// race to load the same artifact.
	lazyMu sync.Mutex
}

// New creates a registry rooted at dir. The embedder may be nil when the
// deployment never trains embedding pipelines; loading an artifact that needs
// one then fails with a load failure.
func New(dir string, embed pipeline.EmbedFunc, log zerolog.Logger) (*ModelRegistry, error) {
	if dir == "" {
		return nil, apperr.ConfigurationMissing("model directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir %s: %w", dir, err)
	}
	return &ModelRegistry{
		dir:   dir,
		embed: embed,
		log:   log.With().Str("component", "registry").Logger(),
	}, nil
}

// Dir returns the registry root.
func (r *ModelRegistry) Dir() string { return r.dir }

func validVersion(version string) error {
	if version == "" {
		return apperr.InvalidInput("version", "must not be empty")
	}
	if strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return apperr.InvalidInput("version", fmt.Sprintf("%q is not a valid version name", version))
	}
	return nil
}

func (r *ModelRegistry) versionDir(version string) string {
	return filepath.Join(r.dir, version)
}

// SaveArtifact writes the encoded pipeline and its metadata sidecar under
// <dir>/<version>/. An existing version is rejected unless overwrite is set.
func (r *ModelRegistry) SaveArtifact(p *pipeline.ScoringPipeline, meta Metadata, overwrite bool) (string, error) {
	if err := validVersion(meta.Version); err != nil {
		return "", err
	}

	dir := r.versionDir(meta.Version)
	if _, err := os.Stat(dir); err == nil && !overwrite {
		return "", apperr.AlreadyExists(fmt.Sprintf("model version %s", meta.Version))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.PersistenceFailure("create version dir", err)
	}

	blob, err := p.Encode()
	if err != nil {
		return "", apperr.PersistenceFailure("encode artifact", err)
	}
	if err := os.WriteFile(filepath.Join(dir, artifactFile), blob, 0o644); err != nil {
		return "", apperr.PersistenceFailure("write artifact", err)
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", apperr.PersistenceFailure("encode metadata", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaBytes, 0o644); err != nil {
		return "", apperr.PersistenceFailure("write metadata", err)
	}

	r.log.Info().Str("version", meta.Version).Str("path", dir).Msg("artifact saved")
	return dir, nil
}

// ListVersions enumerates every version directory. Entries with unreadable or
// corrupt metadata are still listed, with the metadata field empty.
func (r *ModelRegistry) ListVersions() ([]VersionInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, apperr.PersistenceFailure("read model dir", err)
	}

	var infos []VersionInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := r.versionDir(e.Name())
		if _, err := os.Stat(filepath.Join(dir, artifactFile)); err != nil {
			continue
		}
		info := VersionInfo{Version: e.Name(), Path: dir}
		if meta, err := r.readMetadata(e.Name()); err == nil {
			info.Metadata = &meta
		} else {
			r.log.Warn().Str("version", e.Name()).Err(err).Msg("metadata unreadable, listing bare entry")
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Version > infos[j].Version })
	return infos, nil
}

func (r *ModelRegistry) readMetadata(version string) (Metadata, error) {
	raw, err := os.ReadFile(filepath.Join(r.versionDir(version), metadataFile))
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Metadata{}, err
	}
	if meta.Version == "" {
		meta.Version = version
	}
	return meta, nil
}

// Load reads and decodes one version from disk without touching the active
// pointer. Missing versions map to NOT_FOUND, everything else to LOAD_FAILURE.
func (r *ModelRegistry) Load(version string) (*pipeline.ScoringPipeline, Metadata, error) {
	if err := validVersion(version); err != nil {
		return nil, Metadata{}, err
	}

	blob, err := os.ReadFile(filepath.Join(r.versionDir(version), artifactFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Metadata{}, apperr.NotFound(fmt.Sprintf("model version %s", version))
		}
		return nil, Metadata{}, apperr.LoadFailure(version, err)
	}

	p, err := pipeline.Decode(blob)
	if err != nil {
		return nil, Metadata{}, apperr.LoadFailure(version, err)
	}
	if p.NeedsEmbedder() {
		if r.embed == nil {
			return nil, Metadata{}, apperr.LoadFailure(version, errors.New("artifact needs an embedding provider and none is configured"))
		}
		p.BindEmbedder(r.embed)
	}

	meta, err := r.readMetadata(version)
	if err != nil {
		// Artifact decoded fine; serve it with minimal metadata.
		r.log.Warn().Str("version", version).Err(err).Msg("metadata unreadable, using defaults")
		meta = Metadata{Version: version}
	}
	return p, meta, nil
}

// Activate loads the version and publishes it as the active model. The swap
// happens only after a fully successful load, so a failed activation leaves
// the previous active model serving.
func (r *ModelRegistry) Activate(version string) error {
	p, meta, err := r.Load(version)
	if err != nil {
		return err
	}
	r.active.Store(&ActiveModel{Version: version, Pipeline: p, Metadata: meta})
	r.log.Info().Str("version", version).Msg("model activated")
	return nil
}

// GetActive returns the resident model, lazily promoting the best on-disk
// candidate when nothing was activated yet. It never returns an error: callers
// branch on the Source.
func (r *ModelRegistry) GetActive() (*ActiveModel, Source) {
	if m := r.active.Load(); m != nil {
		return m, ActiveFound
	}

	r.lazyMu.Lock()
	defer r.lazyMu.Unlock()
	if m := r.active.Load(); m != nil {
		return m, ActiveFound
	}

	for _, version := range r.defaultCandidates() {
		p, meta, err := r.Load(version)
		if err != nil {
			r.log.Warn().Str("version", version).Err(err).Msg("default candidate failed to load")
			continue
		}
		m := &ActiveModel{Version: version, Pipeline: p, Metadata: meta}
		r.active.Store(m)
		r.log.Info().Str("version", version).Msg("default model selected")
		return m, DefaultSelected
	}
	return nil, NoneAvailable
}

// defaultCandidates orders on-disk versions for lazy selection: metadata-
// flagged active versions first, then newest creation time, then version name.
func (r *ModelRegistry) defaultCandidates() []string {
	infos, err := r.ListVersions()
	if err != nil {
		r.log.Warn().Err(err).Msg("listing versions for default selection failed")
		return nil
	}

	sort.SliceStable(infos, func(i, j int) bool {
		mi, mj := infos[i].Metadata, infos[j].Metadata
		ai := mi != nil && mi.Active
		aj := mj != nil && mj.Active
		if ai != aj {
			return ai
		}
		var ti, tj time.Time
		if mi != nil {
			ti = mi.CreatedAt
		}
		if mj != nil {
			tj = mj.CreatedAt
		}
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return infos[i].Version > infos[j].Version
	})

	versions := make([]string, len(infos))
	for i, info := range infos {
		versions[i] = info.Version
	}
	return versions
}
