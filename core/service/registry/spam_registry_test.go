package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spamguard_server/core/service/pipeline"
	"spamguard_server/pkg/apperr"
)

func trainedPipeline(t *testing.T) *pipeline.ScoringPipeline {
	t.Helper()
	p, err := pipeline.Build(pipeline.DefaultConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	texts := []string{
		"free cash prize win now", "claim your free prize cash",
		"win free cash today claim", "urgent free prize claim cash",
		"see you at the cafe", "running late be there soon",
		"thanks for dinner tonight", "call me when you leave",
	}
	labels := []int{1, 1, 1, 1, 0, 0, 0, 0}
	if err := p.Fit(texts, labels); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return p
}

func newRegistry(t *testing.T) *ModelRegistry {
	t.Helper()
	r, err := New(t.TempDir(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func saveVersion(t *testing.T, r *ModelRegistry, version string, active bool, created time.Time) {
	t.Helper()
	_, err := r.SaveArtifact(trainedPipeline(t), Metadata{
		Version:    version,
		CreatedAt:  created,
		Classifier: "logreg",
		Threshold:  0.5,
		Active:     active,
	}, false)
	if err != nil {
		t.Fatalf("SaveArtifact(%s): %v", version, err)
	}
}

func TestSaveArtifact_RejectsDuplicateUnlessOverwrite(t *testing.T) {
	r := newRegistry(t)
	p := trainedPipeline(t)
	meta := Metadata{Version: "v1", CreatedAt: time.Now(), Threshold: 0.5}

	if _, err := r.SaveArtifact(p, meta, false); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := r.SaveArtifact(p, meta, false); !apperr.IsCode(err, apperr.CodeAlreadyExists) {
		t.Fatalf("duplicate save error = %v, want ALREADY_EXISTS", err)
	}
	if _, err := r.SaveArtifact(p, meta, true); err != nil {
		t.Fatalf("overwrite save: %v", err)
	}
}

func TestSaveArtifact_RejectsBadVersionNames(t *testing.T) {
	r := newRegistry(t)
	p := trainedPipeline(t)
	for _, version := range []string{"", "a/b", `a\b`, ".", ".."} {
		if _, err := r.SaveArtifact(p, Metadata{Version: version}, false); !apperr.IsCode(err, apperr.CodeInvalidInput) {
			t.Errorf("SaveArtifact(%q) error = %v, want INVALID_INPUT", version, err)
		}
	}
}

func TestListVersions_CorruptMetadataDegrades(t *testing.T) {
	r := newRegistry(t)
	saveVersion(t, r, "v1", false, time.Now())
	saveVersion(t, r, "v2", false, time.Now())

	if err := os.WriteFile(filepath.Join(r.Dir(), "v2", "metadata.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("corrupt metadata: %v", err)
	}

	infos, err := r.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d versions, want 2", len(infos))
	}
	byVersion := map[string]VersionInfo{}
	for _, info := range infos {
		byVersion[info.Version] = info
	}
	if byVersion["v1"].Metadata == nil {
		t.Error("v1 should carry metadata")
	}
	if byVersion["v2"].Metadata != nil {
		t.Error("v2 with corrupt metadata should list bare")
	}
	if byVersion["v2"].Path == "" {
		t.Error("bare entry should still carry its path")
	}
}

func TestActivate_MissingVersion(t *testing.T) {
	r := newRegistry(t)
	if err := r.Activate("nope"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("Activate error = %v, want NOT_FOUND", err)
	}
}

func TestActivate_CorruptArtifactKeepsPreviousActive(t *testing.T) {
	r := newRegistry(t)
	saveVersion(t, r, "good", false, time.Now())
	saveVersion(t, r, "bad", false, time.Now())

	if err := r.Activate("good"); err != nil {
		t.Fatalf("Activate(good): %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir(), "bad", "artifact.gob"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}
	if err := r.Activate("bad"); !apperr.IsCode(err, apperr.CodeLoadFailure) {
		t.Fatalf("Activate(bad) error = %v, want LOAD_FAILURE", err)
	}

	m, source := r.GetActive()
	if source != ActiveFound || m == nil || m.Version != "good" {
		t.Fatalf("active after failed activation = %v/%v, want good/ActiveFound", m, source)
	}
}

func TestGetActive_EmptyRegistry(t *testing.T) {
	r := newRegistry(t)
	m, source := r.GetActive()
	if m != nil || source != NoneAvailable {
		t.Fatalf("GetActive on empty registry = %v/%v, want nil/NoneAvailable", m, source)
	}
}

func TestGetActive_LazyDefaultPrefersFlaggedActive(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()
	saveVersion(t, r, "v20250101", false, now.Add(-48*time.Hour))
	saveVersion(t, r, "v20250201", true, now.Add(-24*time.Hour))
	saveVersion(t, r, "v20250301", false, now)

	m, source := r.GetActive()
	if source != DefaultSelected {
		t.Fatalf("source = %v, want DefaultSelected", source)
	}
	if m.Version != "v20250201" {
		t.Fatalf("selected %s, want the metadata-active v20250201", m.Version)
	}

	// Subsequent calls hit the resident pointer.
	if _, source = r.GetActive(); source != ActiveFound {
		t.Fatalf("second GetActive source = %v, want ActiveFound", source)
	}
}

func TestGetActive_LazyDefaultFallsBackToNewest(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()
	saveVersion(t, r, "older", false, now.Add(-time.Hour))
	saveVersion(t, r, "newer", false, now)

	m, source := r.GetActive()
	if source != DefaultSelected || m.Version != "newer" {
		t.Fatalf("GetActive = %v/%v, want newer/DefaultSelected", m, source)
	}
}

func TestGetActive_SkipsUnloadableCandidates(t *testing.T) {
	r := newRegistry(t)
	now := time.Now()
	saveVersion(t, r, "broken", false, now)
	saveVersion(t, r, "working", false, now.Add(-time.Hour))

	if err := os.WriteFile(filepath.Join(r.Dir(), "broken", "artifact.gob"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("corrupt artifact: %v", err)
	}

	m, source := r.GetActive()
	if source != DefaultSelected || m == nil || m.Version != "working" {
		t.Fatalf("GetActive = %v/%v, want working/DefaultSelected", m, source)
	}
}

func TestLoad_RoundTripScoresIdentically(t *testing.T) {
	r := newRegistry(t)
	p := trainedPipeline(t)
	if _, err := r.SaveArtifact(p, Metadata{Version: "v1", CreatedAt: time.Now(), Threshold: 0.5}, false); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	loaded, meta, err := r.Load("v1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if meta.Version != "v1" || meta.Threshold != 0.5 {
		t.Fatalf("metadata = %+v", meta)
	}

	inputs := []string{"free cash prize win now", "see you at the cafe"}
	want, err := p.PredictProba(inputs)
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	got, err := loaded.PredictProba(inputs)
	if err != nil {
		t.Fatalf("PredictProba loaded: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prob[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestActiveModel_ThresholdFallback(t *testing.T) {
	withMeta := &ActiveModel{Metadata: Metadata{Threshold: 0.7}}
	if got := withMeta.Threshold(0.5); got != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", got)
	}
	bare := &ActiveModel{}
	if got := bare.Threshold(0.5); got != 0.5 {
		t.Errorf("Threshold fallback = %v, want 0.5", got)
	}
}
