package pipeline

import (
	"math"
	"testing"
)

func TestRandomProjection_Deterministic(t *testing.T) {
	v := Vector{0: 1.5, 7: -2.0, 1 << 17: 0.5}

	a := NewRandomProjection(64).Project(v)
	b := NewRandomProjection(64).Project(v)

	if len(a) == 0 {
		t.Fatal("expected non-empty projection")
	}
	if len(a) != len(b) {
		t.Fatalf("projection sizes differ: %d vs %d", len(a), len(b))
	}
	for j, val := range a {
		if b[j] != val {
			t.Errorf("component %d differs across instances: %v vs %v", j, val, b[j])
		}
	}
}

func TestRandomProjection_LargeColumnIndices(t *testing.T) {
	// Hashed feature columns reach the top of the 2^18 space; the per-column
	// seed mix must stay well defined there and land every hit in bounds.
	v := Vector{
		1<<18 - 1: 1.0,
		1<<18 - 2: -1.0,
		12345:     2.0,
	}

	r := NewRandomProjection(32)
	out := r.Project(v)
	if len(out) == 0 {
		t.Fatal("expected non-empty projection")
	}
	for j, val := range out {
		if j < 0 || j >= r.Components {
			t.Errorf("component index %d out of [0,%d)", j, r.Components)
		}
		if math.IsNaN(val) || math.IsInf(val, 0) {
			t.Errorf("component %d is not finite: %v", j, val)
		}
	}
}

func TestRandomProjection_SeedChangesLayout(t *testing.T) {
	v := Vector{3: 1.0, 9: 1.0, 27: 1.0, 81: 1.0}

	a := NewRandomProjection(128)
	b := NewRandomProjection(128)
	b.Seed = 1337

	pa := a.Project(v)
	pb := b.Project(v)

	same := len(pa) == len(pb)
	if same {
		for j, val := range pa {
			if pb[j] != val {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds produced identical projections")
	}
}
