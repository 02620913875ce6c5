package pipeline

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RandomProjection maps the concatenated sparse feature space onto a fixed
// dense width. The projection matrix is never materialized: each input column
// deterministically derives its target components and signs from the seed, so
// a loaded artifact projects identically in every process.
type RandomProjection struct {
	Components int
	Density    int
	Seed       int64
}

// Two's-complement int64 form of the 64-bit golden-ratio multiplier
// 0x9E3779B97F4A7C15.
const projectionMix int64 = -0x61C8864680B583EB

func NewRandomProjection(components int) *RandomProjection {
	return &RandomProjection{
		Components: components,
		Density:    4,
		Seed:       42,
	}
}

// Project returns the dense projection of v, indexed 0..Components-1.
func (r *RandomProjection) Project(v Vector) Vector {
	out := make([]float64, r.Components)
	for i, val := range v {
		rnd := rand.New(rand.NewSource(r.Seed ^ int64(i)*projectionMix))
		for d := 0; d < r.Density; d++ {
			j := rnd.Intn(r.Components)
			if rnd.Intn(2) == 0 {
				out[j] += val
			} else {
				out[j] -= val
			}
		}
	}
	floats.Scale(1/math.Sqrt(float64(r.Density)), out)

	projected := make(Vector, r.Components)
	for j, val := range out {
		if val != 0 {
			projected[j] = val
		}
	}
	return projected
}
