package pipeline

import (
	"math"
	"strings"
	"unicode"

	"spamguard_server/core/service/textnorm"

	"gonum.org/v1/gonum/stat"
)

// NumericDim is the width of the hand-crafted numeric branch.
const NumericDim = 9

// NumericExtractor computes hand-crafted numeric features and standardizes
// them with means/stddevs learned at fit time.
//
// Length, word count, digit, punctuation and uppercase counts are measured on
// the raw text (normalization would erase the case and punctuation signals);
// the sentinel counts come from a mask-only pass so they reflect the URL,
// email and phone content the normalizer would substitute.
type NumericExtractor struct {
	MaskOpts textnorm.Options
	Means    []float64
	Stds     []float64
}

func NewNumericExtractor(maskOpts textnorm.Options) *NumericExtractor {
	return &NumericExtractor{MaskOpts: maskOpts}
}

// Features returns the raw (unscaled) feature row for one text.
func (e *NumericExtractor) Features(raw string) []float64 {
	var digits, exclam, quest, upper float64
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '!':
			exclam++
		case r == '?':
			quest++
		case unicode.IsUpper(r):
			upper++
		}
	}

	masked := strings.ToLower(textnorm.New(e.MaskOpts).MaskPII(raw))

	return []float64{
		float64(len(raw)),
		float64(len(strings.Fields(raw))),
		digits,
		exclam,
		quest,
		upper,
		float64(strings.Count(masked, strings.ToLower(textnorm.SentinelURL))),
		float64(strings.Count(masked, strings.ToLower(textnorm.SentinelPhone))),
		float64(strings.Count(masked, strings.ToLower(textnorm.SentinelEmail))),
	}
}

// Fit learns per-feature means and standard deviations.
func (e *NumericExtractor) Fit(raws []string) {
	columns := make([][]float64, NumericDim)
	for i := range columns {
		columns[i] = make([]float64, 0, len(raws))
	}
	for _, raw := range raws {
		for i, val := range e.Features(raw) {
			columns[i] = append(columns[i], val)
		}
	}

	e.Means = make([]float64, NumericDim)
	e.Stds = make([]float64, NumericDim)
	for i, col := range columns {
		e.Means[i] = stat.Mean(col, nil)
		e.Stds[i] = stat.StdDev(col, nil)
		if e.Stds[i] == 0 || math.IsNaN(e.Stds[i]) {
			e.Stds[i] = 1
		}
	}
}

// Transform returns the standardized feature row. Before Fit it returns the
// raw features unscaled.
func (e *NumericExtractor) Transform(raw string) []float64 {
	feats := e.Features(raw)
	if len(e.Means) != NumericDim {
		return feats
	}
	for i := range feats {
		feats[i] = (feats[i] - e.Means[i]) / e.Stds[i]
	}
	return feats
}
