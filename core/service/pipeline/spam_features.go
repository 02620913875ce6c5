// Package pipeline composes the feature-extraction and classification
// pipeline: a text normalizer feeding parallel feature branches (word/char
// n-grams, numeric features, optional embeddings) concatenated column-wise
// into a selectable classifier.
package pipeline

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
)

// Vector is a sparse feature vector keyed by column index.
type Vector map[int]float64

// l2Normalize scales v to unit Euclidean norm in place. Zero vectors are left
// untouched.
func l2Normalize(v Vector) {
	var sum float64
	for _, val := range v {
		sum += val * val
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i, val := range v {
		v[i] = val / norm
	}
}

// wordNgrams returns 1..2-token grams of the normalized text.
func wordNgrams(text string, minN, maxN int) []string {
	tokens := strings.Fields(text)
	var grams []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}

// charNgrams returns 3..5-rune grams over the whole string, spaces included.
func charNgrams(text string, minN, maxN int) []string {
	runes := []rune(text)
	var grams []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(runes); i++ {
			grams = append(grams, string(runes[i:i+n]))
		}
	}
	return grams
}

// Analyzer selects the tokenization of a vectorizer branch.
type Analyzer string

const (
	AnalyzerWord Analyzer = "word"
	AnalyzerChar Analyzer = "char"
)

func (a Analyzer) ngrams(text string) []string {
	if a == AnalyzerChar {
		return charNgrams(text, 3, 5)
	}
	return wordNgrams(text, 1, 2)
}

// TfidfVectorizer learns a vocabulary with document-frequency pruning and
// produces L2-normalized tf-idf vectors. MinDF drops grams seen in fewer
// documents, MaxDFRatio drops grams seen in more than that fraction of
// documents.
type TfidfVectorizer struct {
	Analyzer   Analyzer
	MinDF      int
	MaxDFRatio float64
	Vocab      map[string]int
	IDF        []float64
}

func NewTfidfVectorizer(analyzer Analyzer) *TfidfVectorizer {
	return &TfidfVectorizer{
		Analyzer:   analyzer,
		MinDF:      2,
		MaxDFRatio: 0.95,
	}
}

// Fit learns the vocabulary and smoothed idf weights from normalized texts.
func (t *TfidfVectorizer) Fit(texts []string) {
	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]bool)
		for _, gram := range t.Analyzer.ngrams(text) {
			if !seen[gram] {
				seen[gram] = true
				df[gram]++
			}
		}
	}

	maxDF := int(t.MaxDFRatio * float64(len(texts)))
	if maxDF < 1 {
		maxDF = 1
	}

	var kept []string
	for gram, count := range df {
		if count >= t.MinDF && count <= maxDF {
			kept = append(kept, gram)
		}
	}
	sort.Strings(kept)

	t.Vocab = make(map[string]int, len(kept))
	t.IDF = make([]float64, len(kept))
	n := float64(len(texts))
	for i, gram := range kept {
		t.Vocab[gram] = i
		// Smoothed idf, matching the standard tf-idf weighting.
		t.IDF[i] = math.Log((1+n)/(1+float64(df[gram]))) + 1
	}
}

func (t *TfidfVectorizer) Dim() int {
	return len(t.Vocab)
}

// Transform produces the L2-normalized tf-idf vector of one normalized text.
func (t *TfidfVectorizer) Transform(text string) Vector {
	v := make(Vector)
	for _, gram := range t.Analyzer.ngrams(text) {
		if idx, ok := t.Vocab[gram]; ok {
			v[idx] += t.IDF[idx]
		}
	}
	l2Normalize(v)
	return v
}

// HashingVectorizer is the fixed-width, stateless alternative: grams hash
// straight into buckets, all signs positive, L2-normalized output.
type HashingVectorizer struct {
	Analyzer    Analyzer
	NumFeatures int
}

const defaultHashFeatures = 1 << 18

func NewHashingVectorizer(analyzer Analyzer) *HashingVectorizer {
	return &HashingVectorizer{Analyzer: analyzer, NumFeatures: defaultHashFeatures}
}

func (h *HashingVectorizer) Dim() int {
	return h.NumFeatures
}

func (h *HashingVectorizer) Transform(text string) Vector {
	v := make(Vector)
	for _, gram := range h.Analyzer.ngrams(text) {
		hasher := fnv.New32a()
		hasher.Write([]byte(gram))
		v[int(hasher.Sum32())%h.NumFeatures]++
	}
	l2Normalize(v)
	return v
}
